package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/ratelimit"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login id or password")
	ErrAccountInactive    = errors.New("account is inactive")
)

type Store interface {
	GetUserByLoginID(ctx context.Context, loginID string) (model.User, error)
}

type Limiter interface {
	CheckLogin(ctx context.Context, loginID string) error
	ResetLogin(ctx context.Context, loginID string) error
}

// SessionState is cleared when a session ends.
type SessionState interface {
	ClearSession(sessionID string)
}

type Authenticator struct {
	logger  *slog.Logger
	store   Store
	limiter Limiter
	session SessionState
}

func NewAuthenticator(logger *slog.Logger, store Store, limiter Limiter, session SessionState) *Authenticator {
	return &Authenticator{logger: logger.With("component", "authenticator"), store: store, limiter: limiter, session: session}
}

type LoginParam struct {
	LoginID  string `json:"login_id" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login verifies the credentials and returns the user. Unknown login ids and wrong passwords
// produce the same error. A limiter outage does not block sign-in.
func (a *Authenticator) Login(ctx context.Context, param LoginParam) (model.User, error) {
	loginID := strings.ToLower(strings.TrimSpace(param.LoginID))

	if err := a.limiter.CheckLogin(ctx, loginID); err != nil {
		if errors.Is(err, ratelimit.ErrTooManyAttempts) {
			a.logger.WarnContext(ctx, "login attempts exceeded", "login_id", loginID)
			return model.User{}, err
		}
		a.logger.ErrorContext(ctx, "login limiter unavailable", "error", err)
	}

	user, err := a.store.GetUserByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("failed to get user by login id: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(param.Password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return model.User{}, ErrAccountInactive
	}

	if err := a.limiter.ResetLogin(ctx, loginID); err != nil {
		a.logger.WarnContext(ctx, "failed to reset login attempts", "login_id", loginID, "error", err)
	}
	a.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Logout drops the session-scoped state kept in memory for the session.
func (a *Authenticator) Logout(ctx context.Context, actor model.Actor, sessionID string) {
	a.session.ClearSession(sessionID)
	a.logger.InfoContext(ctx, "user logged out", "user_id", actor.ID)
}
