package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/ratelimit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUserByLoginID(ctx context.Context, loginID string) (model.User, error) {
	args := m.Called(ctx, loginID)
	return args.Get(0).(model.User), args.Error(1)
}

type sessionSpy struct {
	cleared []string
}

func (s *sessionSpy) ClearSession(id string) {
	s.cleared = append(s.cleared, id)
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (brokenCounter) Reset(context.Context, string) error {
	return errors.New("redis down")
}

func TestAuthenticator_Login(t *testing.T) {
	password := "TestPassword123!"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	active := model.User{ID: uuid.New(), LoginID: "asha", Role: model.RoleStaff, Status: model.UserStatusActive, PasswordHash: string(hash)}
	inactive := active
	inactive.Status = model.UserStatusInactive

	tests := []struct {
		name       string
		param      LoginParam
		setupMocks func(*mockStore)
		wantErr    error
	}{
		{
			name:  "successful_login",
			param: LoginParam{LoginID: " Asha ", Password: password},
			setupMocks: func(store *mockStore) {
				store.On("GetUserByLoginID", mock.Anything, "asha").Return(active, nil)
			},
		},
		{
			name:  "unknown_login_id",
			param: LoginParam{LoginID: "nobody", Password: password},
			setupMocks: func(store *mockStore) {
				store.On("GetUserByLoginID", mock.Anything, "nobody").Return(model.User{}, database.ErrUserNotFound)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:  "wrong_password",
			param: LoginParam{LoginID: "asha", Password: "WrongPassword123!"},
			setupMocks: func(store *mockStore) {
				store.On("GetUserByLoginID", mock.Anything, "asha").Return(active, nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:  "inactive_user",
			param: LoginParam{LoginID: "asha", Password: password},
			setupMocks: func(store *mockStore) {
				store.On("GetUserByLoginID", mock.Anything, "asha").Return(inactive, nil)
			},
			wantErr: ErrAccountInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			tt.setupMocks(store)
			limiter := ratelimit.NewRateLimiter(ratelimit.NewMemoryCounter(), 5, time.Minute)
			auth := NewAuthenticator(slog.New(slog.NewTextHandler(io.Discard, nil)), store, limiter, &sessionSpy{})

			user, err := auth.Login(context.Background(), tt.param)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, user.ID)
		})
	}
}

func TestAuthenticator_LoginRateLimited(t *testing.T) {
	store := new(mockStore)
	store.On("GetUserByLoginID", mock.Anything, "asha").Return(model.User{}, database.ErrUserNotFound)
	limiter := ratelimit.NewRateLimiter(ratelimit.NewMemoryCounter(), 2, time.Minute)
	auth := NewAuthenticator(slog.New(slog.NewTextHandler(io.Discard, nil)), store, limiter, &sessionSpy{})

	for range 2 {
		_, err := auth.Login(context.Background(), LoginParam{LoginID: "asha", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := auth.Login(context.Background(), LoginParam{LoginID: "ASHA", Password: "x"})
	assert.ErrorIs(t, err, ratelimit.ErrTooManyAttempts)
	store.AssertNumberOfCalls(t, "GetUserByLoginID", 2)
}

func TestAuthenticator_LimiterOutageDoesNotBlock(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123!"), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{ID: uuid.New(), Status: model.UserStatusActive, PasswordHash: string(hash)}

	store := new(mockStore)
	store.On("GetUserByLoginID", mock.Anything, "asha").Return(user, nil)
	limiter := ratelimit.NewRateLimiter(brokenCounter{}, 2, time.Minute)
	auth := NewAuthenticator(slog.New(slog.NewTextHandler(io.Discard, nil)), store, limiter, &sessionSpy{})

	_, err = auth.Login(context.Background(), LoginParam{LoginID: "asha", Password: "Secret123!"})
	assert.NoError(t, err)
}

func TestAuthenticator_LogoutClearsSession(t *testing.T) {
	spy := &sessionSpy{}
	auth := NewAuthenticator(slog.New(slog.NewTextHandler(io.Discard, nil)), new(mockStore), ratelimit.NewRateLimiter(ratelimit.NewMemoryCounter(), 5, time.Minute), spy)

	auth.Logout(context.Background(), model.Actor{ID: uuid.New()}, "sess-1")

	assert.Equal(t, []string{"sess-1"}, spy.cleared)
}
