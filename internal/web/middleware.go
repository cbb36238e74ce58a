package web

import (
	"errors"
	"log/slog"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/database"
	"realtycrm/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

const (
	localActor     = "actor"
	localSessionID = "session_id"

	sessionActorID   = "actor_id"
	sessionActorName = "actor_name"
	sessionActorRole = "actor_role"
)

// RequestLogger logs one line per request once the handler chain has finished.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"ip", c.IP(),
		}
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			attrs = append(attrs, "request_id", id)
		}
		logger.InfoContext(c.UserContext(), "request", attrs...)
		return err
	}
}

// SecurityHeaders sets the response headers every API response carries.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Protocol() == "https" {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		return c.Next()
	}
}

// Authenticated loads the signed-in actor from the session into the fiber locals and rejects
// requests without one. With accounts set, the actor is reloaded from the stored account: a
// deactivated or deleted account ends the session and a changed role or name replaces the
// session copy.
func Authenticated(sessions *session.Store, accounts access.UserGetter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return err
		}
		actor, ok := actorFromSession(sess)
		if !ok {
			return fail(c, fiber.StatusUnauthorized, "Not signed in")
		}

		if accounts != nil {
			user, err := accounts.GetUserByID(c.UserContext(), actor.ID)
			if err != nil && !errors.Is(err, database.ErrUserNotFound) {
				return err
			}
			if err != nil || !user.IsActive() {
				if err := sess.Destroy(); err != nil {
					return err
				}
				return fail(c, fiber.StatusUnauthorized, "Session ended, please sign in again")
			}
			if current := user.Actor(); current != actor {
				actor = current
				storeActor(sess, actor)
				if err := sess.Save(); err != nil {
					return err
				}
			}
		}

		c.Locals(localActor, actor)
		c.Locals(localSessionID, sess.ID())
		return c.Next()
	}
}

func actorFromSession(sess *session.Session) (model.Actor, bool) {
	rawID, _ := sess.Get(sessionActorID).(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.Actor{}, false
	}
	name, _ := sess.Get(sessionActorName).(string)
	role, _ := sess.Get(sessionActorRole).(string)
	actor := model.Actor{ID: id, Name: name, Role: model.Role(role)}
	if !actor.Role.IsValid() {
		return model.Actor{}, false
	}
	return actor, true
}

func storeActor(sess *session.Session, actor model.Actor) {
	sess.Set(sessionActorID, actor.ID.String())
	sess.Set(sessionActorName, actor.Name)
	sess.Set(sessionActorRole, string(actor.Role))
}

func actorOf(c *fiber.Ctx) model.Actor {
	actor, _ := c.Locals(localActor).(model.Actor)
	return actor
}

func sessionIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localSessionID).(string)
	return id
}
