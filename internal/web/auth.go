package web

import (
	"realtycrm/internal/access"
	"realtycrm/internal/account"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) Login(c *fiber.Ctx) error {
	var param account.LoginParam
	if err := s.bind(c, &param); err != nil {
		return err
	}

	user, err := s.Auth.Login(telemetry.ContextFromFiber(c), param)
	if err != nil {
		return err
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	// A fresh session id on sign-in also starts a fresh set of banner dismissals.
	if err := sess.Regenerate(); err != nil {
		return err
	}
	storeActor(sess, user.Actor())
	if err := sess.Save(); err != nil {
		return err
	}
	return ok(c, user)
}

func (s *Server) Logout(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	s.Auth.Logout(telemetry.ContextFromFiber(c), actorOf(c), sess.ID())
	if err := sess.Destroy(); err != nil {
		return err
	}
	return ok(c, nil)
}

type meResponse struct {
	Actor    model.Actor                        `json:"actor"`
	Modules  map[model.Module]access.ViewConfig `json:"modules"`
	Settings model.Settings                     `json:"settings"`
}

// Me returns the signed-in actor with the page configuration for every module, which drives
// the navigation and which controls the dashboard renders.
func (s *Server) Me(c *fiber.Ctx) error {
	ctx := telemetry.ContextFromFiber(c)
	actor := actorOf(c)

	modules := make(map[model.Module]access.ViewConfig, len(model.Modules))
	for _, module := range model.Modules {
		modules[module] = s.Authorizer.View(ctx, actor, module)
	}
	return ok(c, meResponse{Actor: actor, Modules: modules, Settings: s.Settings.Get(ctx)})
}
