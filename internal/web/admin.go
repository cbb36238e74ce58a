package web

import (
	"realtycrm/internal/activity"
	"realtycrm/internal/model"
	"realtycrm/internal/settings"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) ListActivity(c *fiber.Ctx) error {
	userID, err := uuidQuery(c, "user_id")
	if err != nil {
		return err
	}
	since, err := timeQuery(c, "since")
	if err != nil {
		return err
	}
	filter := activity.ListFilter{
		UserID: userID,
		Module: model.Module(c.Query("module")),
		Since:  since,
		Page:   pageQuery(c),
	}
	return ok(c, s.Activity.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) ReportSummary(c *fiber.Ctx) error {
	summary, err := s.Reports.Summary(telemetry.ContextFromFiber(c), actorOf(c))
	if err != nil {
		return err
	}
	return ok(c, summary)
}

func (s *Server) GetSettings(c *fiber.Ctx) error {
	return ok(c, s.Settings.Get(telemetry.ContextFromFiber(c)))
}

func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var in settings.UpdateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	updated, err := s.Settings.Update(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return ok(c, updated)
}

// Health runs every registered check. Any failure turns the response into 503.
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := telemetry.ContextFromFiber(c)
	checks := make(map[string]string, len(s.opts.Health))
	healthy := true
	for name, check := range s.opts.Health {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(JSONResponseBody{Status: ResponseStatusError, Message: "Service degraded", Data: checks})
	}
	return ok(c, checks)
}
