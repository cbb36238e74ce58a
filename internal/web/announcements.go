package web

import (
	"realtycrm/internal/announcement"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) ListAnnouncements(c *fiber.Ctx) error {
	return ok(c, s.Announcements.List(telemetry.ContextFromFiber(c), actorOf(c), pageQuery(c)))
}

// AnnouncementBanner returns what the banner shows to this actor in this session.
func (s *Server) AnnouncementBanner(c *fiber.Ctx) error {
	return ok(c, s.Announcements.Banner(telemetry.ContextFromFiber(c), actorOf(c), sessionIDOf(c)))
}

func (s *Server) CreateAnnouncement(c *fiber.Ctx) error {
	var in announcement.CreateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	a, err := s.Announcements.Create(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, a)
}

func (s *Server) ToggleAnnouncement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	a, err := s.Announcements.Toggle(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, a)
}

func (s *Server) DismissAnnouncement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.Announcements.Dismiss(sessionIDOf(c), id)
	return ok(c, nil)
}

func (s *Server) DeleteAnnouncement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Announcements.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
