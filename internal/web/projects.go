package web

import (
	"realtycrm/internal/model"
	"realtycrm/internal/project"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) ListProjects(c *fiber.Ctx) error {
	filter := project.ListFilter{
		Status: model.ProjectStatus(c.Query("status")),
		Page:   pageQuery(c),
	}
	return ok(c, s.Projects.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) GetProject(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	p, err := s.Projects.Get(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) CreateProject(c *fiber.Ctx) error {
	var in project.CreateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	p, err := s.Projects.Create(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, p)
}

func (s *Server) UpdateProject(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in project.UpdateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	p, err := s.Projects.Update(telemetry.ContextFromFiber(c), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) AddProjectPhoto(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing photo")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	key, err := s.Projects.AddPhoto(telemetry.ContextFromFiber(c), actorOf(c), id, fh.Filename, fh.Size, f)
	if err != nil {
		return err
	}
	return created(c, fiber.Map{"key": key})
}

func (s *Server) DeleteProject(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Projects.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
