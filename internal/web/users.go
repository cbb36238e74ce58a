package web

import (
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/user"

	"github.com/gofiber/fiber/v2"
)

type userStatusRequest struct {
	Status model.UserStatus `json:"status" validate:"required,oneof=active inactive"`
}

func (s *Server) ListUsers(c *fiber.Ctx) error {
	filter := user.ListFilter{
		Role:   model.Role(c.Query("role")),
		Status: model.UserStatus(c.Query("status")),
		Page:   pageQuery(c),
	}
	return ok(c, s.Users.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	u, err := s.Users.Get(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (s *Server) CreateUser(c *fiber.Ctx) error {
	var in user.CreateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	u, err := s.Users.Create(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, u)
}

func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in user.UpdateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	u, err := s.Users.Update(telemetry.ContextFromFiber(c), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (s *Server) SetUserStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req userStatusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	u, err := s.Users.SetStatus(telemetry.ContextFromFiber(c), actorOf(c), id, req.Status)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Users.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
