package web

import (
	"realtycrm/internal/leave"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// ListLeaves serves both the request history and, with pending=true, the approval queue.
func (s *Server) ListLeaves(c *fiber.Ctx) error {
	filter := leave.ListFilter{
		PendingOnly: c.QueryBool("pending", false),
		Status:      model.LeaveStatus(c.Query("status")),
		Page:        pageQuery(c),
	}
	return ok(c, s.Leaves.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) RequestLeave(c *fiber.Ctx) error {
	var in leave.RequestInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	l, err := s.Leaves.Request(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, l)
}

func (s *Server) ApproveLeave(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	l, err := s.Leaves.Approve(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, l)
}

// RejectLeave accepts an empty body; the reason is optional.
func (s *Server) RejectLeave(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req rejectRequest
	if len(c.Body()) > 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}
	l, err := s.Leaves.Reject(telemetry.ContextFromFiber(c), actorOf(c), id, req.Reason)
	if err != nil {
		return err
	}
	return ok(c, l)
}

func (s *Server) DeleteLeave(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Leaves.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
