package web

import (
	"realtycrm/internal/lead"
	"realtycrm/internal/model"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

type noteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type leadStatusRequest struct {
	Status model.LeadStatus `json:"status" validate:"required,lead_status"`
}

func (s *Server) ListLeads(c *fiber.Ctx) error {
	filter := lead.ListFilter{
		Status: model.LeadStatus(c.Query("status")),
		Search: c.Query("search"),
		Page:   pageQuery(c),
	}
	return ok(c, s.Leads.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) GetLead(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	l, err := s.Leads.Get(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, l)
}

func (s *Server) CreateLead(c *fiber.Ctx) error {
	var in lead.CreateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	l, err := s.Leads.Create(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, l)
}

func (s *Server) UpdateLead(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in lead.UpdateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	l, err := s.Leads.Update(telemetry.ContextFromFiber(c), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, l)
}

func (s *Server) SetLeadStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req leadStatusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	l, err := s.Leads.SetStatus(telemetry.ContextFromFiber(c), actorOf(c), id, req.Status)
	if err != nil {
		return err
	}
	return ok(c, l)
}

func (s *Server) AddLeadNote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	l, err := s.Leads.AddNote(telemetry.ContextFromFiber(c), actorOf(c), id, req.Text)
	if err != nil {
		return err
	}
	return ok(c, l)
}

func (s *Server) DeleteLead(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Leads.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
