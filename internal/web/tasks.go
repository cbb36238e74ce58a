package web

import (
	"realtycrm/internal/model"
	"realtycrm/internal/task"
	"realtycrm/internal/telemetry"

	"github.com/gofiber/fiber/v2"
)

type taskStatusRequest struct {
	Status model.TaskStatus `json:"status" validate:"required,task_status"`
}

func (s *Server) ListTasks(c *fiber.Ctx) error {
	leadID, err := uuidQuery(c, "lead_id")
	if err != nil {
		return err
	}
	filter := task.ListFilter{
		LeadID: leadID,
		Status: model.TaskStatus(c.Query("status")),
		Page:   pageQuery(c),
	}
	return ok(c, s.Tasks.List(telemetry.ContextFromFiber(c), actorOf(c), filter))
}

func (s *Server) GetTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	t, err := s.Tasks.Get(telemetry.ContextFromFiber(c), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, t)
}

func (s *Server) CreateTask(c *fiber.Ctx) error {
	var in task.CreateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	t, err := s.Tasks.Create(telemetry.ContextFromFiber(c), actorOf(c), in)
	if err != nil {
		return err
	}
	return created(c, t)
}

func (s *Server) UpdateTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in task.UpdateInput
	if err := s.bind(c, &in); err != nil {
		return err
	}
	t, err := s.Tasks.Update(telemetry.ContextFromFiber(c), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, t)
}

func (s *Server) SetTaskStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req taskStatusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	t, err := s.Tasks.SetStatus(telemetry.ContextFromFiber(c), actorOf(c), id, req.Status)
	if err != nil {
		return err
	}
	return ok(c, t)
}

func (s *Server) AddTaskNote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	t, err := s.Tasks.AddNote(telemetry.ContextFromFiber(c), actorOf(c), id, req.Text)
	if err != nil {
		return err
	}
	return ok(c, t)
}

func (s *Server) AddTaskAttachment(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	attachment, err := s.Tasks.AddAttachment(telemetry.ContextFromFiber(c), actorOf(c), id, task.Upload{
		Name:    fh.Filename,
		Size:    fh.Size,
		Content: f,
	})
	if err != nil {
		return err
	}
	return created(c, attachment)
}

// TaskAttachmentURL returns a download link for the attachment named by the key query parameter.
func (s *Server) TaskAttachmentURL(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	key := c.Query("key")
	if key == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing key")
	}
	url, err := s.Tasks.AttachmentURL(telemetry.ContextFromFiber(c), actorOf(c), id, key)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"url": url})
}

func (s *Server) DeleteTask(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.Tasks.Delete(telemetry.ContextFromFiber(c), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, nil)
}
