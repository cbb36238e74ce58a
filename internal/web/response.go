package web

import (
	"errors"
	"log/slog"

	"realtycrm/internal/access"
	"realtycrm/internal/account"
	"realtycrm/internal/announcement"
	"realtycrm/internal/database"
	"realtycrm/internal/lead"
	"realtycrm/internal/leave"
	"realtycrm/internal/project"
	"realtycrm/internal/ratelimit"
	"realtycrm/internal/storage"
	"realtycrm/internal/task"
	"realtycrm/internal/transition"
	"realtycrm/internal/user"
	"realtycrm/internal/validator"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "success"
	ResponseStatusError   ResponseStatus = "error"
)

// JSONResponseBody is the envelope of every API response.
type JSONResponseBody struct {
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
}

func respond(c *fiber.Ctx, code int, data any) error {
	return c.Status(code).JSON(JSONResponseBody{Status: ResponseStatusSuccess, Data: data})
}

func ok(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data)
}

func created(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusCreated, data)
}

func fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(JSONResponseBody{Status: ResponseStatusError, Message: message})
}

var (
	notFoundErrors = []error{
		database.ErrUserNotFound,
		database.ErrLeadNotFound,
		database.ErrTaskNotFound,
		database.ErrProjectNotFound,
		database.ErrLeaveNotFound,
		database.ErrAnnouncementNotFound,
		task.ErrAttachmentNotFound,
		storage.ErrFileNotFound,
	}
	conflictErrors = []error{
		transition.ErrLeaveFinalized,
		database.ErrLoginIDTaken,
		user.ErrHasReports,
		user.ErrSelfChange,
	}
	badRequestErrors = []error{
		transition.ErrInvalidStatus,
		lead.ErrEmptyNote,
		lead.ErrBudgetRange,
		task.ErrEmptyNote,
		task.ErrInvalidAssignee,
		leave.ErrInvalidDates,
		leave.ErrInvalidType,
		user.ErrInvalidManager,
		user.ErrInvalidPermissions,
		user.ErrInvalidRole,
		user.ErrInvalidStatus,
		announcement.ErrInvalidPriority,
		announcement.ErrInvalidAudience,
		storage.ErrInvalidKey,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorStatus maps domain errors to an HTTP status. Unknown errors are internal.
func errorStatus(err error) int {
	var fe *fiber.Error
	var verrs govalidator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verrs):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, access.ErrForbidden), errors.Is(err, account.ErrAccountInactive):
		return fiber.StatusForbidden
	case errors.Is(err, account.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, ratelimit.ErrTooManyAttempts):
		return fiber.StatusTooManyRequests
	case errors.Is(err, task.ErrFileTooLarge), errors.Is(err, project.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, project.ErrNotAnImage):
		return fiber.StatusUnsupportedMediaType
	case isAny(err, notFoundErrors):
		return fiber.StatusNotFound
	case isAny(err, conflictErrors):
		return fiber.StatusConflict
	case isAny(err, badRequestErrors):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders handler errors in the response envelope. Internal errors are logged and
// their message is not exposed.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := errorStatus(err)
		if code >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
			return fail(c, code, "Internal server error")
		}
		return fail(c, code, validator.Message(err))
	}
}
