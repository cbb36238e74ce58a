package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"realtycrm/internal/model"

	"github.com/go-playground/validator/v10"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-]`)
	loginIDRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so messages match the request body.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	v.RegisterValidation("password_strength", validatePasswordStrength)
	v.RegisterValidation("login_id", validateLoginID)
	v.RegisterValidation("role", enumValidator(func(s string) bool { return model.Role(s).IsValid() }))
	v.RegisterValidation("lead_status", enumValidator(func(s string) bool { return model.LeadStatus(s).IsValid() }))
	v.RegisterValidation("task_status", enumValidator(func(s string) bool { return model.TaskStatus(s).IsValid() }))
	v.RegisterValidation("project_status", enumValidator(func(s string) bool { return model.ProjectStatus(s).IsValid() }))
	v.RegisterValidation("leave_type", enumValidator(func(s string) bool { return model.LeaveType(s).IsValid() }))
	v.RegisterValidation("priority", enumValidator(func(s string) bool { return model.Priority(s).IsValid() }))
	v.RegisterValidation("module", enumValidator(func(s string) bool { return model.Module(s).IsValid() }))
	v.RegisterValidation("action", enumValidator(func(s string) bool { return model.Action(s).IsValid() }))
	v.RegisterValidation("audience_role", enumValidator(func(s string) bool {
		return s == string(model.RoleManager) || s == string(model.RoleStaff)
	}))

	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Message renders validation errors as "field: rule" pairs. Other errors pass through.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func enumValidator(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	}
}

func validatePasswordStrength(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}
	return upperRe.MatchString(password) &&
		lowerRe.MatchString(password) &&
		digitRe.MatchString(password) &&
		specialRe.MatchString(password)
}

func validateLoginID(fl validator.FieldLevel) bool {
	return loginIDRe.MatchString(fl.Field().String())
}
