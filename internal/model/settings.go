package model

import (
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

// Settings is the dashboard presentation configuration. It is read once per render and only
// changed through settings.Manager.Update.
type Settings struct {
	CompanyName  string                   `json:"company_name"`
	PrimaryColor string                   `json:"primary_color"`
	AccentColor  string                   `json:"accent_color"`
	LogoURL      string                   `json:"logo_url"`
	DarkMode     bool                     `json:"dark_mode"`
	UpdatedBy    util.Optional[uuid.UUID] `json:"updated_by"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		CompanyName:  "Realty CRM",
		PrimaryColor: "#1d4ed8",
		AccentColor:  "#f59e0b",
	}
}
