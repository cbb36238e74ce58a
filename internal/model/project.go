package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusUpcoming  ProjectStatus = "upcoming"
	ProjectStatusOngoing   ProjectStatus = "ongoing"
	ProjectStatusCompleted ProjectStatus = "completed"
)

var ProjectStatuses = []ProjectStatus{ProjectStatusUpcoming, ProjectStatusOngoing, ProjectStatusCompleted}

func (s ProjectStatus) IsValid() bool {
	return slices.Contains(ProjectStatuses, s)
}

type Project struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	Developer   string        `json:"developer"`
	PriceMin    int64         `json:"price_min"`
	PriceMax    int64         `json:"price_max"`
	Status      ProjectStatus `json:"status"`
	Photos      []string      `json:"photos"`
	Amenities   []string      `json:"amenities"`
	CreatedBy   uuid.UUID     `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
