package models

import (
	"time"

	"github.com/google/uuid"
)

type Property struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     uuid.UUID  `json:"org_id"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
	Name      string     `json:"name"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	CreatedAt time.Time  `json:"created_at"`
}

// PropertyCleanerAssignment links a cleaner to a property. Unique on the pair.
type PropertyCleanerAssignment struct {
	PropertyID uuid.UUID `json:"property_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TemplateShot is a reference photo slot on a property's checklist template.
type TemplateShot struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"template_id"`
	PropertyID uuid.UUID `json:"property_id"`
	AreaKey    string    `json:"area_key"`
}
