package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type PropertyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	// GetTemplateShot resolves a shot to its template's property, or nil.
	GetTemplateShot(ctx context.Context, shotID uuid.UUID) (*models.TemplateShot, error)
}

type propertyRepo struct {
	db DB
}

func NewPropertyRepository(db DB) PropertyRepository {
	return &propertyRepo{db: db}
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, org_id, manager_id, name, latitude, longitude, created_at
        FROM properties
        WHERE id=$1
    `, id)
	var p models.Property
	err := row.Scan(&p.ID, &p.OrgID, &p.ManagerID, &p.Name, &p.Latitude, &p.Longitude, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepo) GetTemplateShot(ctx context.Context, shotID uuid.UUID) (*models.TemplateShot, error) {
	row := r.db.QueryRow(ctx, `
        SELECT s.id, s.template_id, t.property_id, s.area_key
        FROM template_shots s
        JOIN checklist_templates t ON t.id = s.template_id
        WHERE s.id=$1
    `, shotID)
	var s models.TemplateShot
	err := row.Scan(&s.ID, &s.TemplateID, &s.PropertyID, &s.AreaKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
