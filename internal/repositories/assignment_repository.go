package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type AssignmentRepository interface {
	// Upsert links cleaner and property; calling it again is a no-op.
	Upsert(ctx context.Context, propertyID, cleanerID uuid.UUID) error
	Exists(ctx context.Context, propertyID, cleanerID uuid.UUID) (bool, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.PropertyCleanerAssignment, error)
}

type assignmentRepo struct {
	db DB
}

func NewAssignmentRepository(db DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Upsert(ctx context.Context, propertyID, cleanerID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO property_cleaners (property_id, cleaner_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (property_id, cleaner_id) DO NOTHING
    `, propertyID, cleanerID)
	return err
}

func (r *assignmentRepo) Exists(ctx context.Context, propertyID, cleanerID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM property_cleaners WHERE property_id=$1 AND cleaner_id=$2
        )
    `, propertyID, cleanerID).Scan(&ok)
	return ok, err
}

func (r *assignmentRepo) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.PropertyCleanerAssignment, error) {
	rows, err := r.db.Query(ctx, `
        SELECT property_id, cleaner_id, created_at
        FROM property_cleaners
        WHERE property_id=$1
        ORDER BY created_at
    `, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PropertyCleanerAssignment
	for rows.Next() {
		var a models.PropertyCleanerAssignment
		if err := rows.Scan(&a.PropertyID, &a.CleanerID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
