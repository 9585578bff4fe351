package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

// photoShapeAdapter maps logical photo operations onto one physical table.
type photoShapeAdapter interface {
	insert(ctx context.Context, q DB, p *models.TurnPhoto) error
	list(ctx context.Context, q DB, turnID uuid.UUID) ([]*models.TurnPhoto, error)
	// applyNote flags one photo and returns how many rows it touched.
	applyNote(ctx context.Context, q DB, turnID uuid.UUID, n models.PhotoNote) (int64, error)
}

func adapterFor(shape models.PhotoRecordShape) (photoShapeAdapter, error) {
	switch shape {
	case models.PhotoShapeV1:
		return legacyPhotoAdapter{}, nil
	case models.PhotoShapeV2:
		return currentPhotoAdapter{}, nil
	}
	return nil, fmt.Errorf("unknown photo record shape %q", shape)
}

// legacyPhotoAdapter: turn_photos_legacy, keyed by storage path, one note column.
type legacyPhotoAdapter struct{}

func (legacyPhotoAdapter) insert(ctx context.Context, q DB, p *models.TurnPhoto) error {
	_, err := q.Exec(ctx, `
        INSERT INTO turn_photos_legacy (turn_id, area_key, storage_path, created_at)
        VALUES ($1,$2,$3,NOW())
    `, p.TurnID, p.AreaKey, p.StoragePath)
	return err
}

func (legacyPhotoAdapter) list(ctx context.Context, q DB, turnID uuid.UUID) ([]*models.TurnPhoto, error) {
	rows, err := q.Query(ctx, `
        SELECT turn_id, area_key, storage_path, manager_note, created_at
        FROM turn_photos_legacy
        WHERE turn_id=$1
        ORDER BY created_at
    `, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TurnPhoto
	for rows.Next() {
		p := &models.TurnPhoto{Shape: models.PhotoShapeV1}
		if err := rows.Scan(&p.TurnID, &p.AreaKey, &p.StoragePath, &p.ManagerNotes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.NeedsFix = p.ManagerNotes != nil
		out = append(out, p)
	}
	return out, rows.Err()
}

func (legacyPhotoAdapter) applyNote(ctx context.Context, q DB, turnID uuid.UUID, n models.PhotoNote) (int64, error) {
	if n.StoragePath == "" {
		return 0, nil
	}
	tag, err := q.Exec(ctx, `
        UPDATE turn_photos_legacy
        SET manager_note = $3
        WHERE turn_id = $1 AND storage_path = $2
    `, turnID, n.StoragePath, n.Note)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// currentPhotoAdapter: turn_photos, keyed by id with fix tracking.
type currentPhotoAdapter struct{}

func (currentPhotoAdapter) insert(ctx context.Context, q DB, p *models.TurnPhoto) error {
	if p.ID == nil {
		id := uuid.New()
		p.ID = &id
	}
	_, err := q.Exec(ctx, `
        INSERT INTO turn_photos (
            id, turn_id, shot_id, area_key, storage_path, is_fix, needs_fix, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,FALSE,NOW())
    `, p.ID, p.TurnID, p.ShotID, p.AreaKey, p.StoragePath, p.IsFix)
	return err
}

func (currentPhotoAdapter) list(ctx context.Context, q DB, turnID uuid.UUID) ([]*models.TurnPhoto, error) {
	rows, err := q.Query(ctx, `
        SELECT id, turn_id, shot_id, area_key, storage_path, is_fix, needs_fix, manager_notes, created_at
        FROM turn_photos
        WHERE turn_id=$1
        ORDER BY created_at
    `, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TurnPhoto
	for rows.Next() {
		p := &models.TurnPhoto{Shape: models.PhotoShapeV2}
		var id uuid.UUID
		if err := rows.Scan(&id, &p.TurnID, &p.ShotID, &p.AreaKey, &p.StoragePath, &p.IsFix, &p.NeedsFix, &p.ManagerNotes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ID = &id
		out = append(out, p)
	}
	return out, rows.Err()
}

func (currentPhotoAdapter) applyNote(ctx context.Context, q DB, turnID uuid.UUID, n models.PhotoNote) (int64, error) {
	var (
		sql  string
		args []any
	)
	switch {
	case n.PhotoID != nil:
		sql = `UPDATE turn_photos SET needs_fix = TRUE, manager_notes = $3 WHERE turn_id = $1 AND id = $2`
		args = []any{turnID, *n.PhotoID, n.Note}
	case n.StoragePath != "":
		sql = `UPDATE turn_photos SET needs_fix = TRUE, manager_notes = $3 WHERE turn_id = $1 AND storage_path = $2`
		args = []any{turnID, n.StoragePath, n.Note}
	default:
		return 0, nil
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

