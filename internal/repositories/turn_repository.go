package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// TurnTransition describes one status change and everything that must
// commit with it.
type TurnTransition struct {
	TurnID     uuid.UUID
	From       models.TurnStatus
	To         models.TurnStatus
	At         time.Time
	ApprovedBy *uuid.UUID

	NewPhotos   []*models.TurnPhoto
	PhotoNotes  []models.PhotoNote
	ManagerNote *models.NoteVariants
	CleanerNote *models.NoteVariants
	Event       *models.TurnEvent
}

type TransitionResult struct {
	Turn         *models.Turn
	FlaggedCount int
}

type TurnRepository interface {
	// Create inserts the turn and its STARTED event together.
	Create(ctx context.Context, t *models.Turn, ev *models.TurnEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Turn, error)
	ListPhotos(ctx context.Context, t *models.Turn) ([]*models.TurnPhoto, error)
	// Transition applies tr atomically. The status update is conditioned on
	// tr.From; utils.ErrWrongStatus is returned when the row moved on and
	// utils.ErrNotFound when it does not exist.
	Transition(ctx context.Context, tr TurnTransition) (*TransitionResult, error)
}

type turnRepo struct {
	db DB
}

func NewTurnRepository(db DB) TurnRepository {
	return &turnRepo{db: db}
}

func baseSelectTurn() string {
	return `
        SELECT
            id, property_id, cleaner_id, manager_id, status, photo_shape,
            manager_note_original, manager_note_translated, manager_note_sent,
            cleaner_note_original, cleaner_note_translated, cleaner_note_sent,
            started_at, submitted_at, needs_fix_at, last_fix_submitted_at,
            approved_at, approved_by,
            row_version, created_at, updated_at
        FROM turns
    `
}

func scanTurn(row pgx.Row) (*models.Turn, error) {
	var t models.Turn
	err := row.Scan(
		&t.ID,
		&t.PropertyID,
		&t.CleanerID,
		&t.ManagerID,
		&t.Status,
		&t.PhotoShape,
		&t.ManagerNote.Original,
		&t.ManagerNote.Translated,
		&t.ManagerNote.Sent,
		&t.CleanerNote.Original,
		&t.CleanerNote.Translated,
		&t.CleanerNote.Sent,
		&t.StartedAt,
		&t.SubmittedAt,
		&t.NeedsFixAt,
		&t.LastFixSubmittedAt,
		&t.ApprovedAt,
		&t.ApprovedBy,
		&t.RowVersion,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *turnRepo) Create(ctx context.Context, t *models.Turn, ev *models.TurnEvent) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.PhotoShape == "" {
		t.PhotoShape = models.PhotoShapeV2
	}
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO turns (
                id, property_id, cleaner_id, manager_id, status, photo_shape,
                started_at, row_version, created_at, updated_at
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,1,NOW(),NOW())
        `,
			t.ID,
			t.PropertyID,
			t.CleanerID,
			t.ManagerID,
			t.Status,
			t.PhotoShape,
			t.StartedAt,
		)
		if err != nil {
			return err
		}
		if ev != nil {
			ev.TurnID = t.ID
			if err := insertTurnEvent(ctx, tx, ev); err != nil {
				return err
			}
		}
		created, err := scanTurn(tx.QueryRow(ctx, baseSelectTurn()+" WHERE id=$1", t.ID))
		if err != nil {
			return err
		}
		*t = *created
		return nil
	})
}

func (r *turnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	return scanTurn(r.db.QueryRow(ctx, baseSelectTurn()+" WHERE id=$1", id))
}

func (r *turnRepo) ListPhotos(ctx context.Context, t *models.Turn) ([]*models.TurnPhoto, error) {
	adapter, err := adapterFor(t.PhotoShape)
	if err != nil {
		return nil, err
	}
	return adapter.list(ctx, r.db, t.ID)
}

func (r *turnRepo) Transition(ctx context.Context, tr TurnTransition) (*TransitionResult, error) {
	if !tr.From.CanTransitionTo(tr.To) {
		return nil, fmt.Errorf("%w: %s -> %s", utils.ErrWrongStatus, tr.From, tr.To)
	}

	set, args := transitionSetClause(tr)
	query := fmt.Sprintf(`
        UPDATE turns
        SET %s
        WHERE id = $1 AND status = $2
        RETURNING photo_shape
    `, set)

	res := &TransitionResult{}
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var shape models.PhotoRecordShape
		if err := tx.QueryRow(ctx, query, args...).Scan(&shape); err != nil {
			if err == pgx.ErrNoRows {
				return r.explainMissedTransition(ctx, tx, tr)
			}
			return err
		}

		adapter, err := adapterFor(shape)
		if err != nil {
			return err
		}
		for _, p := range tr.NewPhotos {
			p.TurnID = tr.TurnID
			p.Shape = shape
			if err := adapter.insert(ctx, tx, p); err != nil {
				return fmt.Errorf("insert photo %s: %w", p.StoragePath, err)
			}
		}
		for _, n := range tr.PhotoNotes {
			touched, err := adapter.applyNote(ctx, tx, tr.TurnID, n)
			if err != nil {
				return fmt.Errorf("apply photo note: %w", err)
			}
			res.FlaggedCount += int(touched)
		}
		if tr.Event != nil {
			tr.Event.TurnID = tr.TurnID
			if err := insertTurnEvent(ctx, tx, tr.Event); err != nil {
				return err
			}
		}

		updated, err := scanTurn(tx.QueryRow(ctx, baseSelectTurn()+" WHERE id=$1", tr.TurnID))
		if err != nil {
			return err
		}
		res.Turn = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *turnRepo) explainMissedTransition(ctx context.Context, q DB, tr TurnTransition) error {
	var current models.TurnStatus
	err := q.QueryRow(ctx, `SELECT status FROM turns WHERE id=$1`, tr.TurnID).Scan(&current)
	if err == pgx.ErrNoRows {
		return utils.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: turn is %s, expected %s", utils.ErrWrongStatus, current, tr.From)
}

// transitionSetClause builds the SET list; $1 is the id and $2 the expected status.
func transitionSetClause(tr TurnTransition) (string, []any) {
	args := []any{tr.TurnID, tr.From}
	parts := []string{"row_version = row_version + 1", "updated_at = NOW()"}
	add := func(col string, v any) {
		args = append(args, v)
		parts = append(parts, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	add("status", tr.To)
	switch {
	case tr.To == models.TurnStatusSubmitted && tr.From == models.TurnStatusNeedsFix:
		add("last_fix_submitted_at", tr.At)
	case tr.To == models.TurnStatusSubmitted:
		add("submitted_at", tr.At)
	case tr.To == models.TurnStatusNeedsFix:
		add("needs_fix_at", tr.At)
	case tr.To == models.TurnStatusApproved:
		add("approved_at", tr.At)
		add("approved_by", tr.ApprovedBy)
	}
	if tr.ManagerNote != nil {
		add("manager_note_original", tr.ManagerNote.Original)
		add("manager_note_translated", tr.ManagerNote.Translated)
		add("manager_note_sent", tr.ManagerNote.Sent)
	}
	if tr.CleanerNote != nil {
		add("cleaner_note_original", tr.CleanerNote.Original)
		add("cleaner_note_translated", tr.CleanerNote.Translated)
		add("cleaner_note_sent", tr.CleanerNote.Sent)
	}
	return strings.Join(parts, ", "), args
}

func insertTurnEvent(ctx context.Context, q DB, ev *models.TurnEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `
        INSERT INTO turn_events (id, turn_id, action, actor_role, actor_id, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,NOW())
    `,
		ev.ID,
		ev.TurnID,
		ev.Action,
		ev.ActorRole,
		ev.ActorID,
		ev.Details,
	)
	return err
}
