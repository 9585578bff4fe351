package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type NotificationAttemptRepository interface {
	Create(ctx context.Context, a *models.NotificationAttempt) error
	ListByTurn(ctx context.Context, turnID uuid.UUID) ([]*models.NotificationAttempt, error)
}

type notificationAttemptRepo struct {
	db DB
}

func NewNotificationAttemptRepository(db DB) NotificationAttemptRepository {
	return &notificationAttemptRepo{db: db}
}

func (r *notificationAttemptRepo) Create(ctx context.Context, a *models.NotificationAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
        INSERT INTO notification_attempts (
            id, turn_id, kind, recipient_role, recipient_id, sent, reason, provider_id, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        RETURNING created_at
    `,
		a.ID,
		a.TurnID,
		a.Kind,
		a.RecipientRole,
		a.RecipientID,
		a.Sent,
		a.Reason,
		a.ProviderID,
	).Scan(&a.CreatedAt)
}

func (r *notificationAttemptRepo) ListByTurn(ctx context.Context, turnID uuid.UUID) ([]*models.NotificationAttempt, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, turn_id, kind, recipient_role, recipient_id, sent, reason, provider_id, created_at
        FROM notification_attempts
        WHERE turn_id=$1
        ORDER BY created_at
    `, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.NotificationAttempt
	for rows.Next() {
		a := &models.NotificationAttempt{}
		if err := rows.Scan(
			&a.ID,
			&a.TurnID,
			&a.Kind,
			&a.RecipientRole,
			&a.RecipientID,
			&a.Sent,
			&a.Reason,
			&a.ProviderID,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
