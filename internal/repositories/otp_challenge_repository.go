package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type OTPChallengeRepository interface {
	Create(ctx context.Context, c *models.OTPChallenge) error
	// GetLatest returns the newest challenge for (role, phone), used or not.
	// Older challenges are superseded by it.
	GetLatest(ctx context.Context, role models.Role, phone string) (*models.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	// MarkUsed stamps used_at only if still unused; false means someone else won.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type otpChallengeRepo struct {
	db DB
}

func NewOTPChallengeRepository(db DB) OTPChallengeRepository {
	return &otpChallengeRepo{db: db}
}

func (r *otpChallengeRepo) Create(ctx context.Context, c *models.OTPChallenge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
        INSERT INTO otp_challenges (
            id, role, subject_id, phone, code_hash, attempts, expires_at, created_at
        ) VALUES ($1,$2,$3,$4,$5,0,$6,NOW())
        RETURNING created_at
    `,
		c.ID,
		c.Role,
		c.SubjectID,
		c.Phone,
		c.CodeHash,
		c.ExpiresAt,
	).Scan(&c.CreatedAt)
}

func (r *otpChallengeRepo) GetLatest(ctx context.Context, role models.Role, phone string) (*models.OTPChallenge, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, role, subject_id, phone, code_hash, attempts, expires_at, used_at, created_at
        FROM otp_challenges
        WHERE role=$1 AND phone=$2
        ORDER BY created_at DESC
        LIMIT 1
    `, role, phone)

	var c models.OTPChallenge
	err := row.Scan(
		&c.ID,
		&c.Role,
		&c.SubjectID,
		&c.Phone,
		&c.CodeHash,
		&c.Attempts,
		&c.ExpiresAt,
		&c.UsedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *otpChallengeRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

func (r *otpChallengeRepo) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE otp_challenges
        SET used_at = $2
        WHERE id = $1 AND used_at IS NULL
    `, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *otpChallengeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM otp_challenges WHERE id = $1`, id)
	return err
}

func (r *otpChallengeRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_challenges WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
