package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type CleanerRepository interface {
	PhoneContactRepository

	GetByID(ctx context.Context, id uuid.UUID) (*models.Cleaner, error)
	GetByPhone(ctx context.Context, phone string) (*models.Cleaner, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Cleaner, error)
	// CreateIfNotExists inserts c unless its phone is taken, then returns the
	// row that owns the phone.
	CreateIfNotExists(ctx context.Context, c *models.Cleaner) (*models.Cleaner, error)
}

type cleanerRepo struct {
	*phoneContactTable
	db DB
}

func NewCleanerRepository(db DB) CleanerRepository {
	return &cleanerRepo{
		phoneContactTable: &phoneContactTable{db: db, table: "cleaners"},
		db:                db,
	}
}

func baseSelectCleaner() string {
	return `
        SELECT
            id, user_id, display_name, preferred_language, stripe_connect_account_id,
            phone, sms_consent, sms_consent_at, sms_opt_out_at, phone_verified_at,
            created_at, updated_at
        FROM cleaners
    `
}

func scanCleaner(row pgx.Row) (*models.Cleaner, error) {
	var c models.Cleaner
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.DisplayName,
		&c.PreferredLanguage,
		&c.StripeConnectAccountID,
		&c.Phone,
		&c.SMSConsent,
		&c.SMSConsentAt,
		&c.SMSOptOutAt,
		&c.PhoneVerifiedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *cleanerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cleaner, error) {
	return scanCleaner(r.db.QueryRow(ctx, baseSelectCleaner()+" WHERE id=$1", id))
}

func (r *cleanerRepo) GetByPhone(ctx context.Context, phone string) (*models.Cleaner, error) {
	return scanCleaner(r.db.QueryRow(ctx, baseSelectCleaner()+" WHERE phone=$1", phone))
}

func (r *cleanerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Cleaner, error) {
	return scanCleaner(r.db.QueryRow(ctx, baseSelectCleaner()+" WHERE user_id=$1", userID))
}

func (r *cleanerRepo) CreateIfNotExists(ctx context.Context, c *models.Cleaner) (*models.Cleaner, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.PreferredLanguage == "" {
		c.PreferredLanguage = "en"
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO cleaners (
            id, display_name, preferred_language, phone,
            sms_consent, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,FALSE,NOW(),NOW())
        ON CONFLICT (phone) DO NOTHING
    `,
		c.ID,
		c.DisplayName,
		c.PreferredLanguage,
		c.Phone,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByPhone(ctx, *c.Phone)
}
