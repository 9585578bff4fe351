package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

type ManagerRepository interface {
	PhoneContactRepository

	GetByID(ctx context.Context, id uuid.UUID) (*models.Manager, error)
	GetByPhone(ctx context.Context, phone string) (*models.Manager, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Manager, error)
	// GetMostRecentlyVerifiedInOrg returns the org's manager whose phone was
	// verified last, or nil.
	GetMostRecentlyVerifiedInOrg(ctx context.Context, orgID uuid.UUID) (*models.Manager, error)
}

type managerRepo struct {
	*phoneContactTable
	db DB
}

func NewManagerRepository(db DB) ManagerRepository {
	return &managerRepo{
		phoneContactTable: &phoneContactTable{db: db, table: "managers"},
		db:                db,
	}
}

func baseSelectManager() string {
	return `
        SELECT
            id, user_id, org_id, display_name, email,
            phone, sms_consent, sms_consent_at, sms_opt_out_at, phone_verified_at,
            created_at, updated_at
        FROM managers
    `
}

func scanManager(row pgx.Row) (*models.Manager, error) {
	var m models.Manager
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.OrgID,
		&m.DisplayName,
		&m.Email,
		&m.Phone,
		&m.SMSConsent,
		&m.SMSConsentAt,
		&m.SMSOptOutAt,
		&m.PhoneVerifiedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *managerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Manager, error) {
	return scanManager(r.db.QueryRow(ctx, baseSelectManager()+" WHERE id=$1", id))
}

func (r *managerRepo) GetByPhone(ctx context.Context, phone string) (*models.Manager, error) {
	return scanManager(r.db.QueryRow(ctx, baseSelectManager()+" WHERE phone=$1", phone))
}

func (r *managerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Manager, error) {
	return scanManager(r.db.QueryRow(ctx, baseSelectManager()+" WHERE user_id=$1", userID))
}

func (r *managerRepo) GetMostRecentlyVerifiedInOrg(ctx context.Context, orgID uuid.UUID) (*models.Manager, error) {
	return scanManager(r.db.QueryRow(ctx, baseSelectManager()+`
        WHERE org_id=$1 AND phone IS NOT NULL AND phone_verified_at IS NOT NULL
        ORDER BY phone_verified_at DESC
        LIMIT 1
    `, orgID))
}
