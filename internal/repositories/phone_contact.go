package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// PhoneContactRepository is the phone/consent surface shared by the
// cleaners and managers tables.
type PhoneContactRepository interface {
	// CheckPhoneClaim reports whether row id may take phone once a code sent
	// to it is verified. It writes nothing. Returns utils.ErrPhoneExists when
	// another row owns the number, utils.ErrPhoneClaimed when id already holds
	// a different phone and utils.ErrNotFound when id is unknown.
	CheckPhoneClaim(ctx context.Context, id uuid.UUID, phone string) error
	// MarkPhoneVerified binds phone to row id only if the row has no phone
	// or already holds it; errors as CheckPhoneClaim.
	MarkPhoneVerified(ctx context.Context, id uuid.UUID, phone string, at time.Time) error
	IsOptedOut(ctx context.Context, phone string) (bool, error)
	// SetOptOut keeps the first opt-out timestamp, so repeated STOPs are no-ops.
	SetOptOut(ctx context.Context, phone string, at time.Time) (int64, error)
	ClearOptOut(ctx context.Context, phone string, at time.Time) (int64, error)
}

type phoneContactTable struct {
	db    DB
	table string
}

func (p *phoneContactTable) CheckPhoneClaim(ctx context.Context, id uuid.UUID, phone string) error {
	q := fmt.Sprintf(`
        SELECT phone,
               EXISTS (SELECT 1 FROM %[1]s WHERE phone = $2 AND id <> $1)
        FROM %[1]s
        WHERE id = $1
    `, p.table)
	var (
		current *string
		taken   bool
	)
	if err := p.db.QueryRow(ctx, q, id, phone).Scan(&current, &taken); err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrNotFound
		}
		return err
	}
	switch {
	case taken:
		return utils.ErrPhoneExists
	case current != nil && *current != phone:
		return utils.ErrPhoneClaimed
	}
	return nil
}

func (p *phoneContactTable) MarkPhoneVerified(ctx context.Context, id uuid.UUID, phone string, at time.Time) error {
	q := fmt.Sprintf(`
        UPDATE %s
        SET phone = $2,
            phone_verified_at = $3,
            sms_consent = TRUE,
            sms_consent_at = COALESCE(sms_consent_at, $3),
            updated_at = NOW()
        WHERE id = $1 AND (phone IS NULL OR phone = $2)
    `, p.table)
	tag, err := p.db.Exec(ctx, q, id, phone, at)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.ErrPhoneExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		if err := p.CheckPhoneClaim(ctx, id, phone); err != nil {
			return err
		}
		return utils.ErrPhoneClaimed
	}
	return nil
}

func (p *phoneContactTable) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE phone = $1 AND sms_opt_out_at IS NOT NULL)`, p.table)
	var out bool
	if err := p.db.QueryRow(ctx, q, phone).Scan(&out); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return out, nil
}

func (p *phoneContactTable) SetOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	q := fmt.Sprintf(`
        UPDATE %s
        SET sms_opt_out_at = COALESCE(sms_opt_out_at, $2),
            updated_at = NOW()
        WHERE phone = $1
    `, p.table)
	tag, err := p.db.Exec(ctx, q, phone, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *phoneContactTable) ClearOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	q := fmt.Sprintf(`
        UPDATE %s
        SET sms_opt_out_at = NULL,
            sms_consent = TRUE,
            sms_consent_at = $2,
            updated_at = NOW()
        WHERE phone = $1
    `, p.table)
	tag, err := p.db.Exec(ctx, q, phone, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
