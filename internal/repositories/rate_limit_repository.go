package repositories

import (
	"context"
	"fmt"
	"time"
)

// RateLimitRepository keeps fixed-window counters in rate_limit_attempts.
type RateLimitRepository interface {
	// Hit increments the counter for key and reports whether it is still
	// within limit for the current window.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type rateLimitRepo struct {
	db DB
}

func NewRateLimitRepository(db DB) RateLimitRepository {
	return &rateLimitRepo{db: db}
}

// OTPSendKey is the counter key for SMS code sends to one phone.
func OTPSendKey(phone string) string {
	return fmt.Sprintf("otp_send:%s", phone)
}

func (r *rateLimitRepo) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        INSERT INTO rate_limit_attempts (key, attempt_count, expires_at)
        VALUES ($1, 1, NOW() + $2::interval)
        ON CONFLICT (key) DO UPDATE
        SET attempt_count = CASE
                WHEN rate_limit_attempts.expires_at < NOW() THEN 1
                ELSE rate_limit_attempts.attempt_count + 1
            END,
            expires_at = CASE
                WHEN rate_limit_attempts.expires_at < NOW() THEN NOW() + $2::interval
                ELSE rate_limit_attempts.expires_at
            END
        RETURNING attempt_count
    `, key, window).Scan(&count)
	if err != nil {
		return false, err
	}
	return count <= limit, nil
}

func (r *rateLimitRepo) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM rate_limit_attempts WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
