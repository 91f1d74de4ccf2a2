package cards

import (
	"context"
	"database/sql"
	"time"
)

// SQLPendingRepository persists pending cards in Postgres. At most one row
// exists per UID; a repeated tap refreshes the detection and expiry times.
type SQLPendingRepository struct {
	db *sql.DB
}

// NewPendingRepository creates a repo.
func NewPendingRepository(db *sql.DB) *SQLPendingRepository {
	return &SQLPendingRepository{db: db}
}

// Upsert inserts or refreshes a pending card and reports whether the row was
// newly created.
func (r *SQLPendingRepository) Upsert(ctx context.Context, card PendingCard) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO pending_cards (uid, device_id, detected_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE SET
			device_id   = EXCLUDED.device_id,
			detected_at = EXCLUDED.detected_at,
			expires_at  = EXCLUDED.expires_at
		RETURNING (xmax = 0)
	`, card.UID, card.DeviceID, card.DetectedAt, card.ExpiresAt)
	var created bool
	if err := row.Scan(&created); err != nil {
		return false, err
	}
	return created, nil
}

// ListActive returns non-expired pending cards, most recent first.
func (r *SQLPendingRepository) ListActive(ctx context.Context, now time.Time) ([]PendingCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uid, device_id, detected_at, expires_at
		FROM pending_cards
		WHERE expires_at > $1
		ORDER BY detected_at DESC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []PendingCard
	for rows.Next() {
		var card PendingCard
		if err := rows.Scan(&card.UID, &card.DeviceID, &card.DetectedAt, &card.ExpiresAt); err != nil {
			return nil, err
		}
		res = append(res, card)
	}
	return res, rows.Err()
}

// Delete removes a pending card, reporting whether a row existed.
func (r *SQLPendingRepository) Delete(ctx context.Context, uid string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_cards WHERE uid = $1`, uid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired removes every entry past its expiry.
func (r *SQLPendingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_cards WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
