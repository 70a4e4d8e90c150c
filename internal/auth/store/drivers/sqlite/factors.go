package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
)

type factorsRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *factorsRepo) GetFactors(ctx context.Context, userID string) (domain.FactorConfig, error) {
	var (
		cfg                 domain.FactorConfig
		secret, pendingHash sql.NullString
		pendingExpiry       sql.NullInt64
		updatedAt           int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT app_enabled, totp_secret, email_enabled, pending_code_hash, pending_code_expires_at, updated_at
		   FROM user_factors WHERE user_id = ?`, userID,
	).Scan(&cfg.AppEnabled, &secret, &cfg.EmailEnabled, &pendingHash, &pendingExpiry, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FactorConfig{UserID: userID}, nil
	}
	if err != nil {
		return domain.FactorConfig{}, err
	}

	cfg.UserID = userID
	cfg.TOTPSecret = mapNullStringPtr(secret)
	cfg.PendingCodeHash = mapNullStringPtr(pendingHash)
	cfg.PendingCodeExpiresAt = mapNullMillisPtr(pendingExpiry)
	cfg.UpdatedAt = fromMillis(updatedAt)
	return cfg, nil
}

func (r *factorsRepo) EnableApp(ctx context.Context, userID, secret string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_factors (user_id, app_enabled, totp_secret, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     app_enabled = 1,
		     totp_secret = excluded.totp_secret,
		     updated_at  = excluded.updated_at
		 WHERE user_factors.app_enabled = 0`,
		userID, secret, toMillis(r.now()),
	)
	return err
}

func (r *factorsRepo) DisableApp(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_factors SET app_enabled = 0, totp_secret = NULL, updated_at = ?
		  WHERE user_id = ?`,
		toMillis(r.now()), userID,
	)
	return err
}

func (r *factorsRepo) SetEmailEnabled(ctx context.Context, userID string, enabled bool) error {
	if !enabled {
		_, err := r.db.ExecContext(ctx,
			`UPDATE user_factors
			    SET email_enabled = 0,
			        pending_code_hash = NULL,
			        pending_code_expires_at = NULL,
			        updated_at = ?
			  WHERE user_id = ?`,
			toMillis(r.now()), userID,
		)
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_factors (user_id, email_enabled, updated_at)
		 VALUES (?, 1, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     email_enabled = 1,
		     updated_at    = excluded.updated_at`,
		userID, toMillis(r.now()),
	)
	return err
}

func (r *factorsRepo) SetPendingCode(ctx context.Context, userID, codeHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_factors (user_id, pending_code_hash, pending_code_expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     pending_code_hash       = excluded.pending_code_hash,
		     pending_code_expires_at = excluded.pending_code_expires_at,
		     updated_at              = excluded.updated_at`,
		userID, codeHash, toMillis(expiresAt), toMillis(r.now()),
	)
	return err
}

func (r *factorsRepo) ClearPendingCode(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_factors
		    SET pending_code_hash = NULL, pending_code_expires_at = NULL, updated_at = ?
		  WHERE user_id = ? AND pending_code_hash = ?`,
		toMillis(r.now()), userID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *factorsRepo) ClearExpiredPendingCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_factors
		    SET pending_code_hash = NULL, pending_code_expires_at = NULL, updated_at = ?
		  WHERE pending_code_expires_at IS NOT NULL AND pending_code_expires_at < ?`,
		toMillis(r.now()), toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
