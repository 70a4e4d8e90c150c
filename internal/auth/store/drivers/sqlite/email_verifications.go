package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
)

type emailVerificationsRepo struct {
	db dbtx
}

func (r *emailVerificationsRepo) PutEmailVerification(ctx context.Context, v domain.EmailVerification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_verifications (user_id, code_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     code_hash  = excluded.code_hash,
		     expires_at = excluded.expires_at,
		     created_at = excluded.created_at`,
		v.UserID, v.CodeHash, toMillis(v.ExpiresAt), toMillis(v.CreatedAt),
	)
	return err
}

func (r *emailVerificationsRepo) GetEmailVerification(ctx context.Context, userID string) (domain.EmailVerification, error) {
	var (
		v                    domain.EmailVerification
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, code_hash, expires_at, created_at FROM email_verifications WHERE user_id = ?`,
		userID,
	).Scan(&v.UserID, &v.CodeHash, &expiresAt, &createdAt)
	if err != nil {
		return domain.EmailVerification{}, mapNotFound(err)
	}
	v.ExpiresAt = fromMillis(expiresAt)
	v.CreatedAt = fromMillis(createdAt)
	return v, nil
}

func (r *emailVerificationsRepo) ConsumeEmailVerification(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *emailVerificationsRepo) DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE expires_at < ?`, toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
