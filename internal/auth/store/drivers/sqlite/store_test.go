package sqlite_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/acctly/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Users().CreateUser(t.Context(), u))
	return u
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(t.Context()))

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.EqualValues(t, 1, version)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	u := createUser(t, s, "Alice@Example.com")

	t.Run("get by id", func(t *testing.T) {
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, u.PasswordHash, got.PasswordHash)
		require.Equal(t, u.CreatedAt, got.CreatedAt)
		require.Nil(t, got.EmailVerifiedAt)
	})

	t.Run("get by email ignores case", func(t *testing.T) {
		got, err := s.Users().GetUserByEmail(ctx, "  ALICE@example.COM ")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Users().GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Users().GetUserByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Email:        "alice@example.com",
			PasswordHash: "x",
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("mark verified", func(t *testing.T) {
		at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID, at))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.EmailVerifiedAt)
		require.True(t, got.EmailVerifiedAt.Equal(at))

		require.ErrorIs(t, s.Users().MarkEmailVerified(ctx, "missing", at), store.ErrNotFound)
	})
}

func TestFactors_ZeroConfig(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "zero@example.com")

	cfg, err := s.Factors().GetFactors(t.Context(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, cfg.UserID)
	require.False(t, cfg.AppEnabled)
	require.False(t, cfg.EmailEnabled)
	require.Nil(t, cfg.TOTPSecret)
	require.False(t, cfg.HasPendingCode())
}

func TestFactors_App(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	u := createUser(t, s, "app@example.com")

	require.NoError(t, s.Factors().EnableApp(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	// Replaying the confirm is the same write.
	require.NoError(t, s.Factors().EnableApp(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	// An enabled factor keeps its secret.
	require.NoError(t, s.Factors().EnableApp(ctx, u.ID, "KRSXG5CTMVRXEZLU"))

	cfg, err := s.Factors().GetFactors(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, cfg.AppEnabled)
	require.NotNil(t, cfg.TOTPSecret)
	require.Equal(t, "JBSWY3DPEHPK3PXP", *cfg.TOTPSecret)

	require.NoError(t, s.Factors().DisableApp(ctx, u.ID))
	cfg, err = s.Factors().GetFactors(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, cfg.AppEnabled)
	require.Nil(t, cfg.TOTPSecret)
}

func TestFactors_PendingCode(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	u := createUser(t, s, "email@example.com")
	exp := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Factors().SetEmailEnabled(ctx, u.ID, true))
	require.NoError(t, s.Factors().SetPendingCode(ctx, u.ID, "hash-1", exp))

	cfg, err := s.Factors().GetFactors(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, cfg.EmailEnabled)
	require.True(t, cfg.HasPendingCode())
	require.Equal(t, "hash-1", *cfg.PendingCodeHash)
	require.True(t, cfg.PendingCodeExpiresAt.Equal(exp))

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Factors().SetPendingCode(ctx, u.ID, "hash-2", exp.Add(time.Minute)))
		cfg, err := s.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "hash-2", *cfg.PendingCodeHash)
	})

	t.Run("conditional clear", func(t *testing.T) {
		cleared, err := s.Factors().ClearPendingCode(ctx, u.ID, "hash-1")
		require.NoError(t, err)
		require.False(t, cleared, "stale hash must not clear")

		cleared, err = s.Factors().ClearPendingCode(ctx, u.ID, "hash-2")
		require.NoError(t, err)
		require.True(t, cleared)

		cleared, err = s.Factors().ClearPendingCode(ctx, u.ID, "hash-2")
		require.NoError(t, err)
		require.False(t, cleared, "second clear must lose")

		cfg, err := s.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, cfg.HasPendingCode())
		require.True(t, cfg.EmailEnabled)
	})

	t.Run("disable clears pending", func(t *testing.T) {
		require.NoError(t, s.Factors().SetPendingCode(ctx, u.ID, "hash-3", exp))
		require.NoError(t, s.Factors().SetEmailEnabled(ctx, u.ID, false))

		cfg, err := s.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, cfg.EmailEnabled)
		require.Nil(t, cfg.PendingCodeHash)
		require.Nil(t, cfg.PendingCodeExpiresAt)
	})
}

func TestFactors_ConcurrentClearHasOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	u := createUser(t, s, "race@example.com")
	require.NoError(t, s.Factors().SetPendingCode(ctx, u.ID, "hash", time.Now().Add(time.Minute)))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Factors().ClearPendingCode(ctx, u.ID, "hash")
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestFactors_ClearExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	old := createUser(t, s, "old@example.com")
	fresh := createUser(t, s, "fresh@example.com")
	require.NoError(t, s.Factors().SetPendingCode(ctx, old.ID, "a", now.Add(-time.Minute)))
	require.NoError(t, s.Factors().SetPendingCode(ctx, fresh.ID, "b", now.Add(time.Minute)))

	n, err := s.Factors().ClearExpiredPendingCodes(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	cfg, err := s.Factors().GetFactors(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, cfg.HasPendingCode())
}

func TestEmailVerifications(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	u := createUser(t, s, "verify@example.com")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.EmailVerifications().GetEmailVerification(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	v := domain.EmailVerification{UserID: u.ID, CodeHash: "h1", ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now}
	require.NoError(t, s.EmailVerifications().PutEmailVerification(ctx, v))
	v.CodeHash = "h2"
	require.NoError(t, s.EmailVerifications().PutEmailVerification(ctx, v))

	got, err := s.EmailVerifications().GetEmailVerification(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h2", got.CodeHash)
	require.True(t, got.ExpiresAt.Equal(v.ExpiresAt))

	ok, err := s.EmailVerifications().ConsumeEmailVerification(ctx, u.ID, "h1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.EmailVerifications().ConsumeEmailVerification(ctx, u.ID, "h2")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.EmailVerifications().GetEmailVerification(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.EmailVerifications().PutEmailVerification(ctx, v))
	n, err := s.EmailVerifications().DeleteExpiredEmailVerifications(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestWithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	u := createUser(t, s, "tx@example.com")

	t.Run("rollback on error", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, tx.Factors().SetEmailEnabled(ctx, u.ID, true))
			return sql.ErrConnDone
		})
		require.ErrorIs(t, err, sql.ErrConnDone)

		cfg, err := s.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, cfg.EmailEnabled)
	})

	t.Run("commit", func(t *testing.T) {
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Factors().SetEmailEnabled(ctx, u.ID, true)
		}))

		cfg, err := s.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, cfg.EmailEnabled)
	})

	t.Run("nested tx refused", func(t *testing.T) {
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Tx(ctx)
			require.ErrorIs(t, err, sql.ErrTxDone)
			return nil
		}))
	})
}

func TestForeignKeys(t *testing.T) {
	s := newTestStore(t)
	err := s.Factors().EnableApp(t.Context(), "no-such-user", "SECRET")
	require.Error(t, err)
}
