package service

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
)

// Session is a fully authenticated login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Email     string
	AMR       []string
}

// SessionService mints session tokens once every required factor passed.
type SessionService struct {
	Signer jwtx.Signer
	Issuer string
	TTL    time.Duration
	Clock  Clock
}

// Issue signs a session for user authenticated with amr.
func (s *SessionService) Issue(user domain.User, amr []string) (Session, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(user.ID, user.Email, amr, ttl, s.Issuer, s.Clock.now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}

	return Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    user.ID,
		Email:     user.Email,
		AMR:       amr,
	}, nil
}

func sessionAMR(factor domain.FactorType) []string {
	switch factor {
	case domain.FactorApp:
		return []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}
	case domain.FactorEmail:
		return []string{jwtx.AMRPassword, jwtx.AMREmail, jwtx.AMRMFA}
	default:
		return []string{jwtx.AMRPassword}
	}
}
