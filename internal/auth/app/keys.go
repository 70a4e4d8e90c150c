package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
)

// Secret sizes in bytes.
const (
	pepperSize    = cryptox.TokenSize256
	stepUpKeySize = cryptox.TokenSize256
	codeKeySize   = cryptox.MinCodeKeySize
)

// AuthKeys is the key material loaded at startup.
type AuthKeys struct {
	Passwords *cryptox.PasswordHasher
	Codes     *cryptox.CodeHasher
	StepUp    *jwtx.StepUpIssuer

	Signer   jwtx.Signer
	KeySet   *jwtx.KeySet
	Verifier jwtx.Verifier
}

// InitAuthKeys loads every secret named in cfg, generating missing files on
// first start. Losing a file invalidates what was keyed with it: the pepper
// breaks every password, the code key every pending code and the session key
// every session.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*AuthKeys, error) {
	pepper, err := cryptox.LoadOrGenerateSecret(cfg.PepperFile, pepperSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	passwords, err := cryptox.NewPasswordHasher(pepper)
	if err != nil {
		return nil, err
	}

	codeKey, err := cryptox.LoadOrGenerateSecret(cfg.EmailCodeKeyFile, codeKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load email code key: %w", err)
	}
	codes, err := cryptox.NewCodeHasher(codeKey)
	if err != nil {
		return nil, err
	}

	stepUpKey, err := cryptox.LoadOrGenerateSecret(cfg.StepUpKeyFile, stepUpKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load step-up key: %w", err)
	}
	stepUp, err := jwtx.NewStepUpIssuer(stepUpKey, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	pemKey, err := cryptox.LoadOrGenerateEd25519Key(cfg.SessionKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load session key: %w", err)
	}
	signer, err := jwtx.NewSignerEdDSA("", pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session key: %w", err)
	}
	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, err
	}

	logger.Info("auth keys loaded",
		"session_kid", signer.KID(),
		"session_alg", signer.Alg(),
		"issuer", cfg.Issuer,
	)

	return &AuthKeys{
		Passwords: passwords,
		Codes:     codes,
		StepUp:    stepUp,
		Signer:    signer,
		KeySet:    keys,
		Verifier:  jwtx.NewCommonEdDSA(keys, cfg.Issuer),
	}, nil
}
