package service

import (
	"errors"

	"github.com/aussiebroadwan/acctly/pkg/jwtx"
)

// mapTokenError folds step-up verification failures into the two token
// errors callers act on.
func mapTokenError(err error) error {
	if errors.Is(err, jwtx.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func attemptKey(scope, userID string) string { return scope + ":" + userID }
