package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

var (
	// ErrUnknownOrRevoked means a refresh token verified but has no live
	// record: it was revoked, pruned or never issued here.
	ErrUnknownOrRevoked = errors.New("unknown_or_revoked")

	// ErrStoreUnavailable wraps any store failure, timeouts included. It is
	// never reported as ErrUnknownOrRevoked.
	ErrStoreUnavailable = errors.New("store_unavailable")

	// ErrSubjectMismatch means the refresh token belongs to another user.
	ErrSubjectMismatch = errors.New("subject_mismatch")

	ErrInvalidExpiry = errors.New("invalid_expiry")

	ErrKeyUnavailable = jwtx.ErrKeyUnavailable
)

// storeErr classifies an error coming back from the store. ErrNotFound is
// left alone for callers that care about it.
func storeErr(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
