// Package common defines shared constants and sentinel errors used across
// the keystash SDK layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Stash-store errors.
	ErrNotFound = errors.New("login id not found in any cached stash")

	// Username validation errors.
	ErrInvalidUsername = errors.New("invalid username")

	// Crypto errors (tampered box, wrong key, unknown algorithm).
	ErrDecryption = errors.New("decryption failed")

	// Generic/internal flow control.
	ErrInternal = errors.New("internal error")
)
