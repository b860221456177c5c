package security

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Validation limits.
const (
	DefaultMaxUploadBytes = 10 << 20 // 10 MiB
	MaxSessionIDLength    = 128
)

// Validation errors.
var (
	ErrUploadTooLarge   = errors.New("upload exceeds maximum size")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// ValidateUploadSize checks that n does not exceed limit bytes. A limit of
// zero or less selects DefaultMaxUploadBytes.
func ValidateUploadSize(n int64, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if n > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrUploadTooLarge, n, limit)
	}
	return nil
}

// ValidateSessionID accepts non-empty, printable, single-line ids of at
// most MaxSessionIDLength bytes. Client-supplied ids end up in logs,
// metrics labels and the history database.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidSessionID, MaxSessionIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidSessionID)
	}
	for _, r := range id {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains %q", ErrInvalidSessionID, r)
		}
	}
	return nil
}
