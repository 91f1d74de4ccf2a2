package cards

import (
	"errors"
	"strings"
)

// ErrInvalidUID signals a card UID outside the hex-with-separators form
// devices are expected to report.
var ErrInvalidUID = errors.New("invalid card uid")

const maxUIDLength = 32

// NormalizeUID uppercases a reported card UID and validates it against the
// hex-digit / separator character class. The normalized form is the only one
// ever stored or compared, so "aa:bb" and "AA:BB" are the same card.
func NormalizeUID(raw string) (string, error) {
	uid := strings.ToUpper(strings.TrimSpace(raw))
	if uid == "" || len(uid) > maxUIDLength {
		return "", ErrInvalidUID
	}
	digits := 0
	for _, r := range uid {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			digits++
		case r == ':' || r == '-':
		default:
			return "", ErrInvalidUID
		}
	}
	if digits < 2 {
		return "", ErrInvalidUID
	}
	return uid, nil
}
