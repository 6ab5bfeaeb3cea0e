package booking

import (
	"crypto/rand"
	"fmt"
	"time"
)

// bookingNumberAlphabet avoids 0/O, 1/I/L and U so numbers survive being
// read over the phone.
const bookingNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

const bookingNumberSuffixLen = 8

// NewBookingNumber builds a human-readable, collision-free booking number,
// e.g. BK-20260301-7F3K9QWD. The suffix is crypto-random rather than a
// counter, so numbers are not guessable.
func NewBookingNumber(date time.Time) (string, error) {
	buf := make([]byte, bookingNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking number entropy: %w", err)
	}

	suffix := make([]byte, bookingNumberSuffixLen)
	for i, b := range buf {
		suffix[i] = bookingNumberAlphabet[int(b)%len(bookingNumberAlphabet)]
	}

	return fmt.Sprintf("BK-%s-%s", date.Format("20060102"), suffix), nil
}
