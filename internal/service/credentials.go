package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const passwordCharset = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%"

// generateUsername derives a login name from the student's first name and
// admission number, e.g. "john.a100". Uniqueness is ultimately enforced by
// the auth service.
func generateUsername(firstName, admissionNumber string) string {
	return fmt.Sprintf("%s.%s", usernameSlug(firstName), usernameSlug(admissionNumber))
}

func usernameSlug(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "student"
	}
	return b.String()
}

// generatePassword produces a random one-time password. It is emailed to
// the student and forwarded to the auth service for hashing; this service
// never stores it.
func generatePassword(length int) (string, error) {
	if length <= 0 {
		length = 12
	}
	max := big.NewInt(int64(len(passwordCharset)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordCharset[n.Int64()])
	}
	return b.String(), nil
}
