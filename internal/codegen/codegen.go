// Package codegen produces random invitation-code strings.
package codegen

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the character set codes are drawn from. Uppercase plus digits
// keeps codes easy to read out and type.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the code length used when none is configured.
const DefaultLength = 8

// Generate returns a random code of length n drawn uniformly from Alphabet.
// It makes no uniqueness guarantee; callers must check against storage.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = DefaultLength
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// Rejection sampling keeps the distribution uniform: 252 is the largest
	// multiple of len(Alphabet) below 256.
	const limit = 252
	out := make([]byte, 0, n)
	for len(out) < n {
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
		if len(out) < n {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("read random bytes: %w", err)
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s consists solely of Alphabet characters.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
