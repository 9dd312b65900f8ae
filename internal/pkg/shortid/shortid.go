package shortid

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet excludes glyphs that read ambiguously on a printed card (0/1/l/o).
const Alphabet = "23456789abcdefghijkmnpqrstuvwxyz"

const (
	CardIDLength      = 6
	ActionTokenLength = 8
)

func New(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("short id length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var b strings.Builder
	b.Grow(length)
	for _, v := range buf {
		b.WriteByte(Alphabet[int(v)%len(Alphabet)])
	}
	return b.String(), nil
}

func NewCardID() (string, error) {
	return New(CardIDLength)
}

func NewActionToken() (string, error) {
	return New(ActionTokenLength)
}

// Valid reports whether s is a well-formed id of the given length.
func Valid(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(Alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
