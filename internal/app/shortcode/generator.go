// Package shortcode produces random fixed-length codes over the base62 alphabet.
package shortcode

import (
	"crypto/rand"
	"errors"
	"io"
)

const (
	Alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultLength = 7

	// Bytes at or above this value are discarded so that byte % 62 stays uniform.
	rejectThreshold = 256 - 256%len(Alphabet)
)

var ErrInvalidLength = errors.New("shortcode: length must be positive")

// Generator produces candidate short codes. Uniqueness is not its concern.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

type randomGenerator struct {
	src io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() Generator {
	return &randomGenerator{src: rand.Reader}
}

// NewWithReader returns a Generator drawing bytes from src.
func NewWithReader(src io.Reader) Generator {
	return &randomGenerator{src: src}
}

// Generate returns a code of exactly length characters.
func (g *randomGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, batchSize(length))
	for len(out) < length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectThreshold {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// batchSize over-provisions so a single read almost always fills the code;
// a 7 character code draws 10 bytes.
func batchSize(length int) int {
	return length + (length+2)/3
}

// Valid reports whether code has the given length and only alphabet characters.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
