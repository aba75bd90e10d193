package shortcode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	gen := New()
	for _, length := range []int{1, 4, DefaultLength, 12, 32} {
		for i := 0; i < 200; i++ {
			code, err := gen.Generate(length)
			require.NoError(t, err)
			require.Len(t, code, length)
			for _, c := range code {
				require.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q in %q", c, code)
			}
			require.True(t, Valid(code, length))
		}
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := New().Generate(0)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = New().Generate(-3)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestGenerate_DiscardsBiasedBytes(t *testing.T) {
	// 248..255 must be skipped; 0 -> '0', 61 -> 'z', 62 -> '0', 247 -> 'z' (247 % 62 = 61).
	src := bytes.NewReader([]byte{
		255, 0, 248, 61, 62, 250,
		247, 1, 2, 3, 4, 5,
	})
	code, err := NewWithReader(src).Generate(4)
	require.NoError(t, err)
	assert.Equal(t, "0z0z", code)
}

func TestGenerate_ReadsMoreWhenBatchIsRejected(t *testing.T) {
	rejected := bytes.Repeat([]byte{255}, 10)
	accepted := []byte{10, 11, 12, 13, 14, 15, 16, 0, 0, 0}
	src := bytes.NewReader(append(rejected, accepted...))

	code, err := NewWithReader(src).Generate(DefaultLength)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFG", code)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate_PropagatesReaderError(t *testing.T) {
	_, err := NewWithReader(failingReader{}).Generate(DefaultLength)
	assert.Error(t, err)
}

func TestGenerate_IsNotConstant(t *testing.T) {
	gen := New()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := gen.Generate(DefaultLength)
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 990)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("aZ09xY1", 7))
	assert.False(t, Valid("aZ09xY", 7))
	assert.False(t, Valid("aZ0-xY1", 7))
	assert.False(t, Valid("", 7))
}
