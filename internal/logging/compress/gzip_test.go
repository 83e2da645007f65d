package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGzip_EmptyInput(t *testing.T) {
	_, err := Gzip(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Gzip([]byte{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGzip_MagicHeader(t *testing.T) {
	out, err := Gzip([]byte("hello loki"))
	assert.NoError(t, err)

	assert.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, byte(0x1f), out[0])
	assert.Equal(t, byte(0x8b), out[1])
}

func TestGzip_RoundTrip(t *testing.T) {
	original := []byte(`{"streams":[{"stream":{"app":"shop"},"values":[["1700000000000000000","Order placed"]]}]}`)

	compressed, err := Gzip(original)
	assert.NoError(t, err)

	decompressed, err := Gunzip(compressed)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(original, decompressed))
}

func TestGunzip_RejectsGarbage(t *testing.T) {
	_, err := Gunzip([]byte("not a gzip stream"))
	assert.Error(t, err)
}
