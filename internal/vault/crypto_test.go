package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRoundTrip(t *testing.T) {
	engine := NewEngine(nil)
	plaintext := []byte("MRI scan results: no abnormalities detected")

	ciphertext, key, err := engine.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.False(t, bytes.Contains(ciphertext, plaintext))

	decrypted, err := engine.Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEngineRoundTripEmptyPayload(t *testing.T) {
	engine := NewEngine(nil)

	ciphertext, key, err := engine.Encrypt([]byte{})
	require.NoError(t, err)

	decrypted, err := engine.Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestEngineFreshKeyPerEncrypt(t *testing.T) {
	engine := NewEngine(nil)
	plaintext := []byte("same payload twice")

	ct1, key1, err := engine.Encrypt(plaintext)
	require.NoError(t, err)
	ct2, key2, err := engine.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.NotEqual(t, ct1, ct2)

	// Each ciphertext only opens under its own key.
	_, err = engine.Decrypt(ct1, key2)
	assert.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestEngineTamperDetection(t *testing.T) {
	engine := NewEngine(nil)
	plaintext := []byte("blood panel: haemoglobin 13.2 g/dL")

	ciphertext, key, err := engine.Encrypt(plaintext)
	require.NoError(t, err)

	// Flipping any single byte must fail authentication, never return
	// altered plaintext.
	for _, idx := range []int{0, len(ciphertext) / 2, len(ciphertext) - 1} {
		tampered := make([]byte, len(ciphertext))
		copy(tampered, ciphertext)
		tampered[idx] ^= 0x01

		out, err := engine.Decrypt(tampered, key)
		assert.ErrorIs(t, err, ErrDecryptionFailure, "byte %d", idx)
		assert.Nil(t, out)
	}
}

func TestEngineDecryptFailures(t *testing.T) {
	engine := NewEngine(nil)
	ciphertext, key, err := engine.Encrypt([]byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext []byte
		key        string
	}{
		{"malformed key hex", ciphertext, "not-hex!"},
		{"short key", ciphertext, "abcd"},
		{"truncated ciphertext", ciphertext[:4], key},
		{"empty ciphertext", nil, key},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Decrypt(tt.ciphertext, tt.key)
			assert.ErrorIs(t, err, ErrDecryptionFailure)
			assert.Nil(t, out)
		})
	}
}
