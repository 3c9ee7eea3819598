package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Engine encrypts and decrypts report payloads with AES-256-GCM. Every
// Encrypt call draws a fresh 256-bit key; keys are never reused across
// reports. The nonce is prepended to the ciphertext, the key is returned
// hex-encoded for storage in report metadata.
type Engine struct {
	log *slog.Logger
}

// NewEngine creates an encryption engine. A nil logger falls back to
// slog.Default.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Encrypt seals plaintext under a newly generated key and returns the
// ciphertext together with the hex-encoded key.
func (e *Engine) Encrypt(plaintext []byte) (ciphertext []byte, keyHex string, err error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, "", fmt.Errorf("key generation failed: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("nonce generation failed: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), hex.EncodeToString(key), nil
}

// Decrypt opens ciphertext with the stored envelope key. All failure causes
// (malformed key, truncated blob, GCM authentication failure) are logged with
// their real reason but collapse into ErrDecryptionFailure so the cause never
// leaks to a caller.
func (e *Engine) Decrypt(ciphertext []byte, keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		e.log.Error("report decrypt failed", "cause", "malformed envelope key")
		return nil, ErrDecryptionFailure
	}

	gcm, err := newGCM(key)
	if err != nil {
		e.log.Error("report decrypt failed", "cause", err)
		return nil, ErrDecryptionFailure
	}

	if len(ciphertext) < gcm.NonceSize() {
		e.log.Error("report decrypt failed", "cause", "ciphertext shorter than nonce")
		return nil, ErrDecryptionFailure
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Authentication failure: the blob was corrupted or tampered with.
		e.log.Error("report decrypt failed", "cause", "ciphertext authentication failed")
		return nil, ErrDecryptionFailure
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
