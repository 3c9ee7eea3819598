package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore holds encrypted report payloads, keyed by an opaque reference
// stored on the report record. Blobs are write-once: nothing in the vault
// rewrites a blob after upload.
type BlobStore interface {
	// Save writes the ciphertext and returns the opaque reference for it.
	Save(ciphertext []byte) (ref string, err error)
	// Load returns the ciphertext for a reference.
	Load(ref string) ([]byte, error)
}

// DiskBlobStore keeps blobs as files in a single directory. File names are
// random UUIDs so the ciphertext store carries no patient data; the envelope
// key lives in the report row, deliberately apart from the blob.
type DiskBlobStore struct {
	dir string
}

// NewDiskBlobStore creates the backing directory if needed.
func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

// Save writes the ciphertext under a fresh UUID reference.
func (s *DiskBlobStore) Save(ciphertext []byte) (string, error) {
	ref := uuid.New().String() + ".bin"
	if err := os.WriteFile(filepath.Join(s.dir, ref), ciphertext, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return ref, nil
}

// Load reads the ciphertext for ref.
func (s *DiskBlobStore) Load(ref string) ([]byte, error) {
	// Refs are server-generated UUIDs; reject anything path-like anyway.
	if filepath.Base(ref) != ref {
		return nil, fmt.Errorf("invalid blob reference")
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", ref, err)
	}
	return data, nil
}
