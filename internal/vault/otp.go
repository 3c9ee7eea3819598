package vault

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"report-vault-server/internal/models"
)

// OTPManager issues and validates the one-time codes gating report access.
// The code lifecycle (10 minutes from issuance by default) is independent of
// the session verification window managed by SessionStore; the two are kept
// as distinct timestamps with distinct constants on purpose.
type OTPManager struct {
	db      *gorm.DB
	codeTTL time.Duration
	now     func() time.Time
}

// NewOTPManager creates an OTP manager with the configured code window.
func NewOTPManager(db *gorm.DB, codeTTL time.Duration) *OTPManager {
	return &OTPManager{db: db, codeTTL: codeTTL, now: time.Now}
}

// Issue generates a fresh 6-digit code for the patient and stores it with an
// issuance timestamp. A newer issuance silently supersedes an older one: the
// overwrite is a single UPDATE, so only the last code ever matters. Delivery
// to the patient's phone is the caller's problem.
func (m *OTPManager) Issue(ctx context.Context, patient *models.PatientProfile) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp generation failed: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)
	issuedAt := m.now()

	err = m.db.WithContext(ctx).
		Model(&models.PatientProfile{}).
		Where("id = ?", patient.ID).
		Updates(map[string]interface{}{"otp_code": code, "otp_created_at": issuedAt}).Error
	if err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	patient.OTPCode = &code
	patient.OTPCreatedAt = &issuedAt
	return code, nil
}

// Verify checks a submitted code against the patient's current one. It fails
// closed: no code ever issued, wrong code, or issuance older than the code
// window all return false. The code is not consumed on success, so
// re-verifying a still-valid code succeeds.
func (m *OTPManager) Verify(ctx context.Context, patient *models.PatientProfile, submitted string) (bool, error) {
	// Re-read the row so a concurrent reissue is respected.
	var fresh models.PatientProfile
	if err := m.db.WithContext(ctx).First(&fresh, "id = ?", patient.ID).Error; err != nil {
		return false, fmt.Errorf("failed to load patient otp state: %w", err)
	}
	if fresh.OTPCode == nil || fresh.OTPCreatedAt == nil {
		return false, nil
	}
	if m.now().Sub(*fresh.OTPCreatedAt) >= m.codeTTL {
		return false, nil
	}
	return *fresh.OTPCode == submitted, nil
}
