package vault

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"report-vault-server/internal/models"
)

// Matcher resolves the patient a staff upload is destined for. Lookup is by
// phone number alone (unique index); the optional Aadhaar last-4 acts as a
// second factor that must match exactly when supplied.
type Matcher struct {
	db    *gorm.DB
	audit *AuditLogger
}

// NewMatcher creates a patient matcher.
func NewMatcher(db *gorm.DB, audit *AuditLogger) *Matcher {
	return &Matcher{db: db, audit: audit}
}

// Match returns exactly one patient or a typed failure. Every failed match
// writes an UPLOAD_ATTEMPT entry (report ref nil, access denied) before
// returning; if that write fails, its error wins. A successful match has no
// side effects.
func (m *Matcher) Match(ctx context.Context, phone, aadhaarLast4, actorUserID string, client Client) (*models.PatientProfile, error) {
	var patient models.PatientProfile
	err := m.db.WithContext(ctx).First(&patient, "phone_number = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if auditErr := m.recordFailure(ctx, actorUserID, client); auditErr != nil {
			return nil, auditErr
		}
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient lookup failed: %w", err)
	}

	if aadhaarLast4 != "" && patient.AadhaarLast4 != aadhaarLast4 {
		if auditErr := m.recordFailure(ctx, actorUserID, client); auditErr != nil {
			return nil, auditErr
		}
		return nil, ErrAadhaarMismatch
	}

	return &patient, nil
}

func (m *Matcher) recordFailure(ctx context.Context, actorUserID string, client Client) error {
	return m.audit.Record(ctx, &models.ReportAccessLog{
		ReportID:      nil, // no report exists yet
		UserID:        actorUserID,
		AccessType:    models.AccessTypeUploadAttempt,
		IPAddress:     client.IP,
		UserAgent:     client.UserAgent,
		AccessGranted: false,
	})
}
