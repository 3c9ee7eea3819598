package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"report-vault-server/internal/config"
	"report-vault-server/internal/models"
)

// Service wires the vault components into the two externally observable
// pipelines: staff upload and patient view. Handlers own HTTP concerns;
// everything that decides or records access lives here.
type Service struct {
	db       *gorm.DB
	engine   *Engine
	blobs    BlobStore
	otp      *OTPManager
	sessions *SessionStore
	matcher  *Matcher
	audit    *AuditLogger
	log      *slog.Logger
}

// NewService constructs the vault from its configuration. All windows and
// paths come from cfg; nothing here reads the environment.
func NewService(db *gorm.DB, blobs BlobStore, cfg config.VaultConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	audit := NewAuditLogger(db)
	return &Service{
		db:       db,
		engine:   NewEngine(log),
		blobs:    blobs,
		otp:      NewOTPManager(db, time.Duration(cfg.OTPCodeTTLMinutes)*time.Minute),
		sessions: NewSessionStore(time.Duration(cfg.OTPSessionTTLMinutes) * time.Minute),
		matcher:  NewMatcher(db, audit),
		audit:    audit,
		log:      log,
	}
}

// Sessions exposes the session store so logout can drop verification state.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// UploadInput is everything the upload pipeline needs for one request.
type UploadInput struct {
	Staff               *models.HospitalStaff
	ActorUserID         string
	Title               string
	ScanType            models.ScanType
	HospitalName        string
	TestDate            *time.Time
	PatientPhone        string
	PatientAadhaarLast4 string
	ContentType         string
	Data                []byte
	Client              Client
}

// UploadResult carries the created report plus the matched patient for the
// response (the handler masks the phone number before it leaves the server).
type UploadResult struct {
	Report  *models.MedicalReport
	Patient *models.PatientProfile
}

// Upload runs the staff-side pipeline: verified-staff gate, patient match,
// encrypt, persist, audit. The verified gate precedes matching and produces
// no audit entry of its own; match failures audit inside the matcher.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if !in.Staff.IsVerified {
		return nil, ErrStaffNotVerified
	}

	patient, err := s.matcher.Match(ctx, in.PatientPhone, in.PatientAadhaarLast4, in.ActorUserID, in.Client)
	if err != nil {
		return nil, err
	}

	ciphertext, key, err := s.engine.Encrypt(in.Data)
	if err != nil {
		return nil, fmt.Errorf("report encryption failed: %w", err)
	}

	ref, err := s.blobs.Save(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to store report blob: %w", err)
	}

	hospitalName := in.HospitalName
	if hospitalName == "" {
		hospitalName = in.Staff.HospitalName
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	report := &models.MedicalReport{
		PatientID:           patient.ID,
		UploadedByStaffID:   &in.Staff.ID,
		Title:               in.Title,
		ScanType:            in.ScanType,
		HospitalName:        hospitalName,
		TestDate:            in.TestDate,
		BlobRef:             ref,
		EncryptedFileKey:    key,
		FileSize:            int64(len(in.Data)),
		ContentType:         contentType,
		IsEncrypted:         true,
		RequiresOTP:         true,
		PatientPhoneMatch:   in.PatientPhone,
		PatientAadhaarMatch: in.PatientAadhaarLast4,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	err = s.audit.Record(ctx, &models.ReportAccessLog{
		ReportID:      &report.ID,
		UserID:        in.ActorUserID,
		AccessType:    models.AccessTypeUpload,
		IPAddress:     in.Client.IP,
		UserAgent:     in.Client.UserAgent,
		AccessGranted: true,
	})
	if err != nil {
		return nil, err
	}

	return &UploadResult{Report: report, Patient: patient}, nil
}

// ViewResult is a decrypted report ready to stream. Data exists only for the
// lifetime of the response.
type ViewResult struct {
	Report *models.MedicalReport
	Data   []byte
}

// View runs the patient-side pipeline: ownership check, OTP gate, audit,
// decrypt. The role gate already ran in middleware. Ownership misses return
// ErrReportNotFound rather than a forbidden so a non-owner learns nothing
// about the report's existence. The OTP gate is keyed by sessionID, so one
// device's verification does not open the window for the user's other
// sessions; userID only identifies the actor in audit entries.
func (s *Service) View(ctx context.Context, userID, sessionID string, patient *models.PatientProfile, reportID string, client Client) (*ViewResult, error) {
	var report models.MedicalReport
	err := s.db.WithContext(ctx).First(&report, "id = ? AND patient_id = ?", reportID, patient.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		auditErr := s.audit.Record(ctx, &models.ReportAccessLog{
			ReportID:      nil,
			UserID:        userID,
			AccessType:    models.AccessTypeUnauthorizedAccess,
			IPAddress:     client.IP,
			UserAgent:     client.UserAgent,
			AccessGranted: false,
		})
		if auditErr != nil {
			return nil, auditErr
		}
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report lookup failed: %w", err)
	}

	// Verified lapses the session window as a side effect, so a stale
	// verification reads as false from here on.
	otpVerified := s.sessions.Verified(sessionID)
	if report.RequiresOTP && !otpVerified {
		auditErr := s.audit.Record(ctx, &models.ReportAccessLog{
			ReportID:      &report.ID,
			UserID:        userID,
			AccessType:    models.AccessTypeView,
			IPAddress:     client.IP,
			UserAgent:     client.UserAgent,
			OTPVerified:   false,
			AccessGranted: false,
		})
		if auditErr != nil {
			return nil, auditErr
		}
		return nil, ErrOTPRequired
	}

	// Authorization passed. The granted entry is written before decryption:
	// the log proves the access decision, not content delivery.
	err = s.audit.Record(ctx, &models.ReportAccessLog{
		ReportID:      &report.ID,
		UserID:        userID,
		AccessType:    models.AccessTypeView,
		IPAddress:     client.IP,
		UserAgent:     client.UserAgent,
		OTPVerified:   otpVerified,
		AccessGranted: true,
	})
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.blobs.Load(report.BlobRef)
	if err != nil {
		s.log.Error("report blob unavailable", "report", report.ID, "cause", err)
		return nil, ErrVaultUnavailable
	}
	if !report.IsEncrypted {
		return &ViewResult{Report: &report, Data: ciphertext}, nil
	}

	plaintext, err := s.engine.Decrypt(ciphertext, report.EncryptedFileKey)
	if err != nil {
		return nil, ErrVaultUnavailable
	}
	return &ViewResult{Report: &report, Data: plaintext}, nil
}

// ReportSummary is one row of the patient's report list. CanView reflects
// whether the OTP gate is currently satisfied; listing itself never requires
// the challenge.
type ReportSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	ScanType     models.ScanType `json:"scanType"`
	HospitalName string          `json:"hospitalName,omitempty"`
	UploadedAt   time.Time       `json:"uploadedAt"`
	FileSize     int64           `json:"fileSize"`
	RequiresOTP  bool            `json:"requiresOtp"`
	IsAnalyzed   bool            `json:"isAnalyzed"`
	CanView      bool            `json:"canView"`
}

// List returns the patient's reports, newest first, plus the calling
// session's current verification state.
func (s *Service) List(ctx context.Context, sessionID string, patient *models.PatientProfile) ([]ReportSummary, bool, error) {
	verified := s.sessions.Verified(sessionID)

	var reports []models.MedicalReport
	err := s.db.WithContext(ctx).
		Where("patient_id = ?", patient.ID).
		Order("created_at desc").
		Find(&reports).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list reports: %w", err)
	}

	summaries := make([]ReportSummary, len(reports))
	for i, r := range reports {
		summaries[i] = ReportSummary{
			ID:           r.ID,
			Title:        r.Title,
			ScanType:     r.ScanType,
			HospitalName: r.HospitalName,
			UploadedAt:   r.CreatedAt,
			FileSize:     r.FileSize,
			RequiresOTP:  r.RequiresOTP,
			IsAnalyzed:   r.IsAnalyzed,
			CanView:      verified || !r.RequiresOTP,
		}
	}
	return summaries, verified, nil
}

// IssueOTP generates a fresh code for the patient. The caller delivers it
// out of band (or reveals it in demo mode).
func (s *Service) IssueOTP(ctx context.Context, patient *models.PatientProfile) (string, error) {
	return s.otp.Issue(ctx, patient)
}

// VerifyOTP checks a submitted code and, on success, marks the calling
// session verified with a fresh timestamp. The code itself stays valid until
// its own window closes.
func (s *Service) VerifyOTP(ctx context.Context, sessionID string, patient *models.PatientProfile, code string) (bool, error) {
	ok, err := s.otp.Verify(ctx, patient, code)
	if err != nil || !ok {
		return false, err
	}
	s.sessions.MarkVerified(sessionID)
	return true, nil
}

// AccessLogs returns the most recent audit entries for reports owned by the
// patient, newest first.
func (s *Service) AccessLogs(ctx context.Context, patient *models.PatientProfile) ([]models.ReportAccessLog, error) {
	owned := s.db.WithContext(ctx).Model(&models.MedicalReport{}).Select("id").Where("patient_id = ?", patient.ID)

	var logs []models.ReportAccessLog
	err := s.db.WithContext(ctx).
		Where("report_id IN (?)", owned).
		Order("created_at desc").
		Limit(100).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, nil
}

// UploadHistory returns the reports a staff member has uploaded, newest first.
func (s *Service) UploadHistory(ctx context.Context, staffID string) ([]models.MedicalReport, error) {
	var reports []models.MedicalReport
	err := s.db.WithContext(ctx).
		Where("uploaded_by_staff_id = ?", staffID).
		Order("created_at desc").
		Limit(50).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return reports, nil
}
