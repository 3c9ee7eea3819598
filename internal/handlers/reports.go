package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"report-vault-server/internal/config"
	"report-vault-server/internal/middleware"
	"report-vault-server/internal/models"
	"report-vault-server/internal/utils"
	"report-vault-server/internal/vault"
)

// ReportHandler handles report upload and retrieval requests. All access
// decisions are made by the vault service; this layer only translates HTTP.
type ReportHandler struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Vault *vault.Service
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(db *gorm.DB, cfg *config.Config, v *vault.Service) *ReportHandler {
	return &ReportHandler{DB: db, Cfg: cfg, Vault: v}
}

func clientOf(c *gin.Context) vault.Client {
	return vault.Client{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func sessionOf(c *gin.Context) string {
	sessionID, _ := middleware.GetSessionIDFromContext(c)
	return sessionID
}

// patientProfile loads the calling patient's profile. Writes the error
// response itself and returns ok=false when that fails.
func (h *ReportHandler) patientProfile(c *gin.Context) (*models.PatientProfile, string, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return nil, "", false
	}
	var profile models.PatientProfile
	if err := h.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Forbidden(c, "No patient profile for this account")
		} else {
			utils.InternalServerError(c, "Failed to load patient profile")
		}
		return nil, "", false
	}
	return &profile, userID, true
}

// UploadReportResponse is the staff-facing result of a successful upload.
type UploadReportResponse struct {
	ReportID     string `json:"reportId"`
	Title        string `json:"title"`
	PatientName  string `json:"patientName"`
	PatientPhone string `json:"patientPhone"` // masked
}

// UploadReport handles a verified hospital staff member uploading an
// encrypted report mapped to a patient by phone number.
func (h *ReportHandler) UploadReport(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var staff models.HospitalStaff
	if err := h.DB.First(&staff, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Forbidden(c, "Only hospital staff can upload reports")
		} else {
			utils.InternalServerError(c, "Failed to load staff profile")
		}
		return
	}

	title := c.PostForm("title")
	scanType := c.PostForm("scan_type")
	patientPhone := c.PostForm("patient_phone")
	if title == "" || scanType == "" || patientPhone == "" {
		utils.BadRequest(c, "title, scan_type and patient_phone are required")
		return
	}

	var testDate *time.Time
	if raw := c.PostForm("test_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.BadRequest(c, "Invalid test_date format. Please use YYYY-MM-DD")
			return
		}
		testDate = &parsed
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return
	}
	defer file.Close()

	maxBytes := int64(h.Cfg.Vault.MaxUploadMB) * 1024 * 1024
	if header.Size > maxBytes {
		utils.PayloadTooLarge(c, fmt.Sprintf("File exceeds the %dMB upload limit", h.Cfg.Vault.MaxUploadMB))
		return
	}

	// Bounded read; the size check above makes this a backstop.
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		utils.InternalServerError(c, "Error reading file content")
		return
	}
	if int64(len(data)) > maxBytes {
		utils.PayloadTooLarge(c, fmt.Sprintf("File exceeds the %dMB upload limit", h.Cfg.Vault.MaxUploadMB))
		return
	}

	result, err := h.Vault.Upload(c.Request.Context(), vault.UploadInput{
		Staff:               &staff,
		ActorUserID:         userID,
		Title:               title,
		ScanType:            models.ScanType(scanType),
		HospitalName:        c.PostForm("hospital_name"),
		TestDate:            testDate,
		PatientPhone:        patientPhone,
		PatientAadhaarLast4: c.PostForm("patient_aadhaar_last4"),
		ContentType:         header.Header.Get("Content-Type"),
		Data:                data,
		Client:              clientOf(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrStaffNotVerified):
			utils.Forbidden(c, "Your account is not verified yet")
		case errors.Is(err, vault.ErrPatientNotFound):
			utils.NotFound(c, fmt.Sprintf("No patient found with phone number %s", utils.MaskPhone(patientPhone)))
		case errors.Is(err, vault.ErrAadhaarMismatch):
			utils.Forbidden(c, "Aadhaar verification failed")
		default:
			utils.InternalServerError(c, "Upload failed")
		}
		return
	}

	var patientUser models.User
	if err := h.DB.First(&patientUser, "id = ?", result.Patient.UserID).Error; err != nil {
		utils.InternalServerError(c, "Failed to load patient account")
		return
	}

	utils.Created(c, "Report uploaded and encrypted successfully", UploadReportResponse{
		ReportID:     result.Report.ID,
		Title:        result.Report.Title,
		PatientName:  patientUser.FullName,
		PatientPhone: utils.MaskPhone(result.Patient.PhoneNumber),
	})
}

// UploadHistory returns the reports the calling staff member has uploaded.
func (h *ReportHandler) UploadHistory(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var staff models.HospitalStaff
	if err := h.DB.First(&staff, "user_id = ?", userID).Error; err != nil {
		utils.Forbidden(c, "Only hospital staff can view upload history")
		return
	}

	reports, err := h.Vault.UploadHistory(c.Request.Context(), staff.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch upload history")
		return
	}

	utils.Success(c, "Upload history fetched successfully", reports)
}

// ListReports returns the calling patient's reports with a per-report
// can_view flag. Listing never requires the OTP challenge.
func (h *ReportHandler) ListReports(c *gin.Context) {
	profile, _, ok := h.patientProfile(c)
	if !ok {
		return
	}

	summaries, otpVerified, err := h.Vault.List(c.Request.Context(), sessionOf(c), profile)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch reports")
		return
	}

	utils.Success(c, "Reports fetched successfully", gin.H{
		"reports":     summaries,
		"otpVerified": otpVerified,
	})
}

// ViewReport streams the decrypted report to its owner. Denials come back as
// structured errors; a blocked OTP gate is flagged with requires_otp so the
// client knows to start the challenge.
func (h *ReportHandler) ViewReport(c *gin.Context) {
	profile, userID, ok := h.patientProfile(c)
	if !ok {
		return
	}

	result, err := h.Vault.View(c.Request.Context(), userID, sessionOf(c), profile, c.Param("id"), clientOf(c))
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrReportNotFound):
			utils.NotFound(c, "Report not found or you do not have permission to access this report")
		case errors.Is(err, vault.ErrOTPRequired):
			utils.ErrorWithData(c, http.StatusForbidden, "OTP verification required to view this report", gin.H{
				"requires_otp": true,
			})
		case errors.Is(err, vault.ErrVaultUnavailable):
			utils.ServiceUnavailable(c, "Report temporarily unavailable")
		default:
			utils.InternalServerError(c, "Failed to retrieve report")
		}
		return
	}

	c.Writer.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Report.Title))
	c.Data(http.StatusOK, result.Report.ContentType, result.Data)
}

// AccessLogs returns the audit trail for the calling patient's reports,
// newest first.
func (h *ReportHandler) AccessLogs(c *gin.Context) {
	profile, _, ok := h.patientProfile(c)
	if !ok {
		return
	}

	logs, err := h.Vault.AccessLogs(c.Request.Context(), profile)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch access logs")
		return
	}

	utils.Success(c, "Access logs fetched successfully", logs)
}
