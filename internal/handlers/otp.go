package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"report-vault-server/internal/config"
	"report-vault-server/internal/middleware"
	"report-vault-server/internal/models"
	"report-vault-server/internal/utils"
	"report-vault-server/internal/vault"
)

// OTPHandler handles the patient OTP challenge endpoints.
type OTPHandler struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Vault *vault.Service
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(db *gorm.DB, cfg *config.Config, v *vault.Service) *OTPHandler {
	return &OTPHandler{DB: db, Cfg: cfg, Vault: v}
}

func (h *OTPHandler) patientProfile(c *gin.Context) (*models.PatientProfile, string, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return nil, "", false
	}
	var profile models.PatientProfile
	if err := h.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Forbidden(c, "Only patients can use OTP verification")
		} else {
			utils.InternalServerError(c, "Failed to load patient profile")
		}
		return nil, "", false
	}
	return &profile, userID, true
}

// RequestOTP issues a fresh code for the calling patient. Delivery to the
// registered phone is handled out of band; outside production the code is
// echoed back for demo use.
func (h *OTPHandler) RequestOTP(c *gin.Context) {
	profile, _, ok := h.patientProfile(c)
	if !ok {
		return
	}

	code, err := h.Vault.IssueOTP(c.Request.Context(), profile)
	if err != nil {
		utils.InternalServerError(c, "Failed to issue OTP")
		return
	}

	data := gin.H{}
	if h.Cfg.Vault.RevealOTP {
		data["demoOtp"] = code
	}
	utils.Success(c, fmt.Sprintf("OTP sent to %s", utils.MaskPhone(profile.PhoneNumber)), data)
}

// VerifyOTPRequest represents the request body for OTP verification.
type VerifyOTPRequest struct {
	OTPCode string `json:"otpCode" binding:"required,len=6,numeric"`
}

// VerifyOTP checks the submitted code and, on success, opens the calling
// session's viewing window. The window is bound to the access token, not the
// account, so other logins of the same patient stay challenged.
func (h *OTPHandler) VerifyOTP(c *gin.Context) {
	profile, _, ok := h.patientProfile(c)
	if !ok {
		return
	}

	var req VerifyOTPRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	verified, err := h.Vault.VerifyOTP(c.Request.Context(), sessionOf(c), profile, req.OTPCode)
	if err != nil {
		utils.InternalServerError(c, "Failed to verify OTP")
		return
	}
	if !verified {
		utils.Unauthorized(c, "Invalid or expired OTP")
		return
	}

	utils.Success(c, "OTP verified successfully. You can now access your reports.", nil)
}
