package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"report-vault-server/internal/config"
	"report-vault-server/internal/middleware"
	"report-vault-server/internal/models"
	"report-vault-server/internal/utils"
	"report-vault-server/internal/vault"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Vault *vault.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, v *vault.Service) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Vault: v}
}

// RegisterPatientRequest represents the request body for patient registration.
type RegisterPatientRequest struct {
	FullName       string `json:"fullName" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	PhoneNumber    string `json:"phoneNumber" binding:"required,min=10,max=15"`
	AadhaarLast4   string `json:"aadhaarLast4" binding:"omitempty,len=4,numeric"`
	Age            int    `json:"age" binding:"required,gt=0"`
	District       string `json:"district" binding:"required"`
	EconomicStatus string `json:"economicStatus" binding:"required,oneof=APL BPL"`
	DiseaseType    string `json:"diseaseType" binding:"required"`
}

// RegisterPatient handles patient registration: an account plus the patient
// profile the vault matches uploads against.
func (h *AuthHandler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existingUser models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error")
		return
	}

	var existingProfile models.PatientProfile
	if err := h.DB.Where("phone_number = ?", req.PhoneNumber).First(&existingProfile).Error; err == nil {
		utils.BadRequest(c, "A patient with this phone number already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error")
		return
	}

	user := models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     models.RolePatient,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.PatientProfile{
			UserID:         user.ID,
			Age:            req.Age,
			District:       req.District,
			EconomicStatus: req.EconomicStatus,
			DiseaseType:    req.DiseaseType,
			PhoneNumber:    req.PhoneNumber,
			AadhaarLast4:   req.AadhaarLast4,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to register patient")
		return
	}

	utils.Created(c, "Patient registered successfully", user.Sanitize())
}

// RegisterStaffRequest represents the request body for hospital staff registration.
type RegisterStaffRequest struct {
	StaffName     string `json:"staffName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	HospitalName  string `json:"hospitalName" binding:"required"`
	Department    string `json:"department"`
	LicenseNumber string `json:"licenseNumber" binding:"required"`
}

// RegisterStaff handles hospital staff registration. Accounts start
// unverified and cannot upload until an admin verifies the license.
func (h *AuthHandler) RegisterStaff(c *gin.Context) {
	var req RegisterStaffRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existingUser models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error")
		return
	}

	var existingStaff models.HospitalStaff
	if err := h.DB.Where("license_number = ?", req.LicenseNumber).First(&existingStaff).Error; err == nil {
		utils.BadRequest(c, "Staff with this license number already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error")
		return
	}

	user := models.User{
		Email:    req.Email,
		FullName: req.StaffName,
		Role:     models.RoleHospitalStaff,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		staff := models.HospitalStaff{
			UserID:        user.ID,
			StaffName:     req.StaffName,
			HospitalName:  req.HospitalName,
			Department:    req.Department,
			LicenseNumber: req.LicenseNumber,
			IsVerified:    false, // admin verification required
		}
		return tx.Create(&staff).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to register staff")
		return
	}

	utils.Created(c, "Hospital staff registered successfully. Awaiting admin verification.", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	// Unverified staff cannot log in at all; verification happens out of band.
	if user.Role == models.RoleHospitalStaff {
		var staff models.HospitalStaff
		if err := h.DB.Where("user_id = ?", user.ID).First(&staff).Error; err != nil {
			utils.InternalServerError(c, "Failed to load staff profile")
			return
		}
		if !staff.IsVerified {
			utils.Forbidden(c, "Your account is pending verification by an administrator")
			return
		}
	}

	accessToken, refreshTokenString, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate tokens")
		return
	}
	// Store refresh token in DB
	refreshToken := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshTokenString,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
		IsRevoked: false,
	}
	if err := h.DB.Create(&refreshToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to store refresh token")
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken handles refreshing an access token using a refresh token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	claims, err := utils.ValidateToken(req.RefreshToken, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}
	// Check if refresh token is revoked or still valid in DB
	var storedToken models.RefreshToken
	err = h.DB.Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?",
		req.RefreshToken, claims.UserID, false, time.Now()).First(&storedToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.InternalServerError(c, "Database error checking refresh token")
		}
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		utils.InternalServerError(c, "Failed to find user associated with token")
		return
	}

	// Refresh token rotation: revoke the old token, issue and store a new pair.
	storedToken.IsRevoked = true
	h.DB.Save(&storedToken)

	newAccessToken, newRefreshTokenString, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate new tokens")
		return
	}

	newRefreshToken := models.RefreshToken{
		UserID:    user.ID,
		Token:     newRefreshTokenString,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
		IsRevoked: false,
	}
	if err := h.DB.Create(&newRefreshToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to store new refresh token")
		return
	}

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshTokenString,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the refresh token and drops any OTP verification the
// session held.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	if sessionID, ok := middleware.GetSessionIDFromContext(c); ok {
		h.Vault.Sessions().Clear(sessionID)
	}

	var storedToken models.RefreshToken
	if err := h.DB.Where("token = ? AND is_revoked = ?", req.RefreshToken, false).First(&storedToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Token not found or already revoked, which is acceptable for logout.
			utils.Success(c, "Logout successful (token not found or already invalid).", nil)
		} else {
			utils.InternalServerError(c, "Database error during logout")
		}
		return
	}

	storedToken.IsRevoked = true
	storedToken.ExpiresAt = time.Now()
	if err := h.DB.Save(&storedToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to revoke refresh token")
		return
	}

	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}
