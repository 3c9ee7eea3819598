package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"report-vault-server/internal/models"
	"report-vault-server/internal/utils"
)

// AdminHandler handles administrative operations, chiefly hospital staff
// verification. Verification is the only way a staff account gains upload
// rights.
type AdminHandler struct {
	DB *gorm.DB
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{DB: db}
}

// GetStaff handles listing hospital staff accounts, optionally filtered to
// those awaiting verification (?pending=true).
func (h *AdminHandler) GetStaff(c *gin.Context) {
	query := h.DB.Model(&models.HospitalStaff{}).Order("created_at desc")
	if c.Query("pending") == "true" {
		query = query.Where("is_verified = ?", false)
	}

	var staff []models.HospitalStaff
	if err := query.Find(&staff).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch staff")
		return
	}

	utils.Success(c, "Staff fetched successfully", staff)
}

// VerifyStaff handles marking a hospital staff account as verified.
func (h *AdminHandler) VerifyStaff(c *gin.Context) {
	staffID := c.Param("id")

	var staff models.HospitalStaff
	if err := h.DB.First(&staff, "id = ?", staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Staff not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}

	if staff.IsVerified {
		utils.Success(c, "Staff is already verified", staff)
		return
	}

	staff.IsVerified = true
	if err := h.DB.Save(&staff).Error; err != nil {
		utils.InternalServerError(c, "Failed to verify staff")
		return
	}

	utils.Success(c, "Staff verified successfully", staff)
}

// GetUsers handles fetching all users (admin).
func (h *AdminHandler) GetUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Find(&users).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch users")
		return
	}

	sanitizedUsers := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitizedUsers[i] = u.Sanitize()
	}

	utils.Success(c, "Users fetched successfully", sanitizedUsers)
}
