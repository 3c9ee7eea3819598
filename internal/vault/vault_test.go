package vault

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"report-vault-server/internal/config"
	"report-vault-server/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "vault_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *DiskBlobStore) {
	t.Helper()
	blobs, err := NewDiskBlobStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	cfg := config.VaultConfig{
		OTPCodeTTLMinutes:    10,
		OTPSessionTTLMinutes: 5,
	}
	return NewService(db, blobs, cfg, nil), blobs
}

func seedPatient(t *testing.T, db *gorm.DB, phone, aadhaarLast4 string) (*models.User, *models.PatientProfile) {
	t.Helper()
	user := &models.User{
		Email:    phone + "@example.com",
		FullName: "Test Patient",
		Role:     models.RolePatient,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)

	profile := &models.PatientProfile{
		UserID:         user.ID,
		Age:            42,
		District:       "Mysuru",
		EconomicStatus: models.EconomicStatusBPL,
		DiseaseType:    "General",
		PhoneNumber:    phone,
		AadhaarLast4:   aadhaarLast4,
	}
	require.NoError(t, db.Create(profile).Error)
	return user, profile
}

func seedStaff(t *testing.T, db *gorm.DB, license string, verified bool) (*models.User, *models.HospitalStaff) {
	t.Helper()
	user := &models.User{
		Email:    license + "@hospital.example.com",
		FullName: "Test Staff",
		Role:     models.RoleHospitalStaff,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)

	staff := &models.HospitalStaff{
		UserID:        user.ID,
		StaffName:     "Test Staff",
		HospitalName:  "District General",
		LicenseNumber: license,
		IsVerified:    verified,
	}
	require.NoError(t, db.Create(staff).Error)
	return user, staff
}

func allLogs(t *testing.T, db *gorm.DB) []models.ReportAccessLog {
	t.Helper()
	var logs []models.ReportAccessLog
	require.NoError(t, db.Order("created_at asc").Find(&logs).Error)
	return logs
}

// fixedClock returns a clock function pinned to base plus an adjustable offset.
type fixedClock struct {
	base   time.Time
	offset time.Duration
}

func (c *fixedClock) now() time.Time {
	return c.base.Add(c.offset)
}

func (c *fixedClock) advance(d time.Duration) {
	c.offset += d
}
