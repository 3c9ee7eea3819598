package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"report-vault-server/internal/config"
	"report-vault-server/internal/models"
	"report-vault-server/internal/routes"
	"report-vault-server/internal/utils"
	"report-vault-server/internal/vault"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handlers_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		Environment:      "test",
		JWTSecret:        "test-secret",
		JWTRefreshSecret: "test-refresh-secret",
		Vault: config.VaultConfig{
			OTPCodeTTLMinutes:    10,
			OTPSessionTTLMinutes: 5,
			RevealOTP:            true,
			MaxUploadMB:          1,
		},
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
	}

	blobs, err := vault.NewDiskBlobStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	v := vault.NewService(db, blobs, cfg.Vault, nil)

	router := gin.New()
	routes.SetupRoutes(router, db, cfg, v)
	return &testEnv{router: router, db: db, cfg: cfg}
}

func (e *testEnv) createUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Email: email, FullName: "Test " + string(role), Role: role}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createPatient(t *testing.T, phone string) *models.User {
	t.Helper()
	user := e.createUser(t, phone+"@example.com", models.RolePatient)
	profile := &models.PatientProfile{
		UserID:         user.ID,
		Age:            35,
		District:       "Mysuru",
		EconomicStatus: models.EconomicStatusAPL,
		DiseaseType:    "General",
		PhoneNumber:    phone,
	}
	require.NoError(t, e.db.Create(profile).Error)
	return user
}

func (e *testEnv) createStaff(t *testing.T, license string, verified bool) *models.User {
	t.Helper()
	user := e.createUser(t, license+"@hospital.example.com", models.RoleHospitalStaff)
	staff := &models.HospitalStaff{
		UserID:        user.ID,
		StaffName:     user.FullName,
		HospitalName:  "District General",
		LicenseNumber: license,
		IsVerified:    verified,
	}
	require.NoError(t, e.db.Create(staff).Error)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := utils.GenerateTokens(user, e.cfg)
	require.NoError(t, err)
	return access
}

func (e *testEnv) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	if payload != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(payload))
	}
	return e.do(t, method, path, token, buf, "application/json")
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func envelopeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", rec.Body.String())
	return data
}

func (e *testEnv) uploadReport(t *testing.T, token, phone string, payload []byte) string {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "Chest X-Ray"))
	require.NoError(t, writer.WriteField("scan_type", string(models.ScanTypeXray)))
	require.NoError(t, writer.WriteField("patient_phone", phone))
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := e.do(t, http.MethodPost, "/api/v1/reports/upload", token, buf, writer.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	reportID, ok := envelopeData(t, rec)["reportId"].(string)
	require.True(t, ok)
	return reportID
}

func TestReportLifecycle(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", true)
	patient := env.createPatient(t, "9876543210")
	staffToken := env.tokenFor(t, staff)
	patientToken := env.tokenFor(t, patient)

	payload := []byte("%PDF-1.4 chest x-ray findings")
	reportID := env.uploadReport(t, staffToken, "9876543210", payload)

	// Listing works without the challenge but flags the report as locked.
	rec := env.do(t, http.MethodGet, "/api/v1/reports", patientToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelopeData(t, rec)
	assert.Equal(t, false, data["otpVerified"])
	reports, ok := data["reports"].([]interface{})
	require.True(t, ok)
	require.Len(t, reports, 1)
	first := reports[0].(map[string]interface{})
	assert.Equal(t, reportID, first["id"])
	assert.Equal(t, false, first["canView"])

	// Viewing before the challenge is refused and tells the client why.
	rec = env.do(t, http.MethodGet, "/api/v1/reports/"+reportID+"/view", patientToken, nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, true, envelopeData(t, rec)["requires_otp"])

	// Request a code; in demo mode the response carries it.
	rec = env.doJSON(t, http.MethodPost, "/api/v1/otp/request", patientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code, ok := envelopeData(t, rec)["demoOtp"].(string)
	require.True(t, ok)
	require.Len(t, code, 6)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/otp/verify", patientToken, gin.H{"otpCode": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Verified: the exact uploaded bytes stream back.
	rec = env.do(t, http.MethodGet, "/api/v1/reports/"+reportID+"/view", patientToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")

	// The trail shows the denied attempt and the granted view.
	rec = env.do(t, http.MethodGet, "/api/v1/reports/access-logs", patientToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logsEnvelope struct {
		Data []models.ReportAccessLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logsEnvelope))
	require.Len(t, logsEnvelope.Data, 3)
}

// Each login gets its own OTP window: verifying on one token must not unlock
// report viewing for a second token of the same patient.
func TestOTPVerificationBoundToLogin(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", true)
	patient := env.createPatient(t, "9876543210")
	firstLogin := env.tokenFor(t, patient)
	secondLogin := env.tokenFor(t, patient)

	reportID := env.uploadReport(t, env.tokenFor(t, staff), "9876543210", []byte("scan"))

	rec := env.doJSON(t, http.MethodPost, "/api/v1/otp/request", firstLogin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := envelopeData(t, rec)["demoOtp"].(string)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/otp/verify", firstLogin, gin.H{"otpCode": code})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/"+reportID+"/view", firstLogin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/"+reportID+"/view", secondLogin, nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, true, envelopeData(t, rec)["requires_otp"])
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", true)
	env.createPatient(t, "9876543210")

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "Chest X-Ray"))
	require.NoError(t, writer.WriteField("scan_type", string(models.ScanTypeXray)))
	require.NoError(t, writer.WriteField("patient_phone", "9876543210"))
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 1<<20+1))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/reports/upload", env.tokenFor(t, staff), buf, writer.FormDataContentType())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadResponseMasksPhone(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", true)
	env.createPatient(t, "9876543210")
	staffToken := env.tokenFor(t, staff)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "MRI Brain"))
	require.NoError(t, writer.WriteField("scan_type", string(models.ScanTypeMRI)))
	require.NoError(t, writer.WriteField("patient_phone", "9876543210"))
	part, err := writer.CreateFormFile("file", "mri.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("scan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/reports/upload", staffToken, buf, writer.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "******3210", envelopeData(t, rec)["patientPhone"])
}

func TestUploadRejectedForUnverifiedStaff(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", false)
	env.createPatient(t, "9876543210")

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "Chest X-Ray"))
	require.NoError(t, writer.WriteField("scan_type", string(models.ScanTypeXray)))
	require.NoError(t, writer.WriteField("patient_phone", "9876543210"))
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("scan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/reports/upload", env.tokenFor(t, staff), buf, writer.FormDataContentType())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadUnknownPatientPhone(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createStaff(t, "LIC-001", true)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "Chest X-Ray"))
	require.NoError(t, writer.WriteField("scan_type", string(models.ScanTypeXray)))
	require.NoError(t, writer.WriteField("patient_phone", "0000000000"))
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("scan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/reports/upload", env.tokenFor(t, staff), buf, writer.FormDataContentType())
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The message exposes only the masked number.
	envelope := decodeEnvelope(t, rec)
	errMsg, _ := envelope["error"].(string)
	assert.Contains(t, errMsg, "******0000")
	assert.NotContains(t, errMsg, "0000000000")
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "9876543210")
	staff := env.createStaff(t, "LIC-001", true)
	patientToken := env.tokenFor(t, patient)
	staffToken := env.tokenFor(t, staff)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"patient cannot upload", http.MethodPost, "/api/v1/reports/upload", patientToken},
		{"staff cannot list patient reports", http.MethodGet, "/api/v1/reports", staffToken},
		{"staff cannot request otp", http.MethodPost, "/api/v1/otp/request", staffToken},
		{"patient cannot verify staff", http.MethodPatch, "/api/v1/admin/staff/some-id/verify", patientToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, nil, "")
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/reports", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyOTPRejectsBadCode(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "9876543210")
	token := env.tokenFor(t, patient)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/otp/request", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := envelopeData(t, rec)["demoOtp"].(string)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	rec = env.doJSON(t, http.MethodPost, "/api/v1/otp/verify", token, gin.H{"otpCode": wrong})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/otp/verify", token, gin.H{"otpCode": "12a456"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-numeric code fails validation")
}
