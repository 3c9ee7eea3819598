package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Vault                     VaultConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// VaultConfig holds the secure report vault parameters. It is built once at
// startup and injected into the vault components; nothing reads these values
// from the environment after boot.
type VaultConfig struct {
	// BlobDir is the directory encrypted report blobs are written to.
	BlobDir string
	// OTPCodeTTLMinutes bounds delivery-to-entry latency for an issued code.
	OTPCodeTTLMinutes int
	// OTPSessionTTLMinutes bounds how long one successful challenge keeps
	// granting viewing rights. Deliberately shorter than the code window.
	OTPSessionTTLMinutes int
	// RevealOTP returns the issued code in the OTP-request response. Demo
	// convenience only; false whenever Environment is production.
	RevealOTP bool
	// MaxUploadMB caps the size of a single uploaded report file.
	MaxUploadMB int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "reportvault"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	otpCodeTTL, err := strconv.Atoi(getEnv("OTP_CODE_TTL_MINUTES", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTP_CODE_TTL_MINUTES: %w", err)
	}

	otpSessionTTL, err := strconv.Atoi(getEnv("OTP_SESSION_TTL_MINUTES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTP_SESSION_TTL_MINUTES: %w", err)
	}

	maxUploadMB, err := strconv.Atoi(getEnv("REPORT_MAX_UPLOAD_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_MAX_UPLOAD_MB: %w", err)
	}

	environment := getEnv("APP_ENV", "development")

	vaultConfig := VaultConfig{
		BlobDir:              getEnv("REPORT_BLOB_DIR", "./data/reports"),
		OTPCodeTTLMinutes:    otpCodeTTL,
		OTPSessionTTLMinutes: otpSessionTTL,
		RevealOTP:            environment != "production",
		MaxUploadMB:          maxUploadMB,
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:5173"),
		Environment:               environment,
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:                  dbConfig,
		Vault:                     vaultConfig,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
