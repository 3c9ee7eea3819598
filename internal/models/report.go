package models

import (
	"time"
)

// ScanType represents the kind of diagnostic scan a report contains
type ScanType string

const (
	ScanTypeMRI        ScanType = "MRI"
	ScanTypeCT         ScanType = "CT"
	ScanTypeBlood      ScanType = "Blood"
	ScanTypeXray       ScanType = "Xray"
	ScanTypeUltrasound ScanType = "Ultrasound"
	ScanTypeECG        ScanType = "ECG"
	ScanTypeOther      ScanType = "Others"
)

// MedicalReport is a diagnostic report held by the vault. The row is created
// once by the upload pipeline and is immutable afterwards except for
// IsAnalyzed. A report belongs to exactly one patient for its lifetime.
//
// The envelope key lives here, in the metadata row; the ciphertext lives in
// the blob store under BlobRef. Neither store alone is enough to recover the
// plaintext.
type MedicalReport struct {
	BaseModel
	PatientID         string     `gorm:"size:36;index;not null" json:"patientId"`
	UploadedByStaffID *string    `gorm:"size:36;index" json:"uploadedByStaffId,omitempty"` // nullable: a report outlives the staff account
	Title             string     `gorm:"size:255;not null" json:"title"`
	ScanType          ScanType   `gorm:"size:50" json:"scanType"`
	HospitalName      string     `gorm:"size:255" json:"hospitalName,omitempty"`
	TestDate          *time.Time `json:"testDate,omitempty"`
	BlobRef           string     `gorm:"size:255;not null" json:"-"` // opaque ciphertext reference
	EncryptedFileKey  string     `gorm:"type:text" json:"-"`         // per-report envelope key
	FileSize          int64      `json:"fileSize"`                   // plaintext size in bytes
	ContentType       string     `gorm:"size:100" json:"contentType"`
	IsEncrypted       bool       `gorm:"default:true" json:"-"`
	RequiresOTP       bool       `gorm:"default:true" json:"requiresOtp"`
	IsAnalyzed        bool       `gorm:"default:false" json:"isAnalyzed"`

	// Point-in-time copies of the identifiers the uploader matched on,
	// independent of later profile edits.
	PatientPhoneMatch   string `gorm:"size:15" json:"-"`
	PatientAadhaarMatch string `gorm:"size:4" json:"-"`

	// Relations
	Patient         PatientProfile `gorm:"foreignKey:PatientID" json:"-"`
	UploadedByStaff *HospitalStaff `gorm:"foreignKey:UploadedByStaffID" json:"-"`
}
