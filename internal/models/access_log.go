package models

// AccessType tags what kind of access decision an audit entry records
type AccessType string

const (
	AccessTypeUpload             AccessType = "UPLOAD"
	AccessTypeUploadAttempt      AccessType = "UPLOAD_ATTEMPT"
	AccessTypeView               AccessType = "VIEW"
	AccessTypeUnauthorizedAccess AccessType = "UNAUTHORIZED_ACCESS_ATTEMPT"
)

// ReportAccessLog is the immutable audit trail: one row per access decision,
// granted or denied, across upload, view and verification-failure events.
// Rows are only ever inserted; no code path updates or deletes them. This
// table, not the session state, is the system of record for compliance
// review.
type ReportAccessLog struct {
	BaseModel
	ReportID      *string    `gorm:"size:36;index" json:"reportId"` // nullable: attempts against non-existent reports
	UserID        string     `gorm:"size:36;index;not null" json:"userId"`
	AccessType    AccessType `gorm:"size:30;not null" json:"accessType"`
	IPAddress     string     `gorm:"size:45" json:"ipAddress"`
	UserAgent     string     `gorm:"size:200" json:"userAgent"`
	OTPVerified   bool       `gorm:"default:false" json:"otpVerified"`
	AccessGranted bool       `gorm:"default:false" json:"accessGranted"`

	// Relations
	Report *MedicalReport `gorm:"foreignKey:ReportID" json:"-"`
	User   User           `gorm:"foreignKey:UserID" json:"-"`
}
