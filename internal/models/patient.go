package models

import (
	"time"
)

// EconomicStatus values accepted at patient registration.
const (
	EconomicStatusAPL = "APL"
	EconomicStatusBPL = "BPL"
)

// PatientProfile holds the patient-side identity attributes the vault depends
// on. PhoneNumber is the unique, immutable key hospital staff use to map an
// uploaded report to a patient. The OTP fields are mutated only by the OTP
// challenge manager.
type PatientProfile struct {
	BaseModel
	UserID         string     `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Age            int        `json:"age"`
	District       string     `gorm:"size:100" json:"district"`
	EconomicStatus string     `gorm:"size:10" json:"economicStatus"`
	DiseaseType    string     `gorm:"size:50" json:"diseaseType"`
	PhoneNumber    string     `gorm:"size:15;uniqueIndex;not null" json:"phoneNumber"`
	AadhaarLast4   string     `gorm:"size:4" json:"-"` // Last 4 digits, optional second factor for matching
	OTPCode        *string    `gorm:"size:6" json:"-"`
	OTPCreatedAt   *time.Time `json:"-"`

	// Relations
	User    User            `gorm:"foreignKey:UserID" json:"-"`
	Reports []MedicalReport `gorm:"foreignKey:PatientID" json:"-"`
}
