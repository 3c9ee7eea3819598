package models

// HospitalStaff holds the staff-side identity attributes. A staff account
// with IsVerified=false may never pass the upload RBAC gate; only an admin
// flips the flag.
type HospitalStaff struct {
	BaseModel
	UserID        string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	StaffName     string `gorm:"size:255;not null" json:"staffName"`
	HospitalName  string `gorm:"size:255;not null" json:"hospitalName"`
	Department    string `gorm:"size:100" json:"department,omitempty"`
	LicenseNumber string `gorm:"size:100;uniqueIndex;not null" json:"licenseNumber"`
	IsVerified    bool   `gorm:"default:false" json:"isVerified"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}
