package models

import (
	"time"
)

// Profile is the user profile row, keyed by email. Two independent clocks
// drive conflict resolution: LastUpdatedAt moves only on local edits,
// ServerLastSyncedAt moves only on successful server reads/writes. A merge
// lets server data win when ServerLastSyncedAt >= LastUpdatedAt.
type Profile struct {
	Email          string `gorm:"primaryKey" json:"email"`
	UserID         string `gorm:"index" json:"user_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ProfilePhoto   string `json:"profile_photo"`
	DateOfBirth    string `gorm:"type:varchar(10)" json:"date_of_birth"`
	EmploymentType string `gorm:"type:varchar(30)" json:"employment_type"`
	Designation    string `json:"designation"`
	ShiftStartTime string `gorm:"type:varchar(5)" json:"shift_start_time"`
	ShiftEndTime   string `gorm:"type:varchar(5)" json:"shift_end_time"`

	LastUpdatedAt      int64     `gorm:"not null;default:0" json:"last_updated_at"`
	ServerLastSyncedAt int64     `gorm:"column:server_last_synced_at;not null;default:0" json:"server_last_synced_at"`
	IsSynced           bool      `gorm:"not null;default:false" json:"is_synced"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profile"
}

// Profile property names accepted by the sync surface
const (
	PropFirstName      = "firstName"
	PropLastName       = "lastName"
	PropProfilePhoto   = "profilePhoto"
	PropDateOfBirth    = "dateOfBirth"
	PropEmploymentType = "employmentType"
	PropDesignation    = "designation"
	PropShiftStartTime = "shiftStartTime"
	PropShiftEndTime   = "shiftEndTime"
)

// IsProfileProperty reports whether name is a known profile property.
func IsProfileProperty(name string) bool {
	switch name {
	case PropFirstName, PropLastName, PropProfilePhoto, PropDateOfBirth,
		PropEmploymentType, PropDesignation, PropShiftStartTime, PropShiftEndTime:
		return true
	}
	return false
}

// SetProperty applies a named property value to the row. Unknown names are
// ignored and reported as false so a stray key never aborts a profile load.
func (p *Profile) SetProperty(name, value string) bool {
	switch name {
	case PropFirstName:
		p.FirstName = value
	case PropLastName:
		p.LastName = value
	case PropProfilePhoto:
		p.ProfilePhoto = value
	case PropDateOfBirth:
		p.DateOfBirth = value
	case PropEmploymentType:
		p.EmploymentType = value
	case PropDesignation:
		p.Designation = value
	case PropShiftStartTime:
		p.ShiftStartTime = value
	case PropShiftEndTime:
		p.ShiftEndTime = value
	default:
		return false
	}
	return true
}

// Property returns a named property value.
func (p *Profile) Property(name string) (string, bool) {
	switch name {
	case PropFirstName:
		return p.FirstName, true
	case PropLastName:
		return p.LastName, true
	case PropProfilePhoto:
		return p.ProfilePhoto, true
	case PropDateOfBirth:
		return p.DateOfBirth, true
	case PropEmploymentType:
		return p.EmploymentType, true
	case PropDesignation:
		return p.Designation, true
	case PropShiftStartTime:
		return p.ShiftStartTime, true
	case PropShiftEndTime:
		return p.ShiftEndTime, true
	}
	return "", false
}

// IsValid checks the profile data
func (p *Profile) IsValid() bool {
	return p.Email != ""
}
