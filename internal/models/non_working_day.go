package models

import (
	"time"
)

// NonWorkingDay is one organization holiday or weekly off, loaded from the
// holiday calendar. Half days count toward expected attendance at half the
// shift length.
type NonWorkingDay struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      string    `gorm:"type:varchar(10);uniqueIndex" json:"date"`
	Year      int       `gorm:"index" json:"year"`
	Month     int       `gorm:"index" json:"month"`
	Day       int       `json:"day"`
	IsHalfDay bool      `gorm:"not null;default:false" json:"is_half_day"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NonWorkingDay) TableName() string {
	return "non_working_days"
}

// IsValid checks the non-working day data
func (n *NonWorkingDay) IsValid() bool {
	if len(n.Date) != len(DateKeyLayout) {
		return false
	}
	if n.Month < 1 || n.Month > 12 {
		return false
	}
	if n.Day < 1 || n.Day > 31 {
		return false
	}
	return true
}
