package models

import (
	"time"
)

// MonthlySummary is a locally materialized per-user month rollup of the
// aggregation engine's day summaries. It is rebuilt from raw records (never
// pushed to the server) so month views stay fast offline.
type MonthlySummary struct {
	ID     uint   `gorm:"primarykey" json:"id"`
	UserID string `gorm:"not null;index:idx_summary_user_month,unique" json:"user_id"`
	Year   int    `gorm:"not null;index:idx_summary_user_month,unique" json:"year"`
	Month  int    `gorm:"not null;check:month >= 1 AND month <= 12;index:idx_summary_user_month,unique" json:"month"`

	// Expected values derived from the calendar minus non-working days
	ExpectedDays    int `gorm:"not null;default:0" json:"expected_days"`
	ExpectedMinutes int `gorm:"not null;default:0" json:"expected_minutes"`

	// Observed values folded from day summaries
	WorkedDays      int `gorm:"not null;default:0" json:"worked_days"`
	WorkedMinutes   int `gorm:"not null;default:0" json:"worked_minutes"`
	PresentDays     int `gorm:"not null;default:0" json:"present_days"`
	DeficitDays     int `gorm:"not null;default:0" json:"deficit_days"`
	AbsentDays      int `gorm:"not null;default:0" json:"absent_days"`
	OvertimeMinutes int `gorm:"not null;default:0" json:"overtime_minutes"`
	DeficitMinutes  int `gorm:"not null;default:0" json:"deficit_minutes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MonthlySummary) TableName() string {
	return "monthly_summaries"
}

// CalculateStats derives overtime and deficit from worked vs expected minutes
func (ms *MonthlySummary) CalculateStats() {
	diff := ms.WorkedMinutes - ms.ExpectedMinutes
	if diff > 0 {
		ms.OvertimeMinutes = diff
		ms.DeficitMinutes = 0
	} else {
		ms.OvertimeMinutes = 0
		ms.DeficitMinutes = -diff
	}
}

// IsValid checks the summary data
func (ms *MonthlySummary) IsValid() bool {
	if ms.UserID == "" {
		return false
	}
	if ms.Month < 1 || ms.Month > 12 {
		return false
	}
	if ms.ExpectedDays < 0 || ms.ExpectedMinutes < 0 {
		return false
	}
	if ms.WorkedDays < 0 || ms.WorkedMinutes < 0 {
		return false
	}
	return true
}
