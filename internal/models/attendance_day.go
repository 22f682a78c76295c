package models

import (
	"fmt"
	"time"
)

// Day-level statuses derived by the aggregation engine
const (
	StatusPresent      = "PRESENT"
	StatusAbsent       = "ABSENT"
	StatusPartial      = "PARTIAL"
	StatusHoursDeficit = "HOURS_DEFICIT"
)

// DefaultMinimumHours applies when a check-in carries no minimum-hours value.
const DefaultMinimumHours = 8.0

// AttendanceDay is the derived per-day summary of a record set. It is rebuilt
// on every aggregation pass and never persisted.
type AttendanceDay struct {
	DateOfPunch      string              `json:"date_of_punch"`
	AttendanceStatus string              `json:"attendance_status"`
	TotalDuration    time.Duration       `json:"total_duration"`
	BreakDuration    time.Duration       `json:"break_duration"`
	WorkedHours      float64             `json:"worked_hours"`
	RequiresApproval bool                `json:"requires_approval"`
	Records          []*AttendanceRecord `json:"records"`
}

// FirstCheckIn returns the earliest IN punch of the day, or nil. Records are
// expected to be sorted by timestamp ascending.
func (d *AttendanceDay) FirstCheckIn() *AttendanceRecord {
	for _, r := range d.Records {
		if r.IsCheckIn() {
			return r
		}
	}
	return nil
}

// LastRecord returns the latest punch of the day, or nil.
func (d *AttendanceDay) LastRecord() *AttendanceRecord {
	if len(d.Records) == 0 {
		return nil
	}
	return d.Records[len(d.Records)-1]
}

// PunchCounts returns the number of IN and OUT punches.
func (d *AttendanceDay) PunchCounts() (ins, outs int) {
	for _, r := range d.Records {
		if r.IsCheckIn() {
			ins++
		} else if r.IsCheckOut() {
			outs++
		}
	}
	return ins, outs
}

// MinimumHours returns the minimum-hours requirement captured on the first
// check-in, falling back to the default.
func (d *AttendanceDay) MinimumHours() float64 {
	if in := d.FirstCheckIn(); in != nil && in.MinimumHoursRequired > 0 {
		return in.MinimumHoursRequired
	}
	return DefaultMinimumHours
}

// FormatDuration renders the total duration as "7h 30m".
func (d *AttendanceDay) FormatDuration() string {
	hours := int(d.TotalDuration.Hours())
	minutes := int(d.TotalDuration.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
