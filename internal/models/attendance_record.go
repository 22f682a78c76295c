package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AttendanceRecord is a single punch event. The punch timestamp (UTC epoch
// millis) is the primary key: at most one record can exist per exact
// millisecond, and duplicate inserts resolve to the existing row.
type AttendanceRecord struct {
	Timestamp      int64  `gorm:"primaryKey;autoIncrement:false" json:"timestamp"`
	OrgID          string `gorm:"index" json:"org_id"`
	UserID         string `gorm:"not null;index" json:"user_id"`
	PunchType      string `gorm:"type:varchar(30)" json:"punch_type"`
	PunchDirection string `gorm:"type:varchar(3);not null;index" json:"punch_direction"`
	LatLon         string `json:"lat_lon"`
	Address        string `json:"address"`
	CreatedOn      int64  `gorm:"not null" json:"created_on"`

	// IsSynced is "Y" once the server has confirmed the punch, "N" before.
	IsSynced string `gorm:"type:varchar(1);not null;default:'N';index" json:"is_synced"`

	// DateOfPunch is the UTC calendar day ("2006-01-02") the record is
	// attributed to. For an overnight checkout it differs from the calendar
	// day of Timestamp and LinkedEntryDate points back to the check-in's date.
	DateOfPunch     string `gorm:"type:varchar(10);index" json:"date_of_punch"`
	LinkedEntryDate string `gorm:"type:varchar(10)" json:"linked_entry_date"`

	// AttendanceStatus tags a checkout with a break type (lunch, tea, ...).
	// Nil for plain punches.
	AttendanceStatus *string `gorm:"type:varchar(30)" json:"attendance_status"`

	ModuleID         string `gorm:"type:varchar(30)" json:"module_id"`
	TripType         string `gorm:"type:varchar(30)" json:"trip_type"`
	PassengerID      string `json:"passenger_id"`
	AllowanceData    string `json:"allowance_data"`
	IsCheckoutQrScan bool   `gorm:"default:false" json:"is_checkout_qr_scan"`
	TravelerName     string `json:"traveler_name"`
	PhoneNumber      string `json:"phone_number"`

	// Shift metadata captured at check-in time, "15:04" clock strings.
	ShiftStartTime       string  `gorm:"type:varchar(5)" json:"shift_start_time"`
	ShiftEndTime         string  `gorm:"type:varchar(5)" json:"shift_end_time"`
	MinimumHoursRequired float64 `gorm:"default:0" json:"minimum_hours_required"`
}

func (AttendanceRecord) TableName() string {
	return "attendance"
}

// Punch directions
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// IsSynced column values
const (
	SyncedYes = "Y"
	SyncedNo  = "N"
)

// DateKeyLayout is the calendar-day format used across the store.
const DateKeyLayout = "2006-01-02"

// AllowanceEntry is one element of the serialized AllowanceData list.
type AllowanceEntry struct {
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
	Remarks string  `json:"remarks,omitempty"`
}

// IsCheckIn reports whether the record is an IN punch.
func (r *AttendanceRecord) IsCheckIn() bool {
	return r.PunchDirection == DirectionIn
}

// IsCheckOut reports whether the record is an OUT punch.
func (r *AttendanceRecord) IsCheckOut() bool {
	return r.PunchDirection == DirectionOut
}

// Synced reports whether the server has confirmed this punch.
func (r *AttendanceRecord) Synced() bool {
	return r.IsSynced == SyncedYes
}

// IsBreak reports whether the record carries a break tag.
func (r *AttendanceRecord) IsBreak() bool {
	return r.AttendanceStatus != nil && *r.AttendanceStatus != ""
}

// PunchTime returns the punch instant in UTC.
func (r *AttendanceRecord) PunchTime() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// DayKey returns the calendar day the record belongs to for aggregation:
// LinkedEntryDate for an overnight checkout, else DateOfPunch, else the UTC
// day derived from the punch timestamp.
func (r *AttendanceRecord) DayKey() string {
	if r.IsCheckOut() && r.LinkedEntryDate != "" {
		return r.LinkedEntryDate
	}
	if r.DateOfPunch != "" {
		return r.DateOfPunch
	}
	return r.PunchTime().Format(DateKeyLayout)
}

// Allowances decodes the serialized allowance list. A corrupt value degrades
// to nil instead of failing the caller.
func (r *AttendanceRecord) Allowances() []AllowanceEntry {
	if r.AllowanceData == "" {
		return nil
	}
	var entries []AllowanceEntry
	if err := json.Unmarshal([]byte(r.AllowanceData), &entries); err != nil {
		return nil
	}
	return entries
}

// IsValid checks the record data
func (r *AttendanceRecord) IsValid() bool {
	if r.Timestamp <= 0 {
		return false
	}
	if r.UserID == "" {
		return false
	}
	if r.PunchDirection != DirectionIn && r.PunchDirection != DirectionOut {
		return false
	}
	return true
}

// FormatTime formats the punch for display
func (r *AttendanceRecord) FormatTime() string {
	return fmt.Sprintf("%s %s", r.PunchDirection, r.PunchTime().Format("15:04"))
}
