package apiclient

import "encoding/json"

// PunchRequest is the body for punch-in / punch-out. Timestamps are always
// UTC epoch milliseconds on the wire.
type PunchRequest struct {
	Timestamp        int64  `json:"timestamp"`
	LatLon           string `json:"latLon"`
	Address          string `json:"address"`
	PunchType        string `json:"punchType"`
	ModuleID         string `json:"moduleId"`
	TripType         string `json:"tripType,omitempty"`
	PassengerID      string `json:"passengerId,omitempty"`
	AllowanceData    string `json:"allowanceData,omitempty"`
	IsCheckoutQrScan bool   `json:"isCheckoutQrScan,omitempty"`
	TravelerName     string `json:"travelerName,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
}

// PunchResponse carries the server-confirmed timestamp, which may arrive as
// an ISO datetime string or raw ticks. Callers normalize it via timeutil.
type PunchResponse struct {
	Success   bool            `json:"success"`
	Timestamp json.RawMessage `json:"timestamp"`
	Message   string          `json:"message,omitempty"`
}

// ServerAttendanceRecord is the wire shape of one pulled punch record.
type ServerAttendanceRecord struct {
	Timestamp            json.RawMessage `json:"timestamp"`
	OrgID                string          `json:"orgId,omitempty"`
	UserID               string          `json:"userId,omitempty"`
	PunchType            string          `json:"punchType,omitempty"`
	PunchDirection       string          `json:"punchDirection"`
	LatLon               string          `json:"latLon,omitempty"`
	Address              string          `json:"address,omitempty"`
	DateOfPunch          string          `json:"dateOfPunch,omitempty"`
	AttendanceStatus     *string         `json:"attendanceStatus,omitempty"`
	ModuleID             string          `json:"moduleId,omitempty"`
	TripType             string          `json:"tripType,omitempty"`
	PassengerID          string          `json:"passengerId,omitempty"`
	AllowanceData        string          `json:"allowanceData,omitempty"`
	IsCheckoutQrScan     bool            `json:"isCheckoutQrScan,omitempty"`
	TravelerName         string          `json:"travelerName,omitempty"`
	PhoneNumber          string          `json:"phoneNumber,omitempty"`
	ShiftStartTime       string          `json:"shiftStartTime,omitempty"`
	ShiftEndTime         string          `json:"shiftEndTime,omitempty"`
	MinimumHoursRequired float64         `json:"minimumHoursRequired,omitempty"`
	LinkedEntryDate      string          `json:"linkedEntryDate,omitempty"`
}

// ServerAttendanceDay is one day's worth of server records.
type ServerAttendanceDay struct {
	DateOfPunch string                   `json:"dateOfPunch"`
	Records     []ServerAttendanceRecord `json:"records"`
}

// ProfileUpdateRequest pushes profile fields to the server.
type ProfileUpdateRequest struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	ProfilePhoto   string `json:"profilePhoto,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	EmploymentType string `json:"employmentType,omitempty"`
	Designation    string `json:"designation,omitempty"`
	ShiftStartTime string `json:"shiftStartTime,omitempty"`
	ShiftEndTime   string `json:"shiftEndTime,omitempty"`
}

// ProfileResponse is the server's profile payload. LastSyncedAt is an ISO
// datetime string.
type ProfileResponse struct {
	Email          string `json:"email"`
	UserID         string `json:"userId,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	ProfilePhoto   string `json:"profilePhoto,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	EmploymentType string `json:"employmentType,omitempty"`
	Designation    string `json:"designation,omitempty"`
	ShiftStartTime string `json:"shiftStartTime,omitempty"`
	ShiftEndTime   string `json:"shiftEndTime,omitempty"`
	LastSyncedAt   string `json:"lastSyncedAt"`
}
