package models

import (
	"encoding/json"
	"time"
)

// Setting is a generic key/value pair with the same two-clock discipline as
// Profile, tracked per key instead of per row-of-many-columns.
type Setting struct {
	Key                 string    `gorm:"primaryKey" json:"key"`
	Value               string    `json:"value"`
	IsSynced            bool      `gorm:"not null;default:false" json:"is_synced"`
	LastUpdatedAt       int64     `gorm:"not null;default:0" json:"last_updated_at"`
	ServerLastUpdatedAt int64     `gorm:"column:server_last_updated_at;not null;default:0" json:"server_last_updated_at"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Well-known setting keys
const (
	SettingNotificationsEnabled = "notificationsEnabled"
	SettingPreferredLanguage    = "preferredLanguage"
	SettingDefaultShiftMinutes  = "defaultShiftMinutes"
)

// DecodeValue unmarshals a JSON-typed setting value into out. A corrupt value
// reports false instead of failing the caller.
func (s *Setting) DecodeValue(out interface{}) bool {
	if s.Value == "" {
		return false
	}
	return json.Unmarshal([]byte(s.Value), out) == nil
}

// IsValid checks the setting data
func (s *Setting) IsValid() bool {
	return s.Key != ""
}
