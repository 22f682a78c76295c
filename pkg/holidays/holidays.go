package holidays

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CalendarJSON is the on-disk holiday calendar shape: one year, per-month
// day lists. A day suffixed with "*" is a half working day.
type CalendarJSON struct {
	Year   int         `json:"year"`
	Months []MonthDays `json:"months"`
}

type MonthDays struct {
	Month int    `json:"month"`
	Days  string `json:"days"`
}

// Day is one parsed non-working day.
type Day struct {
	Date  time.Time
	Year  int
	Month int
	DayNo int
	Half  bool
}

// DateKey returns the "2006-01-02" key of the day.
func (d Day) DateKey() string {
	return d.Date.Format("2006-01-02")
}

// ParseCalendar parses holiday calendar JSON into a day list.
func ParseCalendar(data []byte) ([]Day, error) {
	var cal CalendarJSON
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calendar JSON: %w", err)
	}
	if cal.Year < 2000 || cal.Year > 2100 {
		return nil, fmt.Errorf("implausible calendar year %d", cal.Year)
	}

	days := []Day{}

	for _, monthData := range cal.Months {
		if monthData.Month < 1 || monthData.Month > 12 {
			return nil, fmt.Errorf("invalid month %d in calendar", monthData.Month)
		}

		for _, dayStr := range strings.Split(monthData.Days, ",") {
			dayStr = strings.TrimSpace(dayStr)
			half := strings.HasSuffix(dayStr, "*")
			dayStr = strings.TrimSuffix(dayStr, "*")

			if dayStr == "" {
				continue
			}

			dayNo, err := strconv.Atoi(dayStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse day '%s' in month %d: %w",
					dayStr, monthData.Month, err)
			}
			if dayNo < 1 || dayNo > 31 {
				return nil, fmt.Errorf("day %d out of range in month %d", dayNo, monthData.Month)
			}

			days = append(days, Day{
				Date:  time.Date(cal.Year, time.Month(monthData.Month), dayNo, 0, 0, 0, 0, time.UTC),
				Year:  cal.Year,
				Month: monthData.Month,
				DayNo: dayNo,
				Half:  half,
			})
		}
	}

	return days, nil
}

// ParseCalendarFile reads and parses a holiday calendar file.
func ParseCalendarFile(path string) ([]Day, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}
	return ParseCalendar(data)
}

// ForMonth filters a day list down to one month.
func ForMonth(days []Day, year, month int) []Day {
	result := []Day{}
	for _, day := range days {
		if day.Year == year && day.Month == month {
			result = append(result, day)
		}
	}
	return result
}

// IsNonWorking reports whether the given date appears in the day list.
func IsNonWorking(days []Day, date time.Time) bool {
	for _, day := range days {
		if day.Year == date.Year() &&
			day.Month == int(date.Month()) &&
			day.DayNo == date.Day() {
			return true
		}
	}
	return false
}
