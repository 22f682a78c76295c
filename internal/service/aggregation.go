package service

import (
	"fmt"
	"sort"
	"time"

	"attendance-agent/internal/models"
	"attendance-agent/pkg/timeutil"
)

// OvernightCutoffMinutes bounds how late (UTC time of day) a checkout may
// land on the next calendar day and still close the previous day's shift.
const OvernightCutoffMinutes = 6 * 60

// AggregationOptions carries the ambient inputs of a day aggregation pass.
// The shift defaults apply to days whose records carry no shift metadata and
// to today's empty-day status.
type AggregationOptions struct {
	Now                 time.Time
	DefaultShiftStart   string
	DefaultShiftEnd     string
	DefaultMinimumHours float64
}

// AggregateDays folds raw punch records into per-day summaries, newest day
// first. Records may arrive in any order; each day's records come out sorted
// by punch time. An unmatched evening check-in adopts the next calendar
// day's early-morning checkout before durations are computed.
func AggregateDays(records []*models.AttendanceRecord, opts AggregationOptions) []*models.AttendanceDay {
	groups, keys := groupRecords(records)
	linkOvernightCheckouts(groups, keys)

	days := make([]*models.AttendanceDay, 0, len(keys))
	for _, key := range keys {
		if len(groups[key]) == 0 {
			continue
		}
		days = append(days, buildDay(key, groups[key], opts))
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].DateOfPunch > days[j].DateOfPunch
	})

	return days
}

// AggregateRange materializes every day of the inclusive [startKey, endKey]
// range. Days without records become ABSENT, except today while the shift
// window is still running, which stays PARTIAL. Future days are never
// fabricated.
func AggregateRange(records []*models.AttendanceRecord, startKey, endKey string, opts AggregationOptions) ([]*models.AttendanceDay, error) {
	start, err := timeutil.ParseDateKey(startKey)
	if err != nil {
		return nil, err
	}
	end, err := timeutil.ParseDateKey(endKey)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range %s..%s", startKey, endKey)
	}

	byKey := make(map[string]*models.AttendanceDay)
	for _, day := range AggregateDays(records, opts) {
		byKey[day.DateOfPunch] = day
	}

	todayKey := opts.Now.UTC().Format(timeutil.DateKeyLayout)

	var days []*models.AttendanceDay
	for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
		key := t.Format(timeutil.DateKeyLayout)

		if day, ok := byKey[key]; ok {
			days = append(days, day)
			continue
		}
		if key > todayKey {
			continue
		}

		day := &models.AttendanceDay{
			DateOfPunch:      key,
			AttendanceStatus: models.StatusAbsent,
		}
		if key == todayKey && ShiftWindowActive(opts.Now, opts.DefaultShiftStart, opts.DefaultShiftEnd) {
			day.AttendanceStatus = models.StatusPartial
		}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].DateOfPunch > days[j].DateOfPunch
	})

	return days, nil
}

// ShiftWindowActive reports whether the instant falls inside the IST shift
// window. A window whose end clock precedes its start clock wraps past
// midnight.
func ShiftWindowActive(now time.Time, startClock, endClock string) bool {
	start, err := timeutil.ParseClockMinutes(startClock)
	if err != nil {
		return false
	}
	end, err := timeutil.ParseClockMinutes(endClock)
	if err != nil {
		return false
	}

	minutes := timeutil.ISTMinutesOfDay(now)
	if start <= end {
		return minutes >= start && minutes <= end
	}
	return minutes >= start || minutes <= end
}

func groupRecords(records []*models.AttendanceRecord) (map[string][]*models.AttendanceRecord, []string) {
	sorted := make([]*models.AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	groups := make(map[string][]*models.AttendanceRecord)
	var keys []string
	for _, record := range sorted {
		key := record.DayKey()
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	sort.Strings(keys)

	return groups, keys
}

// linkOvernightCheckouts moves an early-morning OUT to the previous calendar
// day when that day ends with an unmatched IN. The moved record is a copy
// with LinkedEntryDate stamped, so callers' records stay untouched.
func linkOvernightCheckouts(groups map[string][]*models.AttendanceRecord, keys []string) {
	for _, key := range keys {
		recs := groups[key]
		if len(recs) == 0 {
			continue
		}

		last := recs[len(recs)-1]
		if !last.IsCheckIn() {
			continue
		}

		nextKey, err := timeutil.AddDaysToKey(key, 1)
		if err != nil {
			continue
		}
		nextRecs := groups[nextKey]
		if len(nextRecs) == 0 {
			continue
		}

		candidate := nextRecs[0]
		if !candidate.IsCheckOut() || candidate.Timestamp <= last.Timestamp {
			continue
		}
		if timeutil.MinutesOfDayUTC(candidate.Timestamp) >= OvernightCutoffMinutes {
			continue
		}

		linked := *candidate
		linked.LinkedEntryDate = key
		groups[key] = append(recs, &linked)
		groups[nextKey] = nextRecs[1:]
	}
}

func buildDay(key string, recs []*models.AttendanceRecord, opts AggregationOptions) *models.AttendanceDay {
	day := &models.AttendanceDay{
		DateOfPunch: key,
		Records:     recs,
	}

	var firstIn, lastOut *models.AttendanceRecord
	for _, r := range recs {
		if r.IsCheckIn() && firstIn == nil {
			firstIn = r
		}
		if r.IsCheckOut() {
			lastOut = r
		}
	}

	if firstIn != nil && lastOut != nil && lastOut.Timestamp > firstIn.Timestamp {
		day.TotalDuration = time.Duration(lastOut.Timestamp-firstIn.Timestamp) * time.Millisecond
	}

	// A break-tagged checkout pauses the day until the next check-in.
	for i, r := range recs {
		if !r.IsCheckOut() || !r.IsBreak() {
			continue
		}
		for j := i + 1; j < len(recs); j++ {
			if recs[j].IsCheckIn() {
				day.BreakDuration += time.Duration(recs[j].Timestamp-r.Timestamp) * time.Millisecond
				break
			}
		}
	}

	worked := day.TotalDuration - day.BreakDuration
	if worked < 0 {
		worked = 0
	}
	day.WorkedHours = worked.Hours()

	minHours := models.DefaultMinimumHours
	if opts.DefaultMinimumHours > 0 {
		minHours = opts.DefaultMinimumHours
	}
	if in := day.FirstCheckIn(); in != nil && in.MinimumHoursRequired > 0 {
		minHours = in.MinimumHoursRequired
	}

	ins, outs := day.PunchCounts()
	switch {
	case ins == 0 && outs == 0:
		day.AttendanceStatus = models.StatusAbsent
	case ins != outs:
		day.AttendanceStatus = models.StatusPartial
	case day.WorkedHours >= minHours:
		day.AttendanceStatus = models.StatusPresent
	default:
		day.AttendanceStatus = models.StatusHoursDeficit
	}

	todayKey := opts.Now.UTC().Format(timeutil.DateKeyLayout)
	switch day.AttendanceStatus {
	case models.StatusHoursDeficit:
		day.RequiresApproval = true
	case models.StatusPartial:
		day.RequiresApproval = key < todayKey
	}

	return day
}
