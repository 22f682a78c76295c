package service

import (
	"testing"
	"time"

	"attendance-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-14T00:00:00Z
const day14 = int64(1773446400000)

// 2026-03-15T00:00:00Z
const day15 = day14 + 24*3600*1000

func punch(ts int64, direction string) *models.AttendanceRecord {
	return &models.AttendanceRecord{
		Timestamp:      ts,
		UserID:         "user-1",
		PunchDirection: direction,
		CreatedOn:      ts,
		IsSynced:       models.SyncedNo,
	}
}

func breakOut(ts int64, tag string) *models.AttendanceRecord {
	r := punch(ts, models.DirectionOut)
	r.AttendanceStatus = &tag
	return r
}

func testOpts(now time.Time) AggregationOptions {
	return AggregationOptions{
		Now:               now,
		DefaultShiftStart: "09:00",
		DefaultShiftEnd:   "18:00",
	}
}

func TestOvernightCheckoutClosesPreviousDay(t *testing.T) {
	records := []*models.AttendanceRecord{
		punch(day14+18*3600*1000+1800*1000, models.DirectionIn), // 18:30Z on the 14th
		punch(day15+2*3600*1000+1800*1000, models.DirectionOut), // 02:30Z on the 15th
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 1)

	day := days[0]
	assert.Equal(t, "2026-03-14", day.DateOfPunch)
	assert.Equal(t, 8*time.Hour, day.TotalDuration)
	assert.Equal(t, models.StatusPresent, day.AttendanceStatus)
	require.Len(t, day.Records, 2)
	assert.Equal(t, "2026-03-14", day.Records[1].DayKey())
}

func TestCheckoutAfterCutoffStaysOnItsOwnDay(t *testing.T) {
	records := []*models.AttendanceRecord{
		punch(day14+18*3600*1000, models.DirectionIn),
		punch(day15+7*3600*1000, models.DirectionOut), // 07:00Z, past the 06:00 cutoff
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 2)

	assert.Equal(t, "2026-03-15", days[0].DateOfPunch)
	assert.Equal(t, models.StatusPartial, days[0].AttendanceStatus)
	assert.Equal(t, "2026-03-14", days[1].DateOfPunch)
	assert.Equal(t, models.StatusPartial, days[1].AttendanceStatus)
	assert.Equal(t, time.Duration(0), days[1].TotalDuration)
}

func TestAlreadyLinkedCheckoutGroupsWithItsEntryDay(t *testing.T) {
	out := punch(day15+2*3600*1000, models.DirectionOut)
	out.DateOfPunch = "2026-03-14"
	out.LinkedEntryDate = "2026-03-14"

	in := punch(day14+18*3600*1000, models.DirectionIn)
	in.DateOfPunch = "2026-03-14"

	days := AggregateDays([]*models.AttendanceRecord{out, in}, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 1)
	assert.Equal(t, "2026-03-14", days[0].DateOfPunch)
	assert.Equal(t, 8*time.Hour, days[0].TotalDuration)
}

func TestBreakGapsReduceWorkedHours(t *testing.T) {
	records := []*models.AttendanceRecord{
		punch(day14+9*3600*1000, models.DirectionIn),         // 09:00
		breakOut(day14+13*3600*1000, "LUNCH"),                // 13:00
		punch(day14+13*3600*1000+1800*1000, models.DirectionIn), // 13:30
		punch(day14+18*3600*1000, models.DirectionOut),       // 18:00
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 1)

	day := days[0]
	assert.Equal(t, 9*time.Hour, day.TotalDuration)
	assert.Equal(t, 30*time.Minute, day.BreakDuration)
	assert.InDelta(t, 8.5, day.WorkedHours, 0.001)
	assert.Equal(t, models.StatusPresent, day.AttendanceStatus)
	assert.False(t, day.RequiresApproval)
}

func TestShortCompletedDayIsHoursDeficit(t *testing.T) {
	records := []*models.AttendanceRecord{
		punch(day14+9*3600*1000, models.DirectionIn),
		punch(day14+13*3600*1000, models.DirectionOut),
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 1)

	assert.Equal(t, models.StatusHoursDeficit, days[0].AttendanceStatus)
	assert.True(t, days[0].RequiresApproval)
	assert.InDelta(t, 4.0, days[0].WorkedHours, 0.001)
}

func TestRecordMinimumHoursOverrideDefault(t *testing.T) {
	in := punch(day14+9*3600*1000, models.DirectionIn)
	in.MinimumHoursRequired = 4

	records := []*models.AttendanceRecord{
		in,
		punch(day14+13*3600*1000+60*1000, models.DirectionOut),
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 1)
	assert.Equal(t, models.StatusPresent, days[0].AttendanceStatus)
}

func TestDanglingCheckInApprovalDependsOnDay(t *testing.T) {
	past := punch(day14+9*3600*1000, models.DirectionIn)
	today := punch(day14+6*24*3600*1000+5*3600*1000, models.DirectionIn) // the 20th, 05:00Z

	days := AggregateDays(
		[]*models.AttendanceRecord{past, today},
		testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)),
	)
	require.Len(t, days, 2)

	assert.Equal(t, "2026-03-20", days[0].DateOfPunch)
	assert.Equal(t, models.StatusPartial, days[0].AttendanceStatus)
	assert.False(t, days[0].RequiresApproval)

	assert.Equal(t, "2026-03-14", days[1].DateOfPunch)
	assert.Equal(t, models.StatusPartial, days[1].AttendanceStatus)
	assert.True(t, days[1].RequiresApproval)
}

func TestAggregateRangeFillsEmptyDays(t *testing.T) {
	// 07:00Z is 12:30 IST, inside the 09:00-18:00 default window.
	now := time.Date(2026, 3, 20, 7, 0, 0, 0, time.UTC)

	days, err := AggregateRange(nil, "2026-03-18", "2026-03-20", testOpts(now))
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, "2026-03-20", days[0].DateOfPunch)
	assert.Equal(t, models.StatusPartial, days[0].AttendanceStatus)
	assert.Equal(t, "2026-03-19", days[1].DateOfPunch)
	assert.Equal(t, models.StatusAbsent, days[1].AttendanceStatus)
	assert.Equal(t, "2026-03-18", days[2].DateOfPunch)
	assert.Equal(t, models.StatusAbsent, days[2].AttendanceStatus)
}

func TestAggregateRangeEmptyTodayOutsideWindowIsAbsent(t *testing.T) {
	// 17:00Z is 22:30 IST, after the default window has closed.
	now := time.Date(2026, 3, 20, 17, 0, 0, 0, time.UTC)

	days, err := AggregateRange(nil, "2026-03-20", "2026-03-20", testOpts(now))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, models.StatusAbsent, days[0].AttendanceStatus)
}

func TestAggregateRangeSkipsFutureDays(t *testing.T) {
	now := time.Date(2026, 3, 20, 7, 0, 0, 0, time.UTC)

	days, err := AggregateRange(nil, "2026-03-19", "2026-03-22", testOpts(now))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-20", days[0].DateOfPunch)
	assert.Equal(t, "2026-03-19", days[1].DateOfPunch)
}

func TestAggregateRangeRejectsInvertedRange(t *testing.T) {
	_, err := AggregateRange(nil, "2026-03-20", "2026-03-19", testOpts(time.Now()))
	assert.Error(t, err)
}

func TestShiftWindowActive(t *testing.T) {
	// 12:30 IST
	midday := time.Date(2026, 3, 20, 7, 0, 0, 0, time.UTC)
	assert.True(t, ShiftWindowActive(midday, "09:00", "18:00"))

	// 03:30 IST
	lateNight := time.Date(2026, 3, 19, 22, 0, 0, 0, time.UTC)
	assert.False(t, ShiftWindowActive(lateNight, "09:00", "18:00"))

	// Overnight window 21:00-06:00 IST wraps midnight.
	assert.True(t, ShiftWindowActive(lateNight, "21:00", "06:00"))

	// 12:30 IST is outside the overnight window.
	assert.False(t, ShiftWindowActive(midday, "21:00", "06:00"))

	assert.False(t, ShiftWindowActive(midday, "bogus", "18:00"))
}

func TestDaysSortedNewestFirst(t *testing.T) {
	records := []*models.AttendanceRecord{
		punch(day14+9*3600*1000, models.DirectionIn),
		punch(day14+17*3600*1000, models.DirectionOut),
		punch(day15+9*3600*1000, models.DirectionIn),
		punch(day15+17*3600*1000, models.DirectionOut),
	}

	days := AggregateDays(records, testOpts(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)))
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-15", days[0].DateOfPunch)
	assert.Equal(t, "2026-03-14", days[1].DateOfPunch)
}
