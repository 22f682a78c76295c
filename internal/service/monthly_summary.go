package service

import (
	"fmt"
	"time"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/holidays"
	"attendance-agent/pkg/timeutil"

	"github.com/sirupsen/logrus"
)

const (
	defaultShiftMinutes = 480
	halfDayMinutes      = 240
)

// MonthlySummaryService materializes per-month rollups from raw punch
// records and the non-working-day calendar. Rollups are local convenience
// data: rebuilt whenever records change and never pushed to the server.
type MonthlySummaryService struct {
	summaryRepo    repository.MonthlySummaryRepository
	attendanceRepo repository.AttendanceRepository
	nonWorkingRepo repository.NonWorkingDayRepository
	logger         *logrus.Logger
}

func NewMonthlySummaryService(
	summaryRepo repository.MonthlySummaryRepository,
	attendanceRepo repository.AttendanceRepository,
	nonWorkingRepo repository.NonWorkingDayRepository,
) *MonthlySummaryService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &MonthlySummaryService{
		summaryRepo:    summaryRepo,
		attendanceRepo: attendanceRepo,
		nonWorkingRepo: nonWorkingRepo,
		logger:         logger,
	}
}

// LoadHolidayCalendar reads a calendar file and replaces that year's
// non-working days. Reloading the same file is idempotent.
func (s *MonthlySummaryService) LoadHolidayCalendar(path string) error {
	days, err := holidays.ParseCalendarFile(path)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Error("Failed to parse holiday calendar")
		return err
	}
	if len(days) == 0 {
		s.logger.WithField("path", path).Warn("Holiday calendar has no days")
		return nil
	}

	rows := make([]models.NonWorkingDay, 0, len(days))
	for _, day := range days {
		rows = append(rows, models.NonWorkingDay{
			Date:      day.DateKey(),
			Year:      day.Year,
			Month:     day.Month,
			Day:       day.DayNo,
			IsHalfDay: day.Half,
		})
	}

	if err := s.nonWorkingRepo.ReplaceYear(days[0].Year, rows); err != nil {
		s.logger.WithError(err).Error("Failed to store holiday calendar")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"path": path,
		"year": days[0].Year,
		"days": len(rows),
	}).Info("Holiday calendar loaded")

	return nil
}

// RebuildMonth recomputes one user-month rollup from raw records.
func (s *MonthlySummaryService) RebuildMonth(userID string, year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	startKey := first.Format(timeutil.DateKeyLayout)
	endKey := last.Format(timeutil.DateKeyLayout)

	fetchEnd, err := timeutil.AddDaysToKey(endKey, 1)
	if err != nil {
		return err
	}
	records, err := s.attendanceRepo.GetByUserAndRange(userID, startKey, fetchEnd)
	if err != nil {
		return err
	}

	days, err := AggregateRange(records, startKey, endKey, AggregationOptions{Now: time.Now().UTC()})
	if err != nil {
		return err
	}

	nonWorking, err := s.nonWorkingRepo.GetByYearMonth(year, month)
	if err != nil {
		return err
	}

	fullOff := make(map[string]bool)
	halfCount := 0
	for _, day := range nonWorking {
		if day.IsHalfDay {
			halfCount++
			continue
		}
		fullOff[day.Date] = true
	}

	summary := &models.MonthlySummary{
		UserID:          userID,
		Year:            year,
		Month:           month,
		ExpectedDays:    last.Day() - len(fullOff),
		ExpectedMinutes: (last.Day()-len(fullOff))*defaultShiftMinutes - halfCount*halfDayMinutes,
	}

	for _, day := range days {
		worked := day.TotalDuration - day.BreakDuration
		if worked > 0 {
			summary.WorkedMinutes += int(worked.Minutes())
			summary.WorkedDays++
		}

		switch day.AttendanceStatus {
		case models.StatusPresent:
			summary.PresentDays++
		case models.StatusHoursDeficit:
			summary.DeficitDays++
		case models.StatusAbsent:
			// A holiday is not an absence.
			if !fullOff[day.DateOfPunch] {
				summary.AbsentDays++
			}
		}
	}

	summary.CalculateStats()

	if err := s.summaryRepo.Upsert(summary); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"year":           year,
		"month":          month,
		"worked_days":    summary.WorkedDays,
		"worked_minutes": summary.WorkedMinutes,
		"present_days":   summary.PresentDays,
	}).Info("Monthly summary rebuilt")

	return nil
}

// GetSummary returns the stored rollup, building it first when missing.
func (s *MonthlySummaryService) GetSummary(userID string, year, month int) (*models.MonthlySummary, error) {
	summary, err := s.summaryRepo.GetByUserAndMonth(userID, year, month)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		return summary, nil
	}

	if err := s.RebuildMonth(userID, year, month); err != nil {
		return nil, err
	}
	return s.summaryRepo.GetByUserAndMonth(userID, year, month)
}

// RecentSummaries returns the user's latest rollups, newest month first.
func (s *MonthlySummaryService) RecentSummaries(userID string, limit int) ([]*models.MonthlySummary, error) {
	return s.summaryRepo.GetByUserID(userID, limit)
}
