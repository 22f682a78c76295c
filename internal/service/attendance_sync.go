package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/apiclient"
	"attendance-agent/pkg/timeutil"

	"github.com/sirupsen/logrus"
)

// AttendanceAPI is the slice of the server client the attendance sync needs.
type AttendanceAPI interface {
	PunchIn(ctx context.Context, req apiclient.PunchRequest) (*apiclient.PunchResponse, error)
	PunchOut(ctx context.Context, req apiclient.PunchRequest) (*apiclient.PunchResponse, error)
	AttendanceDays(ctx context.Context, userID, startDate, endDate string) ([]apiclient.ServerAttendanceDay, error)
}

// MonthlyRefresher rebuilds a persisted month rollup after records change.
type MonthlyRefresher interface {
	RebuildMonth(userID string, year, month int) error
}

// PunchInput carries the caller-supplied fields of one punch.
type PunchInput struct {
	OrgID     string
	UserID    string
	Timestamp int64 // epoch millis, zero means now
	LatLon    string
	Address   string
	PunchType string
	ModuleID  string

	// BreakTag marks a checkout as a break of the given kind.
	BreakTag string

	TripType         string
	PassengerID      string
	Allowances       []models.AllowanceEntry
	IsCheckoutQrScan bool
	TravelerName     string
	PhoneNumber      string

	ShiftStartTime       string
	ShiftEndTime         string
	MinimumHoursRequired float64
}

type AttendanceSyncService struct {
	attendanceRepo repository.AttendanceRepository
	queueRepo      repository.SyncQueueRepository
	api            AttendanceAPI
	refresher      MonthlyRefresher
	logger         *logrus.Logger
}

func NewAttendanceSyncService(
	attendanceRepo repository.AttendanceRepository,
	queueRepo repository.SyncQueueRepository,
	api AttendanceAPI,
) *AttendanceSyncService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &AttendanceSyncService{
		attendanceRepo: attendanceRepo,
		queueRepo:      queueRepo,
		api:            api,
		logger:         logger,
	}
}

// SetMonthlyRefresher wires the month rollup rebuild that runs after records
// change. Optional; without it punches still work, only rollups go stale.
func (s *AttendanceSyncService) SetMonthlyRefresher(r MonthlyRefresher) {
	s.refresher = r
}

// PunchIn records a check-in locally and queues it for push. Replaying the
// same timestamp returns the already stored record.
func (s *AttendanceSyncService) PunchIn(input PunchInput) (*models.AttendanceRecord, error) {
	ts := input.Timestamp
	if ts == 0 {
		ts = timeutil.NowMillis()
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   input.UserID,
		"timestamp": ts,
	}).Info("User checking in")

	record := s.buildRecord(input, ts, models.DirectionIn)
	record.DateOfPunch = timeutil.DateKey(ts)

	return s.storeAndQueue(record)
}

// PunchOut records a checkout locally and queues it for push. A checkout in
// the early morning that closes the previous calendar day's open check-in is
// attributed to that day via its linked entry date.
func (s *AttendanceSyncService) PunchOut(input PunchInput) (*models.AttendanceRecord, error) {
	ts := input.Timestamp
	if ts == 0 {
		ts = timeutil.NowMillis()
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   input.UserID,
		"timestamp": ts,
		"break_tag": input.BreakTag,
	}).Info("User checking out")

	record := s.buildRecord(input, ts, models.DirectionOut)
	if input.BreakTag != "" {
		tag := input.BreakTag
		record.AttendanceStatus = &tag
	}

	record.DateOfPunch = timeutil.DateKey(ts)
	if entryDay, linked := s.overnightEntryDay(input.UserID, ts); linked {
		record.DateOfPunch = entryDay
		record.LinkedEntryDate = entryDay

		s.logger.WithFields(logrus.Fields{
			"user_id":    input.UserID,
			"entry_date": entryDay,
		}).Info("Checkout linked to previous day's check-in")
	}

	return s.storeAndQueue(record)
}

// overnightEntryDay reports whether a checkout at the given instant closes an
// open check-in from the previous calendar day.
func (s *AttendanceSyncService) overnightEntryDay(userID string, ts int64) (string, bool) {
	if timeutil.MinutesOfDayUTC(ts) >= OvernightCutoffMinutes {
		return "", false
	}

	latest, err := s.attendanceRepo.GetLatestByUserID(userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up latest record for overnight check")
		return "", false
	}
	if latest == nil || !latest.IsCheckIn() || latest.Timestamp >= ts {
		return "", false
	}

	entryDay := latest.DayKey()
	nextDay, err := timeutil.AddDaysToKey(entryDay, 1)
	if err != nil {
		return "", false
	}
	if timeutil.DateKey(ts) != nextDay {
		return "", false
	}

	return entryDay, true
}

func (s *AttendanceSyncService) buildRecord(input PunchInput, ts int64, direction string) *models.AttendanceRecord {
	punchType := input.PunchType
	if punchType == "" {
		punchType = "GEO"
	}

	allowanceData := ""
	if len(input.Allowances) > 0 {
		if data, err := json.Marshal(input.Allowances); err == nil {
			allowanceData = string(data)
		}
	}

	return &models.AttendanceRecord{
		Timestamp:            ts,
		OrgID:                input.OrgID,
		UserID:               input.UserID,
		PunchType:            punchType,
		PunchDirection:       direction,
		LatLon:               input.LatLon,
		Address:              input.Address,
		CreatedOn:            timeutil.NowMillis(),
		IsSynced:             models.SyncedNo,
		ModuleID:             input.ModuleID,
		TripType:             input.TripType,
		PassengerID:          input.PassengerID,
		AllowanceData:        allowanceData,
		IsCheckoutQrScan:     input.IsCheckoutQrScan,
		TravelerName:         input.TravelerName,
		PhoneNumber:          input.PhoneNumber,
		ShiftStartTime:       input.ShiftStartTime,
		ShiftEndTime:         input.ShiftEndTime,
		MinimumHoursRequired: input.MinimumHoursRequired,
	}
}

func (s *AttendanceSyncService) storeAndQueue(record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	stored, created, err := s.attendanceRepo.Insert(record)
	if err != nil {
		s.logger.WithError(err).Error("Failed to store punch record")
		return nil, err
	}

	if !created {
		s.logger.WithField("timestamp", stored.Timestamp).Info("Punch replayed, returning stored record")
		return stored, nil
	}

	data, err := json.Marshal(stored)
	if err != nil {
		data = []byte("{}")
	}

	item := &models.SyncQueueItem{
		Type:      models.QueueTypeAttendance,
		EntityID:  strconv.FormatInt(stored.Timestamp, 10),
		Operation: models.QueueOpCreate,
		Data:      string(data),
		Timestamp: stored.Timestamp,
	}
	if err := s.queueRepo.Enqueue(item); err != nil {
		// The record is durable either way; a full push sweep will pick it up.
		s.logger.WithError(err).Error("Failed to enqueue punch for sync")
	}

	go s.refreshMonthFor(stored)

	return stored, nil
}

func (s *AttendanceSyncService) refreshMonthFor(record *models.AttendanceRecord) {
	if s.refresher == nil {
		return
	}

	day, err := timeutil.ParseDateKey(record.DayKey())
	if err != nil {
		return
	}

	if err := s.refresher.RebuildMonth(record.UserID, day.Year(), int(day.Month())); err != nil {
		s.logger.WithError(err).Error("Failed to refresh monthly summary after punch")
	}
}

// GetUnsynced returns the user's locally stored punches the server has not
// confirmed yet, oldest first.
func (s *AttendanceSyncService) GetUnsynced(userID string) ([]*models.AttendanceRecord, error) {
	return s.attendanceRepo.GetUnsynced(userID)
}

// DaySummaries aggregates all of a user's records into day summaries.
func (s *AttendanceSyncService) DaySummaries(userID string, opts AggregationOptions) ([]*models.AttendanceDay, error) {
	records, err := s.attendanceRepo.GetByUserID(userID, 0)
	if err != nil {
		return nil, err
	}
	return AggregateDays(records, opts), nil
}

// DaySummariesRange aggregates the inclusive day range, materializing empty
// days. The fetch window extends one day past the range end so an overnight
// checkout on the next morning still closes the range's last day.
func (s *AttendanceSyncService) DaySummariesRange(userID, startKey, endKey string, opts AggregationOptions) ([]*models.AttendanceDay, error) {
	fetchEnd, err := timeutil.AddDaysToKey(endKey, 1)
	if err != nil {
		return nil, err
	}

	records, err := s.attendanceRepo.GetByUserAndRange(userID, startKey, fetchEnd)
	if err != nil {
		return nil, err
	}

	return AggregateRange(records, startKey, endKey, opts)
}

// PushOne sends a single unsynced record to the server and marks it synced
// under the server's canonical timestamp. Returns false with the cause when
// the push did not go through.
func (s *AttendanceSyncService) PushOne(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	req := apiclient.PunchRequest{
		Timestamp:        record.Timestamp,
		LatLon:           record.LatLon,
		Address:          record.Address,
		PunchType:        record.PunchType,
		ModuleID:         record.ModuleID,
		TripType:         record.TripType,
		PassengerID:      record.PassengerID,
		AllowanceData:    record.AllowanceData,
		IsCheckoutQrScan: record.IsCheckoutQrScan,
		TravelerName:     record.TravelerName,
		PhoneNumber:      record.PhoneNumber,
	}

	var resp *apiclient.PunchResponse
	var err error
	if record.IsCheckIn() {
		resp, err = s.api.PunchIn(ctx, req)
	} else {
		resp, err = s.api.PunchOut(ctx, req)
	}
	if err != nil {
		s.logger.WithError(err).WithField("timestamp", record.Timestamp).Warn("Punch push failed")
		return false, err
	}
	if !resp.Success {
		err := fmt.Errorf("server rejected punch: %s", resp.Message)
		s.logger.WithError(err).WithField("timestamp", record.Timestamp).Warn("Punch push rejected")
		return false, err
	}

	serverTs := record.Timestamp
	if len(resp.Timestamp) > 0 {
		parsed, perr := timeutil.FlexibleMillisFromJSON(resp.Timestamp)
		if perr != nil {
			s.logger.WithError(perr).Warn("Cannot parse server punch timestamp, keeping local")
		} else if parsed > 0 {
			serverTs = parsed
		}
	}

	if err := s.attendanceRepo.MarkSynced(record.Timestamp, serverTs); err != nil {
		return false, err
	}

	// The queued copy of this punch, if any, is now redundant.
	queueID := models.QueueItemID(models.QueueTypeAttendance, strconv.FormatInt(record.Timestamp, 10), "")
	if err := s.queueRepo.MarkSynced(queueID); err != nil {
		s.logger.WithError(err).Warn("Failed to clear queue entry for pushed punch")
	}

	s.logger.WithFields(logrus.Fields{
		"local_timestamp":  record.Timestamp,
		"server_timestamp": serverTs,
	}).Info("Punch pushed to server")

	return true, nil
}

// PushAllUnsynced pushes every unsynced record, oldest first. One failed
// record does not stop the rest; the counts report how the sweep went.
func (s *AttendanceSyncService) PushAllUnsynced(ctx context.Context, userID string) (pushed, failed int, err error) {
	records, err := s.attendanceRepo.GetUnsynced(userID)
	if err != nil {
		return 0, 0, err
	}

	for _, record := range records {
		ok, pushErr := s.PushOne(ctx, record)
		if ok {
			pushed++
			continue
		}
		failed++
		s.logger.WithError(pushErr).WithField("timestamp", record.Timestamp).Warn("Record left unsynced")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"pushed":  pushed,
		"failed":  failed,
	}).Info("Attendance push sweep finished")

	return pushed, failed, nil
}

// PullFromServer fetches the server's records for the day range and merges
// them into the local store.
func (s *AttendanceSyncService) PullFromServer(ctx context.Context, userID, startKey, endKey string) (added, confirmed int, err error) {
	days, err := s.api.AttendanceDays(ctx, userID, startKey, endKey)
	if err != nil {
		s.logger.WithError(err).Warn("Attendance pull failed")
		return 0, 0, err
	}

	return s.MergeServerDays(userID, days)
}

// MergeServerDays applies the asymmetric merge: server records unknown
// locally are added, server copies of known records only confirm their sync
// flag. Local fields are never overwritten and local-only records are never
// removed. Corrupt wire records are skipped, not fatal.
func (s *AttendanceSyncService) MergeServerDays(userID string, days []apiclient.ServerAttendanceDay) (added, confirmed int, err error) {
	touchedMonths := make(map[[2]int]bool)

	for _, day := range days {
		for _, wire := range day.Records {
			ts, perr := timeutil.FlexibleMillisFromJSON(wire.Timestamp)
			if perr != nil {
				s.logger.WithError(perr).WithField("date", day.DateOfPunch).Warn("Skipping server record with bad timestamp")
				continue
			}

			existing, gerr := s.attendanceRepo.GetByTimestamp(ts)
			if gerr != nil {
				return added, confirmed, gerr
			}

			if existing != nil {
				if !existing.Synced() {
					if merr := s.attendanceRepo.MarkSynced(ts, ts); merr != nil {
						return added, confirmed, merr
					}
					confirmed++
					s.markMonth(touchedMonths, existing.DayKey())
				}
				continue
			}

			record := s.recordFromWire(userID, day.DateOfPunch, ts, wire)
			if _, created, ierr := s.attendanceRepo.Insert(record); ierr != nil {
				s.logger.WithError(ierr).WithField("timestamp", ts).Warn("Skipping server record that failed to store")
				continue
			} else if created {
				added++
				s.markMonth(touchedMonths, record.DayKey())
			}
		}
	}

	s.refreshMonths(userID, touchedMonths)

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"added":     added,
		"confirmed": confirmed,
	}).Info("Server attendance merged")

	return added, confirmed, nil
}

func (s *AttendanceSyncService) recordFromWire(userID, dayKey string, ts int64, wire apiclient.ServerAttendanceRecord) *models.AttendanceRecord {
	owner := wire.UserID
	if owner == "" {
		owner = userID
	}
	date := wire.DateOfPunch
	if date == "" {
		date = dayKey
	}

	return &models.AttendanceRecord{
		Timestamp:            ts,
		OrgID:                wire.OrgID,
		UserID:               owner,
		PunchType:            wire.PunchType,
		PunchDirection:       wire.PunchDirection,
		LatLon:               wire.LatLon,
		Address:              wire.Address,
		CreatedOn:            ts,
		IsSynced:             models.SyncedYes,
		DateOfPunch:          date,
		LinkedEntryDate:      wire.LinkedEntryDate,
		AttendanceStatus:     wire.AttendanceStatus,
		ModuleID:             wire.ModuleID,
		TripType:             wire.TripType,
		PassengerID:          wire.PassengerID,
		AllowanceData:        wire.AllowanceData,
		IsCheckoutQrScan:     wire.IsCheckoutQrScan,
		TravelerName:         wire.TravelerName,
		PhoneNumber:          wire.PhoneNumber,
		ShiftStartTime:       wire.ShiftStartTime,
		ShiftEndTime:         wire.ShiftEndTime,
		MinimumHoursRequired: wire.MinimumHoursRequired,
	}
}

func (s *AttendanceSyncService) markMonth(months map[[2]int]bool, dayKey string) {
	day, err := timeutil.ParseDateKey(dayKey)
	if err != nil {
		return
	}
	months[[2]int{day.Year(), int(day.Month())}] = true
}

func (s *AttendanceSyncService) refreshMonths(userID string, months map[[2]int]bool) {
	if s.refresher == nil {
		return
	}
	for month := range months {
		if err := s.refresher.RebuildMonth(userID, month[0], month[1]); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"year":  month[0],
				"month": month[1],
			}).Error("Failed to refresh monthly summary after merge")
		}
	}
}

// PushQueued drains one attendance queue item. The first return value
// reports whether the item is finished and can leave the queue, either
// because the push succeeded or because there is nothing left to push.
func (s *AttendanceSyncService) PushQueued(ctx context.Context, item *models.SyncQueueItem) (bool, error) {
	ts, err := strconv.ParseInt(item.EntityID, 10, 64)
	if err != nil {
		s.logger.WithField("id", item.ID).Warn("Dropping attendance queue item with bad entity id")
		return true, nil
	}

	record, err := s.attendanceRepo.GetByTimestamp(ts)
	if err != nil {
		return false, err
	}
	if record == nil || record.Synced() {
		// Already pushed by a full sweep or superseded; nothing to do.
		return true, nil
	}

	return s.PushOne(ctx, record)
}
