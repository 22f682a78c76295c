package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-agent/internal/config"
	"attendance-agent/internal/repository"
	"attendance-agent/internal/service"
	"attendance-agent/pkg/apiclient"
	"attendance-agent/pkg/connectivity"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	logrus.Info("Initializing config...")
	cfg := config.Get()
	logrus.Info("Config initialized...")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		logrus.Fatal("Failed to open database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatal("Failed to get database instance:", err)
	}

	_, err = sqlDB.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		logrus.Infof("Warning: Failed to enable foreign keys: %v", err)
	}

	attendanceRepo, err := repository.NewGormAttendanceRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create attendance repository")
	}

	profileRepo, err := repository.NewGormProfileRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create profile repository")
	}

	settingRepo, err := repository.NewGormSettingRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create setting repository")
	}

	queueRepo, err := repository.NewGormSyncQueueRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create sync queue repository")
	}

	summaryRepo, err := repository.NewGormMonthlySummaryRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create monthly summary repository")
	}

	nonWorkingRepo, err := repository.NewGormNonWorkingDayRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create non-working day repository")
	}

	api := apiclient.NewClient(cfg.APIBaseURL, apiclient.NewStaticTokenSource(cfg.APIToken))

	summaryService := service.NewMonthlySummaryService(summaryRepo, attendanceRepo, nonWorkingRepo)

	attendanceService := service.NewAttendanceSyncService(attendanceRepo, queueRepo, api)
	attendanceService.SetMonthlyRefresher(summaryService)

	profileService := service.NewProfileSyncService(profileRepo, queueRepo, api)
	settingsService := service.NewSettingsSyncService(settingRepo, queueRepo)

	if cfg.HolidayCalendarPath != "" {
		if err := summaryService.LoadHolidayCalendar(cfg.HolidayCalendarPath); err != nil {
			logrus.Infof("Warning: Failed to load holiday calendar: %v", err)
		}
	}

	monitor := connectivity.NewMonitor(cfg.ProbeURL, cfg.ProbeInterval)

	coordinator := service.NewCoordinator(
		profileService,
		attendanceService,
		settingsService,
		queueRepo,
		monitor,
		cfg.PullWindowDays,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)

	syncKick := make(chan struct{}, 1)
	unsubscribe := monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		select {
		case syncKick <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	runCycle := func() {
		if _, _, err := coordinator.ProcessSyncQueue(ctx); err != nil {
			logrus.WithError(err).Error("Sync queue drain failed")
		}
		coordinator.SyncAll(ctx, cfg.OwnerEmail, cfg.OwnerUserID)
	}

	go func() {
		runCycle()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCycle()
			case <-syncKick:
				logrus.Info("Connectivity restored, running sync cycle")
				runCycle()
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logrus.Info("Attendance agent started. Press Ctrl+C to stop.")
	<-stop

	cancel()
	monitor.Stop()

	if err := sqlDB.Close(); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}

	logrus.Info("Attendance agent stopped gracefully")
}
