package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type AgentConfig struct {
	APIBaseURL   string
	APIToken     string
	DatabasePath string

	OwnerEmail  string
	OwnerUserID string
	OrgID       string

	SyncInterval   time.Duration
	PullWindowDays int

	HolidayCalendarPath string

	ProbeURL      string
	ProbeInterval time.Duration
}

var instance *AgentConfig
var once sync.Once

// Get returns the process-wide agent configuration, loading it from the
// environment (and an optional .env file) on first use.
func Get() *AgentConfig {
	once.Do(func() {
		instance = &AgentConfig{}

		if err := godotenv.Load(); err != nil {
			logrus.Debug("no .env file found, using process environment")
		}

		instance.APIBaseURL = getEnv("ATTENDANCE_API_BASE_URL", "")
		if instance.APIBaseURL == "" {
			logrus.Fatal("could not get attendance API base URL")
		}

		instance.APIToken = getEnv("ATTENDANCE_API_TOKEN", "")
		if instance.APIToken == "" {
			logrus.Fatal("could not get attendance API token")
		}

		instance.DatabasePath = getEnv("DATABASE_PATH", "attendance.db")

		instance.OwnerEmail = getEnv("OWNER_EMAIL", "")
		if instance.OwnerEmail == "" {
			logrus.Fatal("could not get owner email")
		}

		instance.OwnerUserID = getEnv("OWNER_USER_ID", "")
		if instance.OwnerUserID == "" {
			logrus.Fatal("could not get owner user id")
		}

		instance.OrgID = getEnv("ORG_ID", "")

		instance.SyncInterval = getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute)
		instance.PullWindowDays = int(getEnvAsInt("PULL_WINDOW_DAYS", 30))

		instance.HolidayCalendarPath = getEnv("HOLIDAY_CALENDAR_PATH", "")

		instance.ProbeURL = getEnv("CONNECTIVITY_PROBE_URL", instance.APIBaseURL)
		instance.ProbeInterval = getEnvAsDuration("CONNECTIVITY_PROBE_INTERVAL", 30*time.Second)
	})

	return instance
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return int64(val)
	}

	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(name, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}

	return defaultVal
}
