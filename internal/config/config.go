package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	DBType          string
	DBHost          string
	DBPort          string
	DBName          string
	DBUser          string
	DBPassword      string
	DBSSLMode       string
	DBMaxIdleConn   int
	DBMaxOpenConn   int
	DBConnMaxLifetime time.Duration

	// eLicensing is the external billing system of record.
	ElicensingBaseURL        string
	ElicensingAuthToken      string
	ElicensingRequestTimeout time.Duration

	// BC Carbon Registry, used only by the earned-credit issuance handoff.
	BCCRBaseURL   string
	BCCRAuthToken string

	// InvoiceFreshnessWindow bounds how long a mirrored invoice is served
	// without re-querying eLicensing.
	InvoiceFreshnessWindow time.Duration

	// Integration queue retry policy.
	IntegrationMaxRetries  int
	IntegrationRetryBase   time.Duration
	IntegrationRetryCap    time.Duration

	HTTPAddr string

	// Scheduler loop tuning. EnabledJobs empty means every job runs.
	SchedulerRunInterval time.Duration
	SchedulerBatchSize   int
	SchedulerLockTTL     time.Duration
	SchedulerEnabledJobs []string

	RedisAddr     string
	RedisPassword string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	Logger LoggerConfig
}

type LoggerConfig struct {
	Level string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "obps-compliance"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "obps"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),

		ElicensingBaseURL:        strings.TrimRight(getenv("ELICENSING_BASE_URL", "http://localhost:9090"), "/"),
		ElicensingAuthToken:      strings.TrimSpace(getenv("ELICENSING_AUTH_TOKEN", "")),
		ElicensingRequestTimeout: getenvDuration("ELICENSING_REQUEST_TIMEOUT", 30*time.Second),

		BCCRBaseURL:   strings.TrimRight(getenv("BCCR_BASE_URL", ""), "/"),
		BCCRAuthToken: strings.TrimSpace(getenv("BCCR_AUTH_TOKEN", "")),

		InvoiceFreshnessWindow: getenvDuration("INVOICE_FRESHNESS_WINDOW", 30*time.Second),

		IntegrationMaxRetries: getenvInt("INTEGRATION_MAX_RETRIES", 5),
		IntegrationRetryBase:  getenvDuration("INTEGRATION_RETRY_BASE", time.Minute),
		IntegrationRetryCap:   getenvDuration("INTEGRATION_RETRY_CAP", 6*time.Hour),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		SchedulerRunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
		SchedulerBatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 50),
		SchedulerLockTTL:     getenvDuration("SCHEDULER_LOCK_TTL", 5*time.Minute),
		SchedulerEnabledJobs: getenvList("SCHEDULER_ENABLED_JOBS"),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@obps.local"),

		Logger: LoggerConfig{Level: getenv("LOG_LEVEL", "info")},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	var list []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
