package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds all configuration for the pipeline
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Remote classifier
	ClassifierBaseURL string
	ClassifierToken   string
	DeviceID          string

	// Scan timeouts; the ambient path uses a shorter bound than the manual
	// path because the user is not actively waiting on ambient detections.
	AmbientScanTimeout time.Duration
	ManualScanTimeout  time.Duration

	// Dedup windows and capacities, one set per call-site
	NotificationDedupWindow   time.Duration
	NotificationDedupCapacity int
	ManualDedupWindow         time.Duration
	ManualDedupCapacity       int

	// Install reconciliation poll
	PollInterval time.Duration

	// Admission filter
	HostPackage        string
	SystemSkipPackages []string
	ExcludeKeywords    []string
	MinBodyLength      int

	// Navigation collaborator (scan screen) endpoint, optional
	NavigationURL string

	// Alert channels
	WebhookURL   string
	AlertEmail   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// Scan record archive (Azure Blob)
	StorageAccount   string
	StorageContainer string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		ClassifierBaseURL: getEnv("CLASSIFIER_BASE_URL", ""),
		ClassifierToken:   getEnv("CLASSIFIER_TOKEN", ""),
		DeviceID:          getEnv("DEVICE_ID", ""),

		AmbientScanTimeout: getDurationEnv("AMBIENT_SCAN_TIMEOUT", 5*time.Second),
		ManualScanTimeout:  getDurationEnv("MANUAL_SCAN_TIMEOUT", 15*time.Second),

		NotificationDedupWindow:   getDurationEnv("NOTIFICATION_DEDUP_WINDOW", 30*time.Second),
		NotificationDedupCapacity: getIntEnv("NOTIFICATION_DEDUP_CAPACITY", 64),
		ManualDedupWindow:         getDurationEnv("MANUAL_DEDUP_WINDOW", 60*time.Second),
		ManualDedupCapacity:       getIntEnv("MANUAL_DEDUP_CAPACITY", 256),

		PollInterval: getDurationEnv("PACKAGE_POLL_INTERVAL", 3*time.Second),

		HostPackage: getEnv("HOST_PACKAGE", "com.phantomsec.phantom"),
		SystemSkipPackages: getSliceEnv("SYSTEM_SKIP_PACKAGES", []string{
			"com.android.systemui",
			"com.samsung.android.sm",
			"com.samsung.android.lool",
			"com.sec.android.app.clockpackage",
			"com.google.android.deskclock",
		}),
		ExcludeKeywords: getSliceEnv("EXCLUDE_KEYWORDS", []string{
			"충전",
			"배터리",
			"알람",
			"타이머",
			"카운트다운",
			"charging",
			"battery",
			"alarm",
			"timer",
			"countdown",
		}),
		MinBodyLength: getIntEnv("MIN_BODY_LENGTH", 10),

		NavigationURL: getEnv("NAVIGATION_URL", ""),

		WebhookURL:   getEnv("ALERT_WEBHOOK_URL", ""),
		AlertEmail:   getEnv("ALERT_EMAIL", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "scan-records"),
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClassifierBaseURL == "" {
		return fmt.Errorf("CLASSIFIER_BASE_URL is required")
	}

	if c.WebhookURL == "" && c.AlertEmail == "" {
		return fmt.Errorf("at least one alert channel must be configured (ALERT_WEBHOOK_URL or ALERT_EMAIL)")
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
		}
	}

	if c.NotificationDedupWindow <= 0 || c.ManualDedupWindow <= 0 {
		return fmt.Errorf("dedup windows must be positive")
	}

	if c.NotificationDedupCapacity <= 0 || c.ManualDedupCapacity <= 0 {
		return fmt.Errorf("dedup capacities must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("PACKAGE_POLL_INTERVAL must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
