package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration surface: where the server
// listens, where the device database lives, and the optional export/alert
// integrations. Runtime business settings (company name, crate defaults,
// remote sync credentials) live in the entity store instead, because they are
// edited from the application and travel with backups.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Backup  BackupConfig
	Sheets  SheetsConfig
	Alerts  AlertsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StorageConfig locates the local durable store.
type StorageConfig struct {
	DataDir   string
	BackupDir string
}

// BackupConfig holds the snapshot scheduler settings.
type BackupConfig struct {
	CronSchedule string
}

// SheetsConfig contains the optional Google Sheets export credentials.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// AlertsConfig points sync warnings at an optional webhook.
type AlertsConfig struct {
	WebhookURL string
	DeviceName string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Storage: StorageConfig{
			DataDir:   getenvWithDefault("DATA_DIR", "./data"),
			BackupDir: getenvWithDefault("BACKUP_DIR", "./backups"),
		},
		Backup: BackupConfig{
			CronSchedule: getenvWithDefault("BACKUP_CRON_SCHEDULE", "0 21 * * *"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_EXPORT_ID"),
		},
		Alerts: AlertsConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
			DeviceName: getenvWithDefault("DEVICE_NAME", hostnameOrDefault()),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SheetsEnabled reports whether the export sink should be constructed.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Storage.DataDir == "" {
		return errors.New("DATA_DIR must be provided")
	}
	if c.Backup.CronSchedule == "" {
		return errors.New("BACKUP_CRON_SCHEDULE must be provided")
	}

	// Sheets export is optional but must be configured as a pair.
	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_EXPORT_ID must be provided together")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func hostnameOrDefault() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "avicontrol-device"
}
