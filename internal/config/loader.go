package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/example/hostocars/internal/persistence/sqlite/migration"
	"github.com/example/hostocars/internal/persistence/sqlite/migrations"
	"github.com/example/hostocars/internal/version"
)

// FileEnv names the variable pointing at an optional INI configuration file.
const FileEnv = "HOSTOCARS_CONFIG"

// Config captures the settings of the hostocars database lifecycle.
type Config struct {
	DBLocation     string `env:"HOSTOCARS_DB_LOCATION"`
	DBPath         string `env:"HOSTOCARS_DB_PATH"`
	DBURL          string `env:"HOSTOCARS_DB_URL"`
	ProjectVersion string `env:"HOSTOCARS_PROJECT_VERSION"`
	BackupDir      string `env:"HOSTOCARS_BACKUP_DIR"`
	BackupRetain   int    `env:"HOSTOCARS_BACKUP_RETAIN"`
	LogLevel       string `env:"HOSTOCARS_LOG_LEVEL"`
	LogFormat      string `env:"HOSTOCARS_LOG_FORMAT"`
	OTelEndpoint   string `env:"HOSTOCARS_OTEL_ENDPOINT"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		DBLocation:     "data",
		ProjectVersion: migrations.Latest,
		BackupRetain:   5,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the
// INI file named by HOSTOCARS_CONFIG, and environment variables. A .env file
// in the working directory is loaded into the environment first without
// overriding variables already set.
//
// Derived paths are filled in and every value is validated before returning,
// so a configuration error aborts startup before any connection opens.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, configError(fmt.Sprintf("read %s", path), err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, configError("parse env", err)
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile overlays the values present in an INI file:
//
//	[database]
//	location = data
//	path = data/hostocars.db
//	url =
//	backup_dir = data/backups
//	backup_retain = 5
//
//	[project]
//	version = 1.2.0
//
//	[log]
//	level = info
//	format = json
//
//	[otel]
//	endpoint = http://localhost:4318
func applyFile(cfg *Config, path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	db := file.Section("database")
	cfg.DBLocation = db.Key("location").MustString(cfg.DBLocation)
	cfg.DBPath = db.Key("path").MustString(cfg.DBPath)
	cfg.DBURL = db.Key("url").MustString(cfg.DBURL)
	cfg.BackupDir = db.Key("backup_dir").MustString(cfg.BackupDir)
	if db.HasKey("backup_retain") {
		retain, err := db.Key("backup_retain").Int()
		if err != nil {
			return fmt.Errorf("database.backup_retain: %w", err)
		}
		cfg.BackupRetain = retain
	}
	cfg.ProjectVersion = file.Section("project").Key("version").MustString(cfg.ProjectVersion)
	cfg.LogLevel = file.Section("log").Key("level").MustString(cfg.LogLevel)
	cfg.LogFormat = file.Section("log").Key("format").MustString(cfg.LogFormat)
	cfg.OTelEndpoint = file.Section("otel").Key("endpoint").MustString(cfg.OTelEndpoint)
	return nil
}

// fill derives the database file and backup directory from the location.
func (c *Config) fill() {
	c.DBLocation = strings.TrimSpace(c.DBLocation)
	if strings.TrimSpace(c.DBPath) == "" && c.DBLocation != "" {
		c.DBPath = filepath.Join(c.DBLocation, "hostocars.db")
	}
	if strings.TrimSpace(c.BackupDir) == "" && c.DBLocation != "" {
		c.BackupDir = filepath.Join(c.DBLocation, "backups")
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate reports every missing or malformed value at once.
func (c Config) Validate() error {
	var missing, invalid []string
	if c.DBLocation == "" {
		missing = append(missing, "HOSTOCARS_DB_LOCATION")
	}
	if strings.TrimSpace(c.ProjectVersion) == "" {
		missing = append(missing, "HOSTOCARS_PROJECT_VERSION")
	} else if !version.Valid(c.ProjectVersion) {
		invalid = append(invalid, "HOSTOCARS_PROJECT_VERSION")
	}
	if c.BackupRetain < 1 {
		invalid = append(invalid, "HOSTOCARS_BACKUP_RETAIN")
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		invalid = append(invalid, "HOSTOCARS_LOG_LEVEL")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		invalid = append(invalid, "HOSTOCARS_LOG_FORMAT")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required values: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid values: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return configError("", errors.Join(errs...))
	}
	return nil
}

// Migration returns the engine settings.
func (c Config) Migration() migration.Config {
	return migration.Config{
		Location:       c.DBLocation,
		Path:           c.DBPath,
		URL:            c.DBURL,
		ProjectVersion: c.ProjectVersion,
	}
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func configError(context string, err error) error {
	return &migration.Error{Kind: migration.KindConfiguration, Context: context, Err: err}
}
