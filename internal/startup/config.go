package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"smoothy/internal/ffmpeg"
	"smoothy/internal/logging"
	"smoothy/internal/workers"
)

// DefaultConfigFile is looked up in the working directory when no config
// path is given.
const DefaultConfigFile = "smoothy.toml"

// dotEnvFile is loaded before environment variables are read.
var dotEnvFile = ".env"

// DefaultCORSOrigins are the browser origins allowed when CORS_ORIGIN is unset.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://smoothy.mercerwest.com",
	"https://mercerwest.com",
}

// Config holds all application configuration
type Config struct {
	Port               string
	CORSOrigins        []string
	WorkDir            string
	DataDir            string
	MaxUploadBytes     int64
	MaxDurationSeconds float64
	RequestTimeout     time.Duration
	PassTimeout        time.Duration
	UploadTimeout      time.Duration
	Mode               ffmpeg.Mode
	FFmpegPath         string
	FFprobePath        string
	MaxConcurrentJobs  int
	MetricsEnabled     bool
	MetricsPort        string
	HistoryEnabled     bool
	LogHealthChecks    bool
	LogLevel           string

	// ConfigFile is the TOML file that was applied, if any.
	ConfigFile string
}

// fileConfig mirrors Config for TOML decoding. Pointers distinguish unset
// keys from zero values; durations are Go duration strings.
type fileConfig struct {
	Port               *string  `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	WorkDir            *string  `toml:"work_dir"`
	DataDir            *string  `toml:"data_dir"`
	MaxUploadBytes     *int64   `toml:"max_upload_bytes"`
	MaxDurationSeconds *float64 `toml:"max_duration_seconds"`
	RequestTimeout     *string  `toml:"request_timeout"`
	PassTimeout        *string  `toml:"pass_timeout"`
	UploadTimeout      *string  `toml:"upload_timeout"`
	Mode               *string  `toml:"mode"`
	FFmpegPath         *string  `toml:"ffmpeg_path"`
	FFprobePath        *string  `toml:"ffprobe_path"`
	MaxConcurrentJobs  *int     `toml:"max_concurrent_jobs"`
	MetricsEnabled     *bool    `toml:"metrics_enabled"`
	MetricsPort        *string  `toml:"metrics_port"`
	HistoryEnabled     *bool    `toml:"history_enabled"`
	LogHealthChecks    *bool    `toml:"log_health_checks"`
	LogLevel           *string  `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:               "4000",
		CORSOrigins:        append([]string(nil), DefaultCORSOrigins...),
		WorkDir:            filepath.Join(os.TempDir(), "smoothy"),
		DataDir:            "data",
		MaxUploadBytes:     100 << 20,
		MaxDurationSeconds: 30,
		RequestTimeout:     5 * time.Minute,
		PassTimeout:        3 * time.Minute,
		UploadTimeout:      2 * time.Minute,
		Mode:               ffmpeg.ModeStabilize,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		MaxConcurrentJobs:  workers.DefaultJobSlots(),
		MetricsEnabled:     true,
		MetricsPort:        "9090",
		HistoryEnabled:     true,
		LogHealthChecks:    true,
	}
}

// HistoryPath is the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// MaxDuration returns MaxDurationSeconds as a time.Duration.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds * float64(time.Second))
}

// Load builds the configuration without any startup logging: defaults, then
// the TOML file, then .env, then environment variables. path may be empty.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := cfg.applyFile(resolved); err != nil {
			return nil, err
		}
		cfg.ConfigFile = resolved
	}

	cfg.applyEnv()

	if cfg.LogLevel != "" {
		level, ok := logging.ParseLevel(cfg.LogLevel)
		if !ok {
			logging.Warn("Invalid log level %q, using info", cfg.LogLevel)
		}
		logging.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath returns the file to load. An explicit path must exist;
// otherwise SMOOTHY_CONFIG and then ./smoothy.toml are tried.
func resolveConfigPath(path string) (string, bool, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("SMOOTHY_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigFile
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return "", false, fmt.Errorf("config path %s is a directory", path)
	case err == nil:
		return path, true, nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("stat config: %w", err)
	}
}

func (c *Config) applyFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	if fc.CORSOrigins != nil {
		c.CORSOrigins = cleanList(fc.CORSOrigins)
	}
	setString(&c.WorkDir, fc.WorkDir)
	setString(&c.DataDir, fc.DataDir)
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.MaxDurationSeconds != nil {
		c.MaxDurationSeconds = *fc.MaxDurationSeconds
	}
	for _, d := range []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &c.RequestTimeout},
		{"pass_timeout", fc.PassTimeout, &c.PassTimeout},
		{"upload_timeout", fc.UploadTimeout, &c.UploadTimeout},
	} {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if fc.Mode != nil {
		c.Mode = ffmpeg.Mode(*fc.Mode)
	}
	setString(&c.FFmpegPath, fc.FFmpegPath)
	setString(&c.FFprobePath, fc.FFprobePath)
	if fc.MaxConcurrentJobs != nil {
		c.MaxConcurrentJobs = *fc.MaxConcurrentJobs
	}
	setBool(&c.MetricsEnabled, fc.MetricsEnabled)
	setString(&c.MetricsPort, fc.MetricsPort)
	setBool(&c.HistoryEnabled, fc.HistoryEnabled)
	setBool(&c.LogHealthChecks, fc.LogHealthChecks)
	setString(&c.LogLevel, fc.LogLevel)
	return nil
}

// applyEnv overlays environment variables. Invalid values are logged and
// the current value is kept.
func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	if origins := os.Getenv("CORS_ORIGIN"); origins != "" {
		c.CORSOrigins = cleanList(strings.Split(origins, ","))
	}
	c.WorkDir = getEnv("WORK_DIR", c.WorkDir)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.MaxDurationSeconds = getEnvFloat("MAX_DURATION_SECONDS", c.MaxDurationSeconds)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.PassTimeout = getEnvDuration("PASS_TIMEOUT", c.PassTimeout)
	c.UploadTimeout = getEnvDuration("UPLOAD_TIMEOUT", c.UploadTimeout)
	c.Mode = ffmpeg.Mode(getEnv("MODE", string(c.Mode)))
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.MaxConcurrentJobs = int(getEnvInt64("MAX_CONCURRENT_JOBS", int64(c.MaxConcurrentJobs)))
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.HistoryEnabled = getEnvBool("HISTORY_ENABLED", c.HistoryEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks that the configuration is usable and normalizes the mode.
func (c *Config) Validate() error {
	var errs []error

	if err := validatePort("port", c.Port); err != nil {
		errs = append(errs, err)
	}
	if c.MetricsEnabled {
		if err := validatePort("metrics port", c.MetricsPort); err != nil {
			errs = append(errs, err)
		} else if c.MetricsPort == c.Port {
			errs = append(errs, fmt.Errorf("metrics port must differ from port %s", c.Port))
		}
	}

	mode, err := ffmpeg.ParseMode(string(c.Mode))
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Mode = mode
	}

	if len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin is required"))
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		errs = append(errs, errors.New("work directory is required"))
	}
	if c.HistoryEnabled && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data directory is required when history is enabled"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if math.IsNaN(c.MaxDurationSeconds) || math.IsInf(c.MaxDurationSeconds, 0) || c.MaxDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("max duration must be a positive number of seconds, got %v", c.MaxDurationSeconds))
	}
	for name, d := range map[string]time.Duration{
		"request timeout": c.RequestTimeout,
		"pass timeout":    c.PassTimeout,
		"upload timeout":  c.UploadTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	if c.MaxConcurrentJobs < 1 {
		errs = append(errs, fmt.Errorf("max concurrent jobs must be at least 1, got %d", c.MaxConcurrentJobs))
	}
	if strings.TrimSpace(c.FFmpegPath) == "" || strings.TrimSpace(c.FFprobePath) == "" {
		errs = append(errs, errors.New("ffmpeg and ffprobe paths are required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validatePort(name, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s %q is not a valid TCP port", name, port)
	}
	return nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return parsed
}
