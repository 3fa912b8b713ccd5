package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

const defaultRetries = 10

// Config holds all service settings, populated from environment variables.
type Config struct {
	InfluxAddr     string
	InfluxDatabase string
	InfluxUsername string
	InfluxPassword string
	InfluxTimeout  time.Duration

	// Location is the market's zone; Today/Tomorrow and refined timestamps
	// are resolved in it.
	TimeZone string
	Location *time.Location

	RefineCron      string
	RefineDay       domain.Day
	Retries         int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	RunOnStart      bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional mirror sinks. Empty values disable them.
	KafkaBrokers []string
	KafkaTopic   string
	SQLitePath   string
}

// Load reads configuration from the environment, applying defaults where unset.
// A .env file in the working directory is loaded first without overriding
// variables that are already set, and CONFIG_PATH may name a YAML file whose
// keys are the same variable names. Real environment variables always win.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	src, err := newSource(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	influxTimeout, err := src.duration("INFLUXDB_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := src.duration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	retryBackoff, err := src.duration("RETRY_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}
	retryMaxBackoff, err := src.duration("RETRY_MAX_BACKOFF", "5m")
	if err != nil {
		return nil, err
	}

	tz := src.get("TIME_ZONE", "Europe/Oslo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", tz, err)
	}

	refineCron, err := refineSchedule(src)
	if err != nil {
		return nil, err
	}

	day, err := domain.ParseDay(src.get("REFINE_DAY", "today"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFINE_DAY: %w", err)
	}

	cfg := &Config{
		InfluxAddr:     src.get("INFLUXDB_ADDR", ""),
		InfluxDatabase: src.get("INFLUXDB_DB_NAME", ""),
		InfluxUsername: src.get("INFLUXDB_USERNAME", ""),
		InfluxPassword: src.get("INFLUXDB_PASSWORD", ""),
		InfluxTimeout:  influxTimeout,

		TimeZone: tz,
		Location: loc,

		RefineCron:      refineCron,
		RefineDay:       day,
		Retries:         parseRetries(src.get("RETRIES", "")),
		RetryBackoff:    retryBackoff,
		RetryMaxBackoff: retryMaxBackoff,
		RunOnStart:      src.get("RUN_ON_START", "false") == "true",

		HTTPAddr:        src.get("HTTP_ADDR", ":8080"),
		LogLevel:        src.get("LOG_LEVEL", "info"),
		LogFormat:       src.get("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: parseBrokers(src.get("KAFKA_BROKERS", "")),
		KafkaTopic:   src.get("KAFKA_TOPIC", "refined-prices"),
		SQLitePath:   src.get("SQLITE_PATH", ""),
	}

	if cfg.InfluxAddr == "" {
		return nil, errors.New("INFLUXDB_ADDR is required")
	}
	if cfg.InfluxDatabase == "" {
		return nil, errors.New("INFLUXDB_DB_NAME is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.RetryMaxBackoff < cfg.RetryBackoff {
		return nil, errors.New("RETRY_MAX_BACKOFF must not be below RETRY_BACKOFF")
	}

	return cfg, nil
}

// refineSchedule returns REFINE_CRON, or a daily six-field spec at the
// UPDATE_TIME hour.
func refineSchedule(src source) (string, error) {
	if spec := src.get("REFINE_CRON", ""); spec != "" {
		return spec, nil
	}
	s := src.get("UPDATE_TIME", "0")
	hour, err := strconv.Atoi(s)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid UPDATE_TIME %q: want an hour 0-23", s)
	}
	return fmt.Sprintf("0 0 %d * * *", hour), nil
}

// parseRetries falls back to the default when RETRIES is unset or unparsable.
func parseRetries(s string) int {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultRetries
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// source resolves a variable from the environment, then the optional YAML file.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read CONFIG_PATH: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("parse CONFIG_PATH: %w", err)
	}
	for k, v := range raw {
		src.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s source) get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return def
}

func (s source) duration(key, def string) (time.Duration, error) {
	v := s.get(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}
