package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL      string `yaml:"database_url"`
	SnapshotDatabase string `yaml:"snapshot_database"`
	SnapshotSchema   string `yaml:"snapshot_schema" validate:"required"`
	SnapshotPrefix   string `yaml:"snapshot_prefix" validate:"required,lowercase,dataset_prefix"`
	UTCOffsetHours   int    `yaml:"snapshot_utc_offset_hours" validate:"gte=-12,lte=14"`

	VehicleCapacity int `yaml:"vehicle_capacity" validate:"gt=0"`
	RecordLimit     int `yaml:"record_limit" validate:"gte=0"`
	ResultLimit     int `yaml:"result_limit" validate:"gte=0"`
	SearchLimit     int `yaml:"search_limit" validate:"gt=0"`
	InlineMaxBytes  int `yaml:"inline_max_bytes" validate:"gt=0"`

	StagingBackend      string `yaml:"staging_backend" validate:"oneof=file minio"`
	StagingDir          string `yaml:"staging_dir" validate:"required_if=StagingBackend file"`
	StagingPath         string `yaml:"staging_path" validate:"required"`
	StagingMaxReadBytes int64  `yaml:"staging_max_read_bytes" validate:"gt=0"`

	MinIOEndpoint  string `yaml:"minio_endpoint" validate:"required_if=StagingBackend minio"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	NATSURL    string `yaml:"nats_url"`
	JobSubject string `yaml:"job_subject" validate:"required"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"gte=0"`
	RunStateTTL   time.Duration `yaml:"run_state_ttl" validate:"gt=0"`

	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	RunTimeout   time.Duration `yaml:"run_timeout" validate:"gte=0"`

	GTFSDir     string `yaml:"gtfs_dir"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	SimWorkers  int    `yaml:"sim_workers" validate:"gte=0"`

	// Location is the fixed zone of snapshot version timestamps.
	Location *time.Location `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		SnapshotSchema:      "public",
		SnapshotPrefix:      "lotacao_onibus_teresina",
		UTCOffsetHours:      -3,
		VehicleCapacity:     40,
		RecordLimit:         800,
		ResultLimit:         10,
		SearchLimit:         300,
		InlineMaxBytes:      10000,
		StagingBackend:      "file",
		StagingDir:          "/tmp/gtfs-occupancy",
		StagingPath:         "tmp/dados_gtfs.json",
		StagingMaxReadBytes: 1000000,
		MinIOBucket:         "gtfs-occupancy",
		NATSURL:             "nats://127.0.0.1:4222",
		JobSubject:          "occupancy.jobs.run",
		RedisAddr:           "127.0.0.1:6379",
		RunStateTTL:         24 * time.Hour,
		PollInterval:        2 * time.Second,
		RunTimeout:          30 * time.Minute,
		GTFSDir:             ".",
		HTTPAddr:            ":8080",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and the environment, in that order of precedence.
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := newValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Location = time.FixedZone(fmt.Sprintf("UTC%+d", cfg.UTCOffsetHours), cfg.UTCOffsetHours*60*60)
	return cfg, nil
}

// Snapshot names become unquoted-style table names: lowercase letters,
// digits and underscores, starting with a letter.
var datasetPrefixPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dataset_prefix", func(fl validator.FieldLevel) bool {
		return datasetPrefixPattern.MatchString(fl.Field().String())
	})
	return v
}

func applyEnv(cfg *Config) error {
	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		cfg.DatabaseURL = dsn
	} else if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromPGVars()
	}

	setString(&cfg.SnapshotDatabase, "SNAPSHOT_DATABASE")
	setString(&cfg.SnapshotSchema, "SNAPSHOT_SCHEMA")
	setString(&cfg.SnapshotPrefix, "SNAPSHOT_PREFIX")
	setString(&cfg.StagingBackend, "STAGING_BACKEND")
	setString(&cfg.StagingDir, "STAGING_DIR")
	setString(&cfg.StagingPath, "STAGING_PATH")
	setString(&cfg.MinIOEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinIOAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinIOSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinIOBucket, "MINIO_BUCKET")
	setString(&cfg.NATSURL, "NATS_URL")
	setString(&cfg.JobSubject, "JOB_SUBJECT")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.GTFSDir, "GTFS_DIR")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	cfg.StagingBackend = strings.ToLower(strings.TrimSpace(cfg.StagingBackend))
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.MinIOUseSSL = parseBool(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SNAPSHOT_UTC_OFFSET_HOURS", &cfg.UTCOffsetHours},
		{"VEHICLE_CAPACITY", &cfg.VehicleCapacity},
		{"RECORD_LIMIT", &cfg.RecordLimit},
		{"RESULT_LIMIT", &cfg.ResultLimit},
		{"SEARCH_LIMIT", &cfg.SearchLimit},
		{"INLINE_MAX_BYTES", &cfg.InlineMaxBytes},
		{"REDIS_DB", &cfg.RedisDB},
		{"SIM_WORKERS", &cfg.SimWorkers},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}
	if v := os.Getenv("STAGING_MAX_READ_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STAGING_MAX_READ_BYTES: %q", v)
		}
		cfg.StagingMaxReadBytes = n
	}

	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid POLL_INTERVAL_MS: %q", v)
		}
		cfg.PollInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("RUN_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return fmt.Errorf("invalid RUN_TIMEOUT_SEC: %q", v)
		}
		cfg.RunTimeout = time.Duration(sec) * time.Second
	}
	if v := os.Getenv("RUN_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RUN_STATE_TTL: %q", v)
		}
		cfg.RunStateTTL = d
	}
	return nil
}

// dsnFromPGVars builds a DSN from PG* variables. Without PGDATABASE there is
// nothing to connect to and the DSN stays empty.
func dsnFromPGVars() string {
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

// RequireDatabase reports an error when no snapshot database is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("PGDATABASE or DATABASE_URL must be set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
