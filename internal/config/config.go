package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	BaseURL      string
	HTTPTimeout  time.Duration
	PollInterval time.Duration
	LogHTTP      bool

	CredentialStore string
	DatabaseURL     string
	CredentialDB    string // overrides the database named in DatabaseURL
	RedisURL        string
	RedisKeyPrefix  string

	Account    string
	Password   string
	DeviceName string
	DeviceUID  string

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	HTTPAddr     string
	MetricsAddr  string
	ScreenWidth  int
	ScreenHeight int
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.BaseURL = getenvDefault("FIRSTVIEW_BASE_URL", "https://firstviewbackend.com/api/")
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid FIRSTVIEW_BASE_URL: %q", cfg.BaseURL)
	}

	// HTTP timeout (seconds)
	if v := os.Getenv("HTTP_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SEC: %q", v)
		}
		cfg.HTTPTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.HTTPTimeout = 15 * time.Second
	}

	// Poll interval
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL_MS: %q", v)
		}
		cfg.PollInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.PollInterval = 10 * time.Second
	}

	cfg.LogHTTP = getenvBool("LOG_HTTP")
	cfg.LogNATSSubjects = getenvBool("LOG_NATS_SUBJECTS")

	cfg.CredentialStore = strings.ToLower(strings.TrimSpace(getenvDefault("CREDENTIAL_STORE", StoreMemory)))
	switch cfg.CredentialStore {
	case StoreMemory:
	case StorePostgres:
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
		cfg.CredentialDB = strings.TrimSpace(os.Getenv("CREDENTIAL_DB"))
	case StoreRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL must be set when CREDENTIAL_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("invalid CREDENTIAL_STORE: %q", cfg.CredentialStore)
	}
	cfg.RedisKeyPrefix = getenvDefault("REDIS_KEY_PREFIX", "firstview:")

	cfg.Account = strings.TrimSpace(os.Getenv("FIRSTVIEW_ACCOUNT"))
	cfg.Password = os.Getenv("FIRSTVIEW_PASSWORD")
	if (cfg.Account == "") != (cfg.Password == "") {
		return nil, errors.New("FIRSTVIEW_ACCOUNT and FIRSTVIEW_PASSWORD must be set together")
	}
	cfg.DeviceName = getenvDefault("DEVICE_NAME", "android")
	cfg.DeviceUID = os.Getenv("DEVICE_UID")

	// Empty NATS_URL disables publishing.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "firstview")

	// Listen addresses. Empty METRICS_ADDR disables the dedicated metrics server.
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	var err error
	if cfg.ScreenWidth, err = getenvPositiveInt("SCREEN_WIDTH_PX", 390); err != nil {
		return nil, err
	}
	if cfg.ScreenHeight, err = getenvPositiveInt("SCREEN_HEIGHT_PX", 844); err != nil {
		return nil, err
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set when CREDENTIAL_STORE=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvBool(k string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvPositiveInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
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
