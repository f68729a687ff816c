package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinKAnonymity is the smallest bucket size any public geospatial aggregate may emit.
const MinKAnonymity = 3

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Firewall     FirewallConfig
	Stats        StatsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom        string
	WebhookURL       string
	LiaisonAlertsURL string
}

// EmergencyContact is a statically configured hotline shown with restricted views.
type EmergencyContact struct {
	Label  string
	Number string
}

// FirewallConfig configures the sensitive-record firewall.
type FirewallConfig struct {
	SensitiveCategory string
	EmergencyContacts []EmergencyContact
}

// StatsConfig configures public aggregate statistics.
type StatsConfig struct {
	KAnonymity                   int
	GeohashPrecision             uint
	CacheTTLSeconds              int
	RefreshCron                  string
	PublicSensitiveTotalApproved bool
}

var defaultEmergencyContacts = "SAPS Emergency=10111;GBV Command Centre=0800 428 428;Childline=116"

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	contacts, err := ParseEmergencyContacts(getEnv("FIREWALL_EMERGENCY_CONTACTS", defaultEmergencyContacts))
	if err != nil {
		return nil, fmt.Errorf("invalid FIREWALL_EMERGENCY_CONTACTS: %w", err)
	}

	kAnon := getEnvAsInt("STATS_K_ANONYMITY", MinKAnonymity)
	if kAnon < MinKAnonymity {
		return nil, fmt.Errorf("STATS_K_ANONYMITY must be at least %d, got %d", MinKAnonymity, kAnon)
	}

	precision := getEnvAsInt("STATS_GEOHASH_PRECISION", 6)
	if precision < 1 || precision > 12 {
		return nil, fmt.Errorf("STATS_GEOHASH_PRECISION must be within 1..12, got %d", precision)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "civic-report-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:        getEnv("NOTIFY_EMAIL_FROM", "noreply@example.org"),
			WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
			LiaisonAlertsURL: getEnv("NOTIFY_LIAISON_ALERTS_URL", ""),
		},
		Firewall: FirewallConfig{
			SensitiveCategory: getEnv("FIREWALL_SENSITIVE_CATEGORY", "GBV/Abuse"),
			EmergencyContacts: contacts,
		},
		Stats: StatsConfig{
			KAnonymity:                   kAnon,
			GeohashPrecision:             uint(precision),
			CacheTTLSeconds:              getEnvAsInt("STATS_CACHE_TTL_SECONDS", 300),
			RefreshCron:                  getEnv("STATS_REFRESH_CRON", "*/5 * * * *"),
			PublicSensitiveTotalApproved: getEnvAsBool("STATS_PUBLIC_SENSITIVE_TOTAL_APPROVED", false),
		},
	}

	return cfg, nil
}

// ParseEmergencyContacts parses "Label=Number;Label=Number".
func ParseEmergencyContacts(raw string) ([]EmergencyContact, error) {
	var contacts []EmergencyContact
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, number, ok := strings.Cut(entry, "=")
		label, number = strings.TrimSpace(label), strings.TrimSpace(number)
		if !ok || label == "" || number == "" {
			return nil, fmt.Errorf("malformed contact %q", entry)
		}
		contacts = append(contacts, EmergencyContact{Label: label, Number: number})
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("at least one emergency contact is required")
	}
	return contacts, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the statistics cache lifetime.
func (s StatsConfig) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
