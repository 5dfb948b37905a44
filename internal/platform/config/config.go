package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// APIVersion is reported by /version and stamped on certificates.
const APIVersion = "1.0.0"

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	LogFormat   string

	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Thresholds ThresholdsConfig

	AuditBufferSize int
}

// DatabaseConfig selects the result store. An empty URL keeps every store in
// memory, which is what local development and unit tests use.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the threshold snapshot cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SnapshotTTL  time.Duration
}

// KafkaConfig configures the audit event sink. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	ClientID   string
	Partitions int32
}

// AuthConfig holds token signing and bootstrap admin settings.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string

	// Login lockout: LoginMaxFailures failures within LoginFailureWindow
	// lock the username and client address for LoginLockDuration.
	LoginMaxFailures   int
	LoginFailureWindow time.Duration
	LoginLockDuration  time.Duration
}

// ThresholdsConfig controls where the initial regulatory limits come from and
// how often other instances' updates are picked up.
type ThresholdsConfig struct {
	SeedFile        string
	RefreshInterval time.Duration
}

// IsDevelopment reports whether we run outside production.
func (s Server) IsDevelopment() bool {
	return s.Environment != "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, err
	}

	cfg := Server{
		Addr:        getEnv("EMISSIONS_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", ""),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SnapshotTTL:  getEnvDuration("REDIS_SNAPSHOT_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "emissions.audit"),
			ClientID:   getEnv("KAFKA_CLIENT_ID", "emissions"),
			Partitions: int32(getEnvInt("KAFKA_AUDIT_PARTITIONS", 3)),
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:        getEnv("JWT_ISSUER", "emissions"),
			TokenTTL:      getEnvDuration("JWT_TTL", 8*time.Hour),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),

			LoginMaxFailures:   getEnvInt("LOGIN_MAX_FAILURES", 5),
			LoginFailureWindow: getEnvDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),
			LoginLockDuration:  getEnvDuration("LOGIN_LOCK_DURATION", 15*time.Minute),
		},
		Thresholds: ThresholdsConfig{
			SeedFile:        os.Getenv("THRESHOLDS_FILE"),
			RefreshInterval: getEnvDuration("THRESHOLDS_REFRESH_INTERVAL", 30*time.Second),
		},
		AuditBufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 1024),
	}

	if cfg.Auth.JWTSigningKey == "" {
		if !cfg.IsDevelopment() {
			return Server{}, errors.New("JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - should be overridden in production
		cfg.Auth.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if cfg.Auth.AdminPassword == "" && cfg.IsDevelopment() {
		cfg.Auth.AdminPassword = "admin"
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
