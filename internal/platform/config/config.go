package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service. Values come from the
// environment, optionally seeded from a .env file so local runs stay simple.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Terminal connectivity.
	TerminalsFile  string        `env:"TERMINALS_FILE" envDefault:"terminales.txt"`
	DeviceTimeout  time.Duration `env:"DEVICE_TIMEOUT" envDefault:"10s"`
	ConnectRetries int           `env:"CONNECT_RETRIES" envDefault:"3"`
	ConnectDelay   time.Duration `env:"CONNECT_DELAY" envDefault:"2s"`
	ClockDriftWarn time.Duration `env:"CLOCK_DRIFT_WARN" envDefault:"60s"`

	// External payroll feed.
	PayrollURL        string        `env:"PAYROLL_URL"`
	PayrollTimeout    time.Duration `env:"PAYROLL_TIMEOUT" envDefault:"15s"`
	PayrollCacheTTL   time.Duration `env:"PAYROLL_CACHE_TTL" envDefault:"2h"`
	PayrollWebhookURL string        `env:"PAYROLL_WEBHOOK_URL"`

	// Attendance-software database.
	AttendanceDSN string `env:"ATTENDANCE_DSN"`

	// Optional Redis snapshot cache for the payroll feed.
	Redis RedisConfig

	// Optional Kafka audit trail.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"zk-tools.audit"`

	// Admin login.
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	AdminUser         string        `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// New loads configuration, reading envPath first when it exists.
func New(envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if c.JWTSigningKey == "" {
		// Development default, override in production.
		c.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return c, nil
}
