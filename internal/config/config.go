package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Booking  BookingConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig configures the booking confirmation mailer. When Host is empty
// the mailer is disabled and confirmations are only logged.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

type BookingConfig struct {
	// MaxUnitsPerBooking caps the total ticket units in one booking request.
	MaxUnitsPerBooking int
	// CreateRateLimit bounds booking creation attempts per client per minute.
	CreateRateLimit int
}

type GatewayConfig struct {
	// FailurePercent is the simulated charge failure rate, 0..100.
	FailurePercent int
	Latency        time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: strEnv("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	pgPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pgUser := os.Getenv("POSTGRES_USER")
	if pgUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	pgPassword := os.Getenv("POSTGRES_PASSWORD")
	if pgPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	pgDB := os.Getenv("POSTGRES_DB")
	if pgDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     pgUser,
		Password: pgPassword,
		Name:     pgDB,
		Host:     strEnv("POSTGRES_HOST", "localhost"),
		Port:     pgPort,
		SSLMode:  strEnv("POSTGRES_SSLMODE", "disable"),
	}

	redisCfg := RedisConfig{
		Addr:     strEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	smtpCfg := SMTPConfig{
		Host: os.Getenv("SMTP_HOST"),
		Port: smtpPort,
		From: strEnv("SMTP_FROM", "tickets@starbook.local"),
	}

	maxUnits, err := intEnv("BOOKING_MAX_UNITS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	createRate, err := intEnv("BOOKING_CREATE_RATE_LIMIT", 30)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	failPercent, err := intEnv("GATEWAY_FAILURE_PERCENT", 5)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		SMTP:     smtpCfg,
		Booking: BookingConfig{
			MaxUnitsPerBooking: maxUnits,
			CreateRateLimit:    createRate,
		},
		Gateway: GatewayConfig{
			FailurePercent: failPercent,
			Latency:        time.Second,
		},
	}, nil
}

func strEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}
