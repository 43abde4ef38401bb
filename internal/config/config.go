package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all process configuration, populated from the environment.
type Config struct {
	BotToken       string `validate:"required"`
	SuperAdminTGID int64  `validate:"required"`

	DBHost     string `validate:"required"`
	DBPort     int    `validate:"required,min=1,max=65535"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBName     string `validate:"required"`

	RedisAddr     string `validate:"required"`
	RedisPassword string

	FTPEnabled  bool
	FTPHost     string
	FTPPort     string
	FTPUser     string
	FTPPassword string
	FTPDir      string

	MetricsAddr string `validate:"required"`

	RateMinInterval  time.Duration `validate:"required"`
	BanSweepInterval time.Duration `validate:"required"`
}

// Load reads .env when present, parses the environment and validates the
// result. Missing optional values fall back to defaults.
func Load() (*Config, error) {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	superAdmin, err := getEnvInt64("SUPER_ADMIN_TG_ID", 0)
	if err != nil {
		return nil, err
	}
	dbPort, err := getEnvInt("DB_PORT", 3306)
	if err != nil {
		return nil, err
	}
	rateInterval, err := getEnvDuration("RATE_MIN_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := getEnvDuration("BAN_SWEEP_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		SuperAdminTGID: superAdmin,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "quizbot"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "quizbot"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		FTPEnabled:  os.Getenv("FTP_HOST") != "",
		FTPHost:     os.Getenv("FTP_HOST"),
		FTPPort:     getEnv("FTP_PORT", "21"),
		FTPUser:     os.Getenv("FTP_USER"),
		FTPPassword: os.Getenv("FTP_PASSWORD"),
		FTPDir:      getEnv("FTP_DIR", "raw_quizzes"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RateMinInterval:  rateInterval,
		BanSweepInterval: sweepInterval,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
