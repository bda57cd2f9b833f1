package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Host         string
	Port         int
	ArtifactPath string
	ReportsDir   string
	Version      string

	LogLevel  string
	LogPretty bool

	RateLimitRPS   float64
	RateLimitBurst int

	BaselineRMSE     float64
	BaselineMAPE     float64
	MonitorThreshold float64
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads an optional env file and then the process environment.
// A missing env file is not an error; a malformed one is.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Host:             getEnv("HOST", "127.0.0.1"),
		Port:             getEnvInt("PORT", 8000),
		ArtifactPath:     getEnv("ARTIFACT_PATH", "./models"),
		ReportsDir:       getEnv("REPORTS_DIR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvBool("LOG_PRETTY", false),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 10),
		BaselineRMSE:     getEnvFloat("MONITOR_BASELINE_RMSE", 147015),
		BaselineMAPE:     getEnvFloat("MONITOR_BASELINE_MAPE", 1.65),
		MonitorThreshold: getEnvFloat("MONITOR_THRESHOLD", 0.15),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.RateLimitRPS < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %v", cfg.RateLimitRPS)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
