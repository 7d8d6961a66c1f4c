// Package config loads application configuration from the environment, with
// an optional .env overlay for local development.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/plan"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig controls the optional Postgres store. When DSN is empty the
// application runs on the in-memory store.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	FilePrefix string
}

// AccrualConfig controls the daily profit accrual runner.
type AccrualConfig struct {
	Enabled  bool
	Schedule string
}

// AuthConfig controls bearer-token verification and admin overrides.
type AuthConfig struct {
	JWTSecret    string
	AdminUserIDs []string
}

// Config is the full application configuration.
type Config struct {
	Server             ServerConfig
	Database           DatabaseConfig
	Logging            LoggingConfig
	Accrual            AccrualConfig
	Auth               AuthConfig
	WithdrawFeePercent float64
	PlansFile          string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: envString("SERVER_HOST", "0.0.0.0"),
			Port: envInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:          envString("DATABASE_DRIVER", "postgres"),
			DSN:             envString("DATABASE_DSN", ""),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envInt("DATABASE_CONN_MAX_LIFETIME", 300),
		},
		Logging: LoggingConfig{
			Level:      envString("LOG_LEVEL", "info"),
			Format:     envString("LOG_FORMAT", "text"),
			Output:     envString("LOG_OUTPUT", "stdout"),
			FilePrefix: envString("LOG_FILE_PREFIX", ""),
		},
		Accrual: AccrualConfig{
			Enabled:  envBool("ACCRUAL_ENABLED", true),
			Schedule: envString("ACCRUAL_SCHEDULE", "@every 1h"),
		},
		Auth: AuthConfig{
			JWTSecret:    envString("JWT_SECRET", ""),
			AdminUserIDs: splitCSV(os.Getenv("ADMIN_USER_IDS")),
		},
		WithdrawFeePercent: envFloat("WITHDRAW_FEE_PERCENT", 3),
		PlansFile:          envString("PLANS_FILE", ""),
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT %d", cfg.Server.Port)
	}
	if cfg.WithdrawFeePercent < 0 || cfg.WithdrawFeePercent >= 100 {
		return nil, fmt.Errorf("invalid WITHDRAW_FEE_PERCENT %v", cfg.WithdrawFeePercent)
	}

	return cfg, nil
}

// LoadPlans reads the plan catalog from the configured JSON file, or nil
// when no file is set so callers fall back to the built-in tiers.
func (c *Config) LoadPlans() ([]plan.Plan, error) {
	if c.PlansFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.PlansFile)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var raw []struct {
		ID                 string  `json:"id"`
		Name               string  `json:"name"`
		MinAmount          float64 `json:"min_amount"`
		MaxAmount          float64 `json:"max_amount"`
		DailyProfitPercent float64 `json:"daily_profit_percent"`
		DurationDays       int     `json:"duration_days"`
		TotalReturnPercent float64 `json:"total_return_percent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}

	result := make([]plan.Plan, 0, len(raw))
	for _, entry := range raw {
		result = append(result, plan.Plan{
			ID:                 entry.ID,
			Name:               entry.Name,
			MinAmount:          entry.MinAmount,
			MaxAmount:          entry.MaxAmount,
			DailyProfitPercent: entry.DailyProfitPercent,
			DurationDays:       entry.DurationDays,
			TotalReturnPercent: entry.TotalReturnPercent,
		})
	}
	return result, nil
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
