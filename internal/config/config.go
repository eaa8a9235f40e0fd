// Package config loads the process configuration from environment
// variables, with .env support provided by the binaries via godotenv.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables refresh hints)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reporting
	ReportingCurrency string

	// Rollup worker
	RollupInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fincore.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fincore"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "rollup_requests"),

		ReportingCurrency: getEnv("REPORTING_CURRENCY", "EUR"),

		RollupInterval: getEnvDuration("ROLLUP_INTERVAL", 15*time.Minute),
	}
}

// Validate checks the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL %q", c.AMQPURL))
		}
		if strings.TrimSpace(c.AMQPExchange) == "" {
			errs = append(errs, "AMQP exchange cannot be empty when AMQP is enabled")
		}
		if strings.TrimSpace(c.AMQPQueue) == "" {
			errs = append(errs, "AMQP queue cannot be empty when AMQP is enabled")
		}
	}

	if money.GetCurrency(c.ReportingCurrency) == nil {
		errs = append(errs, fmt.Sprintf("unknown reporting currency %q", c.ReportingCurrency))
	}

	if c.RollupInterval < time.Second {
		errs = append(errs, fmt.Sprintf("rollup interval %s is too short", c.RollupInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
