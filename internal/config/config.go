package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "BUDGET"

type Config struct {
	// Storage
	Backend    string `mapstructure:"backend"`
	DataFile   string `mapstructure:"data_file"`
	SQLitePath string `mapstructure:"sqlite_path"`
	SeedDir    string `mapstructure:"seed_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// HTTP Server
	Port string `mapstructure:"port"`

	// AMQP change events, disabled when AMQPURL is empty
	AMQPURL        string `mapstructure:"amqp_url"`
	AMQPExchange   string `mapstructure:"amqp_exchange"`
	AMQPRoutingKey string `mapstructure:"amqp_routing_key"`

	// Google Sheets export
	SheetsSpreadsheetID   string `mapstructure:"sheets_spreadsheet_id"`
	SheetsSheetName       string `mapstructure:"sheets_sheet_name"`
	SheetsCredentialsFile string `mapstructure:"sheets_credentials_file"`
	SheetsCredentialsJSON string `mapstructure:"sheets_credentials_json"`
}

var defaults = map[string]any{
	"backend":                 "json",
	"data_file":               "budget_data.json",
	"sqlite_path":             "./data/budget.db",
	"seed_dir":                "data",
	"log_level":               "info",
	"log_format":              "text",
	"port":                    "8081",
	"amqp_url":                "",
	"amqp_exchange":           "budget",
	"amqp_routing_key":        "ledger_events",
	"sheets_spreadsheet_id":   "",
	"sheets_sheet_name":       "Expenses",
	"sheets_credentials_file": "",
	"sheets_credentials_json": "",
}

// Load builds the configuration from defaults, the optional YAML file at
// path and BUDGET_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"json", "memory", "sqlite"}
	switch c.Backend {
	case "json":
		if c.DataFile == "" {
			problems = append(problems, "data file cannot be empty when using json backend")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLitePath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			problems = append(problems, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsCredentialsFile != "" {
		if _, err := os.Stat(c.SheetsCredentialsFile); errors.Is(err, os.ErrNotExist) {
			problems = append(problems, fmt.Sprintf("Google credentials file does not exist: %s", c.SheetsCredentialsFile))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// SheetsConfigured reports whether enough is set to export to Google Sheets.
func (c *Config) SheetsConfigured() error {
	var missing []string
	if c.SheetsSpreadsheetID == "" {
		missing = append(missing, "sheets_spreadsheet_id")
	}
	if c.SheetsSheetName == "" {
		missing = append(missing, "sheets_sheet_name")
	}
	if c.SheetsCredentialsFile == "" && c.SheetsCredentialsJSON == "" {
		missing = append(missing, "sheets_credentials_file or sheets_credentials_json")
	}
	if len(missing) > 0 {
		return fmt.Errorf("google sheets export not configured: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
