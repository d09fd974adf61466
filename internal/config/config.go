package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const defaultArchiveAfterDays = 90

// Config represents the application configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// LifecycleSchedule is an RRULE describing when the lifecycle sweep
	// runs (e.g. "FREQ=DAILY;BYHOUR=3")
	LifecycleSchedule string `yaml:"lifecycleSchedule,omitempty"`

	// ArchiveAfterDays is how long a completed event stays visible before
	// the lifecycle sweep archives it
	ArchiveAfterDays int `yaml:"archiveAfterDays,omitempty" validate:"omitempty,min=1"`

	MailSender  string   `yaml:"mailSender,omitempty" validate:"omitempty,email"`
	AdminEmails []string `yaml:"adminEmails,omitempty" validate:"dive,email"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from community_events_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	configPath, err := findConfigFile("")
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadWithEnv loads the configuration with an environment suffix,
// e.g. env="staging" looks for "community_events_config.staging.yaml"
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.ArchiveAfterDays == 0 {
		cfg.ArchiveAfterDays = defaultArchiveAfterDays
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.LifecycleSchedule != "" {
		if _, err := rrule.StrToRRule(cfg.LifecycleSchedule); err != nil {
			return fmt.Errorf("invalid rrule in lifecycleSchedule: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "community_events_config.yaml"
	if env != "" {
		configFileName = "community_events_config." + env + ".yaml"
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
