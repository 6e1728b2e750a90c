package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"goelda/domain/dilution"
	"goelda/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// AnalysisConfig holds the engine defaults applied to every run
type AnalysisConfig struct {
	ConfidenceLevel float64 `validate:"gt=0,lt=1"`
	BiasReduced     bool
	IntervalMethod  string  `validate:"oneof=profile wald"`
	MaxIterations   int     `validate:"min=1"`
	Tolerance       float64 `validate:"gt=0"`
	Workers         int     `validate:"min=0"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// DatabaseConfig holds the optional result store connection. An empty URL
// keeps results in memory.
type DatabaseConfig struct {
	URL string `validate:"omitempty,url"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	analysis, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}

	config := &Config{
		Analysis: *analysis,
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	defaults := dilution.DefaultOptions()
	method, err := dilution.ParseIntervalMethod(getEnvOrDefault("ELDA_INTERVAL_METHOD", string(defaults.IntervalMethod)))
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	cfg := &AnalysisConfig{IntervalMethod: string(method)}

	if cfg.ConfidenceLevel, err = getEnvFloatOrDefault("ELDA_CONFIDENCE_LEVEL", defaults.ConfidenceLevel); err != nil {
		return nil, err
	}
	if cfg.BiasReduced, err = getEnvBoolOrDefault("ELDA_BIAS_REDUCED", defaults.BiasReduced); err != nil {
		return nil, err
	}
	if cfg.MaxIterations, err = getEnvIntOrDefault("ELDA_MAX_ITERATIONS", defaults.MaxIterations); err != nil {
		return nil, err
	}
	if cfg.Tolerance, err = getEnvFloatOrDefault("ELDA_TOLERANCE", defaults.Tolerance); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvIntOrDefault("ELDA_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Options converts the analysis settings into engine options.
func (c AnalysisConfig) Options() dilution.Options {
	method, err := dilution.ParseIntervalMethod(c.IntervalMethod)
	if err != nil {
		method = dilution.IntervalProfile
	}
	return dilution.Options{
		ConfidenceLevel: c.ConfidenceLevel,
		BiasReduced:     c.BiasReduced,
		IntervalMethod:  method,
		MaxIterations:   c.MaxIterations,
		Tolerance:       c.Tolerance,
		Workers:         c.Workers,
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an integer", key, value))
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a number", key, value))
	}
	return floatValue, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a boolean", key, value))
	}
	return boolValue, nil
}
