/**
 * Configuration for the OCR worker.
 *
 * Loads configuration from environment variables. Scoring weights and
 * thresholds are deliberately tunable: their defaults come from the
 * production system but are not load-bearing for correctness.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + job events)
	RedisURL  string
	QueueName string

	// PostgreSQL configuration
	DatabaseURL string

	// External vision-language oracle (optional). Empty URL disables the tier.
	OracleURL       string
	OracleAPIKey    string
	OracleTimeoutMs int

	// Worker configuration
	WorkerConcurrency   int
	ProcessingTimeoutMs int
	MaxImageBytes       int64

	// Recognition configuration
	DefaultLanguage   string
	MaxImageDimension int

	// Quality scoring tunables
	ConfidenceThreshold float64 // extraction floor, 0-100
	NoiseFloor          float64 // trial-pass mean-confidence floor, 0-100
	MinTextLength       int
	LengthNorm          float64
	ContrastNorm        float64
	ScriptRatioWeight   float64
	MinSampleLength     int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "ocr:jobs"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OracleURL:           getEnvOrDefault("ORACLE_URL", ""),
		OracleAPIKey:        getEnvOrDefault("ORACLE_API_KEY", ""),
		OracleTimeoutMs:     getEnvAsIntOrDefault("ORACLE_TIMEOUT_MS", 30000),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeoutMs: getEnvAsIntOrDefault("PROCESSING_TIMEOUT_MS", 300000), // 5 minutes
		MaxImageBytes:       getEnvAsInt64OrDefault("MAX_IMAGE_BYTES", 52428800),   // 50MB
		DefaultLanguage:     getEnvOrDefault("DEFAULT_LANGUAGE", "kor+eng"),
		MaxImageDimension:   getEnvAsIntOrDefault("MAX_IMAGE_DIMENSION", 2000),
		ConfidenceThreshold: getEnvAsFloatOrDefault("CONFIDENCE_THRESHOLD", 30),
		NoiseFloor:          getEnvAsFloatOrDefault("NOISE_FLOOR", 0),
		MinTextLength:       getEnvAsIntOrDefault("MIN_TEXT_LENGTH", 10),
		LengthNorm:          getEnvAsFloatOrDefault("SCORE_LENGTH_NORM", 100),
		ContrastNorm:        getEnvAsFloatOrDefault("SCORE_CONTRAST_NORM", 80),
		ScriptRatioWeight:   getEnvAsFloatOrDefault("SCORE_SCRIPT_RATIO_WEIGHT", 2.0),
		MinSampleLength:     getEnvAsIntOrDefault("MIN_SAMPLE_LENGTH", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.MaxImageBytes < 1024 || c.MaxImageBytes > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_IMAGE_BYTES must be between 1KB and 1GB, got %d", c.MaxImageBytes)
	}

	if c.MaxImageDimension < 256 || c.MaxImageDimension > 10000 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be between 256 and 10000, got %d", c.MaxImageDimension)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 100, got %v", c.ConfidenceThreshold)
	}

	if c.DefaultLanguage == "" {
		return fmt.Errorf("DEFAULT_LANGUAGE is required")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
