// Package config loads server settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the resolved server configuration.
type Config struct {
	Port           string `validate:"required,numeric"`
	Platform       string `validate:"required"`
	AdvertiserID   string `validate:"required"`
	SchemaPath     string
	TemplatesPath  string
	LegacyKeys     []string
	StoreBackend   string   `validate:"oneof=memory sqlite redis"`
	DatabaseURL    string   `validate:"required_if=StoreBackend sqlite"`
	RedisURL       string   `validate:"required_if=StoreBackend redis"`
	KafkaBrokers   []string `validate:"required_with=KafkaTopic"`
	KafkaTopic     string
	ValidationMode string  `validate:"oneof=shallow deep"`
	RateLimitRPS   float64 `validate:"gte=0"`
	LogLevel       string  `validate:"oneof=trace debug info warn warning error"`
	LogFormat      string  `validate:"oneof=text json"`
}

// KafkaEnabled reports whether batch events are forwarded to Kafka.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 && c.KafkaTopic != "" }

// Load reads envFile (when it exists) and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:           get("PORT", "8080"),
		Platform:       get("PLATFORM", "meta"),
		AdvertiserID:   get("ADVERTISER_ID", "default"),
		SchemaPath:     get("SCHEMA_PATH", ""),
		TemplatesPath:  get("TEMPLATES_PATH", ""),
		StoreBackend:   strings.ToLower(get("STORE_BACKEND", "sqlite")),
		DatabaseURL:    get("DATABASE_URL", "file:adbatch.db"),
		RedisURL:       get("REDIS_URL", ""),
		KafkaTopic:     get("KAFKA_TOPIC", ""),
		ValidationMode: strings.ToLower(get("VALIDATION_MODE", "shallow")),
		LogLevel:       strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(get("LOG_FORMAT", "text")),
	}
	cfg.KafkaBrokers = list(get("KAFKA_BROKERS", ""))
	cfg.LegacyKeys = list(get("LEGACY_BATCH_KEYS", ""))
	rps, err := strconv.ParseFloat(get("RATE_LIMIT_RPS", "0"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitRPS = rps

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// list splits a comma-separated value, dropping blanks.
func list(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
