// Package config loads server settings from an optional YAML file and lets
// environment variables override each field.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

// MemoryDatabase selects the in-process store instead of Postgres.
const MemoryDatabase = "memory"

type Config struct {
	Port               string        `yaml:"port"`
	Environment        string        `yaml:"environment"`
	DatabaseURL        string        `yaml:"databaseURL"`
	DBHost             string        `yaml:"dbHost"`
	DBPort             string        `yaml:"dbPort"`
	DBUser             string        `yaml:"dbUser"`
	DBPassword         string        `yaml:"dbPassword"`
	DBName             string        `yaml:"dbName"`
	DBSSLMode          string        `yaml:"dbSSLMode"`
	JWTSecret          string        `yaml:"jwtSecret"`
	TokenTTL           time.Duration `yaml:"tokenTTL"`
	RedisAddr          string        `yaml:"redisAddr"`
	RedisPassword      string        `yaml:"redisPassword"`
	AllowedOrigins     []string      `yaml:"allowedOrigins"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	StoreTimeout       time.Duration `yaml:"storeTimeout"`
	DraftTTL           time.Duration `yaml:"draftTTL"`
	LogLevel           string        `yaml:"logLevel"`
	GeminiAPIKey       string        `yaml:"geminiAPIKey"`
	GeminiModel        string        `yaml:"geminiModel"`
	AMQPURL            string        `yaml:"amqpURL"`
	AMQPExchange       string        `yaml:"amqpExchange"`
	PolicyFile         string        `yaml:"policyFile"`
}

func Defaults() Config {
	return Config{
		Port:               "8080",
		Environment:        "development",
		DBHost:             "localhost",
		DBPort:             "5432",
		DBUser:             "postgres",
		DBName:             "buildstream",
		DBSSLMode:          "disable",
		TokenTTL:           7 * 24 * time.Hour,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
		StoreTimeout:       15 * time.Second,
		DraftTTL:           7 * 24 * time.Hour,
		LogLevel:           "info",
		GeminiModel:        "gemini-2.0-flash",
		AMQPExchange:       "site.hazards",
	}
}

// Load reads path over the defaults and then applies environment
// overrides. A missing file is not an error when path is the default.
func Load(path string) (Config, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Environment, "APP_ENV")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DBHost, "DB_HOST")
	setString(&cfg.DBPort, "DB_PORT")
	setString(&cfg.DBUser, "DB_USER")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBName, "DB_NAME")
	setString(&cfg.DBSSLMode, "DB_SSLMODE")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.GeminiAPIKey, "API_KEY")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.AMQPURL, "AMQP_URL")
	setString(&cfg.AMQPExchange, "AMQP_EXCHANGE")
	setString(&cfg.PolicyFile, "POLICY_FILE")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = parseCommaSeparated(v)
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = n
	}
	for env, dst := range map[string]*time.Duration{
		"TOKEN_TTL":     &cfg.TokenTTL,
		"STORE_TIMEOUT": &cfg.StoreTimeout,
		"DRAFT_TTL":     &cfg.DraftTTL,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		*dst = d
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func (c Config) validate() error {
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.StoreTimeout < time.Second || c.StoreTimeout > time.Minute {
		return errors.New("store timeout must be between 1s and 60s")
	}
	if c.DraftTTL <= 0 {
		return errors.New("draft ttl must be positive")
	}
	if c.JWTSecret == "" && !c.Development() {
		return errors.New("JWT_SECRET is required outside development")
	}
	return nil
}

func (c Config) Development() bool {
	return c.Environment == "" || c.Environment == "development"
}

// Secret returns the signing key, with a fixed fallback for local runs.
func (c Config) Secret() []byte {
	if c.JWTSecret == "" {
		return []byte("dev-secret-change-in-production")
	}
	return []byte(c.JWTSecret)
}

// DSN returns DATABASE_URL when set, otherwise a keyword DSN built from the
// individual DB_* settings.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func parseCommaSeparated(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
