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

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "reviewforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "REVIEWFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "REVIEWFORGE_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxUploadBytes, "REVIEWFORGE_MAX_UPLOAD_BYTES")

	// Review loop
	setInt(&cfg.Review.MaxIterations, "REVIEWFORGE_MAX_ITERATIONS")
	setDuration(&cfg.Review.CallTimeout, "REVIEWFORGE_CALL_TIMEOUT")
	setDuration(&cfg.Review.RunTimeout, "REVIEWFORGE_RUN_TIMEOUT")
	setInt(&cfg.Review.MaxConcurrentRuns, "REVIEWFORGE_MAX_CONCURRENT_RUNS")
	setInt(&cfg.Review.MinDocumentChars, "REVIEWFORGE_MIN_DOCUMENT_CHARS")
	setList(&cfg.Review.Indicators, "REVIEWFORGE_INDICATORS")

	// Generation
	setString(&cfg.Generation.Provider, "REVIEWFORGE_PROVIDER")
	setString(&cfg.Generation.Model, "REVIEWFORGE_MODEL")
	setFloat64(&cfg.Generation.Temperature, "REVIEWFORGE_TEMPERATURE")
	setInt(&cfg.Generation.MaxTokens, "REVIEWFORGE_MAX_TOKENS")
	setString(&cfg.Generation.PromptDir, "REVIEWFORGE_PROMPT_DIR")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setInt(&cfg.Breaker.MaxFailures, "REVIEWFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "REVIEWFORGE_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "REVIEWFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "REVIEWFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "REVIEWFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "REVIEWFORGE_RATE_MAX_IDLE_TIME")

	setString(&cfg.Logging.Level, "REVIEWFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "REVIEWFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "REVIEWFORGE_LOG_ASYNC")
	setString(&cfg.Logging.RunDir, "REVIEWFORGE_RUN_LOG_DIR")

	// Archive
	setString(&cfg.Store.Driver, "REVIEWFORGE_STORE")
	setString(&cfg.Store.SQLitePath, "REVIEWFORGE_SQLITE_PATH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "REVIEWFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "REVIEWFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "REVIEWFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "REVIEWFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "REVIEWFORGE_PG_HEALTH_CHECK")

	// NATS
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "REVIEWFORGE_NATS_ENABLED")
	setString(&cfg.NATS.KVBucket, "REVIEWFORGE_NATS_KV_BUCKET")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "REVIEWFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "REVIEWFORGE_CACHE_TTL")

	// OTel
	setBool(&cfg.OTel.Enabled, "REVIEWFORGE_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTel.Insecure, "REVIEWFORGE_OTEL_INSECURE")
	setString(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")

	setBool(&cfg.MCP.Enabled, "REVIEWFORGE_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "REVIEWFORGE_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Review.MaxIterations < 1 {
		return errors.New("review.max_iterations must be >= 1")
	}
	if cfg.Review.MaxConcurrentRuns < 0 {
		return errors.New("review.max_concurrent_runs must be >= 0")
	}
	if cfg.Review.MinDocumentChars < 1 {
		return errors.New("review.min_document_chars must be >= 1")
	}
	switch cfg.Generation.Provider {
	case "litellm", "openai":
	default:
		return fmt.Errorf("generation.provider %q is not supported", cfg.Generation.Provider)
	}
	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "none":
	default:
		return fmt.Errorf("store.driver %q is not supported", cfg.Store.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList splits a comma-separated env value into trimmed, non-empty items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
