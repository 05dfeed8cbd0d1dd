package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
)

// Config aggregates all pipeline configuration, loaded from environment
// variables (optionally seeded from a .env file by the caller).
type Config struct {
	Corpus     CorpusConfig
	Annotation AnnotationConfig
	LLM        LLMConfig
	Budget     BudgetConfig
	Database   DatabaseConfig
	Events     EventsConfig
	HTTP       HTTPConfig
}

// CorpusConfig locates input documents and output artifacts.
type CorpusConfig struct {
	// InputDir holds interview documents named YYYYMMDD_HHMM_<id>.txt.
	InputDir string

	// RosterFile is an optional workbook with per-interview metadata
	// (location, participant count). Empty means <InputDir>/corpus.xlsx
	// when that file exists.
	RosterFile string

	// OutputDir receives annotation artifacts, the validation summary,
	// stage markers, and exports.
	OutputDir string
}

// AnnotationConfig controls batching, retries, and quality thresholds.
type AnnotationConfig struct {
	BatchSize         int
	MaxRetries        int
	RetryBackoff      time.Duration
	Workers           int
	RunTimeout        time.Duration
	RequestTimeout    time.Duration
	SchemaFile        string
	MinConfidence     float64
	CoverageThreshold float64
}

// LLMConfig selects and parameterizes the annotation provider.
type LLMConfig struct {
	// Provider is "openai" or "mock".
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// BudgetConfig caps spend for a whole run. LimitUSD of 0 disables the
// ceiling; cost is accumulated either way.
type BudgetConfig struct {
	LimitUSD             float64
	PromptPricePer1K     float64
	CompletionPricePer1K float64
}

// DatabaseConfig enables the optional MySQL archive.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN returns the driver connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// EventsConfig enables the optional AMQP completion events. Empty URL
// disables publishing.
type EventsConfig struct {
	AMQPUrl string
	Queue   string
}

func (e EventsConfig) Enabled() bool { return e.AMQPUrl != "" }

// HTTPConfig covers the embedded status server and the dashboard.
type HTTPConfig struct {
	// StatusAddr enables the in-run status server (metrics, progress
	// websocket) when non-empty, e.g. ":9090".
	StatusAddr     string
	DashboardPort  string
	MetricsEnabled bool
}

// Load reads configuration from the environment and validates it.
func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{}

	loadCorpusConfig(&cfg.Corpus)
	loadAnnotationConfig(&cfg.Annotation)
	loadLLMConfig(&cfg.LLM)
	loadBudgetConfig(&cfg.Budget)
	loadDatabaseConfig(&cfg.Database)
	loadEventsConfig(&cfg.Events)
	loadHTTPConfig(&cfg.HTTP)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"corpus_dir":  cfg.Corpus.InputDir,
		"output_dir":  cfg.Corpus.OutputDir,
		"batch_size":  cfg.Annotation.BatchSize,
		"workers":     cfg.Annotation.Workers,
		"provider":    cfg.LLM.Provider,
		"model":       cfg.LLM.Model,
		"budget_usd":  cfg.Budget.LimitUSD,
		"db_enabled":  cfg.Database.Enabled,
		"amqp":        cfg.Events.Enabled(),
		"status_addr": cfg.HTTP.StatusAddr,
	}).Info("Configuration loaded")

	return cfg, nil
}

func loadCorpusConfig(c *CorpusConfig) {
	c.InputDir = getEnv("CORPUS_DIR", filepath.Join("data", "interviews"))
	c.OutputDir = getEnv("OUTPUT_DIR", filepath.Join("data", "annotations"))

	c.RosterFile = getEnv("ROSTER_FILE", "")
	if c.RosterFile == "" {
		candidate := filepath.Join(c.InputDir, "corpus.xlsx")
		if _, err := os.Stat(candidate); err == nil {
			c.RosterFile = candidate
		}
	}
}

func loadAnnotationConfig(c *AnnotationConfig) {
	c.BatchSize = getEnvInt("BATCH_SIZE", 4)
	c.MaxRetries = getEnvInt("MAX_RETRIES", 3)
	c.RetryBackoff = getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond)
	c.Workers = getEnvInt("WORKER_COUNT", 6)
	c.RunTimeout = getEnvDuration("RUN_TIMEOUT", 1800*time.Second)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 90*time.Second)
	c.SchemaFile = getEnv("SCHEMA_FILE", "")
	c.MinConfidence = getEnvFloat("MIN_CONFIDENCE", 0.60)
	c.CoverageThreshold = getEnvFloat("COVERAGE_THRESHOLD", 95.0)
}

func loadLLMConfig(c *LLMConfig) {
	c.Provider = strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	c.APIKey = getEnv("OPENAI_API_KEY", "")
	c.BaseURL = getEnv("OPENAI_BASE_URL", "")
	c.Model = getEnv("LLM_MODEL", "gpt-4o-mini")
	c.Temperature = getEnvFloat("LLM_TEMPERATURE", 0.2)
	c.MaxTokens = getEnvInt("LLM_MAX_TOKENS", 2048)
}

func loadBudgetConfig(c *BudgetConfig) {
	c.LimitUSD = getEnvFloat("BUDGET_LIMIT_USD", 0)
	c.PromptPricePer1K = getEnvFloat("PRICE_PROMPT_PER_1K", 0.005)
	c.CompletionPricePer1K = getEnvFloat("PRICE_COMPLETION_PER_1K", 0.015)
}

func loadDatabaseConfig(c *DatabaseConfig) {
	c.Enabled = getEnvBool("DB_ENABLED", false)
	c.Host = getEnv("DB_HOST", "127.0.0.1")
	c.Port = getEnvInt("DB_PORT", 3306)
	c.User = getEnv("DB_USER", "annotator")
	c.Password = getEnv("DB_PASSWORD", "")
	c.Name = getEnv("DB_NAME", "interview_insights")
}

func loadEventsConfig(c *EventsConfig) {
	c.AMQPUrl = getEnv("AMQP_URL", "")
	c.Queue = getEnv("AMQP_QUEUE", "interview.annotations")
}

func loadHTTPConfig(c *HTTPConfig) {
	c.StatusAddr = getEnv("STATUS_ADDR", "")
	c.DashboardPort = getEnv("DASHBOARD_PORT", "8080")
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Annotation.BatchSize < 1 {
		return apperrors.NewInvalidInput("BATCH_SIZE must be at least 1",
			map[string]interface{}{"batch_size": c.Annotation.BatchSize})
	}
	if c.Annotation.Workers < 1 {
		return apperrors.NewInvalidInput("WORKER_COUNT must be at least 1",
			map[string]interface{}{"workers": c.Annotation.Workers})
	}
	if c.Annotation.MaxRetries < 0 {
		return apperrors.NewInvalidInput("MAX_RETRIES must not be negative",
			map[string]interface{}{"max_retries": c.Annotation.MaxRetries})
	}
	if c.Annotation.RunTimeout <= 0 {
		return apperrors.NewInvalidInput("RUN_TIMEOUT must be positive",
			map[string]interface{}{"run_timeout": c.Annotation.RunTimeout.String()})
	}
	if c.Annotation.CoverageThreshold <= 0 || c.Annotation.CoverageThreshold > 100 {
		return apperrors.NewInvalidInput("COVERAGE_THRESHOLD must be in (0, 100]",
			map[string]interface{}{"coverage_threshold": c.Annotation.CoverageThreshold})
	}
	if c.Annotation.MinConfidence < 0 || c.Annotation.MinConfidence > 1 {
		return apperrors.NewInvalidInput("MIN_CONFIDENCE must be in [0, 1]",
			map[string]interface{}{"min_confidence": c.Annotation.MinConfidence})
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return apperrors.NewInvalidInput("OPENAI_API_KEY is required for the openai provider")
		}
	case "mock":
		// No credentials needed.
	default:
		return apperrors.NewInvalidInput("unknown LLM_PROVIDER",
			map[string]interface{}{"provider": c.LLM.Provider})
	}

	if c.Budget.LimitUSD < 0 {
		return apperrors.NewInvalidInput("BUDGET_LIMIT_USD must not be negative",
			map[string]interface{}{"budget_limit_usd": c.Budget.LimitUSD})
	}
	if c.Budget.PromptPricePer1K < 0 || c.Budget.CompletionPricePer1K < 0 {
		return apperrors.NewInvalidInput("token prices must not be negative")
	}

	if c.Database.Enabled && c.Database.Name == "" {
		return apperrors.NewInvalidInput("DB_NAME is required when DB_ENABLED is set")
	}

	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// Helper function to get a duration environment variable with a default value.
// Plain numbers are taken as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvFloat retrieves an environment variable and converts it to float64
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}
