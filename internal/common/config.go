package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - enables dev-only endpoints
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Telegram    TelegramConfig  `toml:"telegram"`
	Jira        JiraConfig      `toml:"jira"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Storage     StorageConfig   `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// TelegramConfig contains Bot API credentials and webhook settings
type TelegramConfig struct {
	BotToken      string `toml:"bot_token"`
	WebhookURL    string `toml:"webhook_url" validate:"omitempty,url"` // Public HTTPS URL registered with setWebhook
	WebhookSecret string `toml:"webhook_secret"`                       // Secret token Telegram echoes on each webhook request
	RateLimit     string `toml:"rate_limit"`                           // Minimum interval between outbound Bot API calls (default: "50ms")
	Timeout       string `toml:"timeout"`                              // Bot API request timeout (default: "30s")
}

// JiraConfig contains OAuth client settings for the Jira integration
type JiraConfig struct {
	BaseURL      string `toml:"base_url" validate:"omitempty,url"` // e.g. https://yourcompany.atlassian.net
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri" validate:"omitempty,url"`
	ProjectKey   string `toml:"project_key"` // Default project for created issues
	Timeout      string `toml:"timeout"`     // API request timeout (default: "30s")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`   // Default: "gemini-3-flash-preview"
	Timeout     string  `toml:"timeout"` // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // Default: "claude-haiku-3-5-20241022"
	MaxTokens   int     `toml:"max_tokens"` // Default: 2048
	Timeout     string  `toml:"timeout"`    // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the extraction provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

type StorageConfig struct {
	Badger     BadgerConfig `toml:"badger"`
	TokensFile string       `toml:"tokens_file"` // JSON credential file path
	Downloads  string       `toml:"downloads"`   // Directory for Telegram media downloads
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SchedulerConfig contains background upkeep settings
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	HealthSchedule  string `toml:"health_schedule"`  // Cron schedule for health probes
	RefreshSchedule string `toml:"refresh_schedule"` // Cron schedule for proactive token refresh
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in tessera.toml; technical
// parameters are hardcoded for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Telegram: TelegramConfig{
			RateLimit: "50ms",
			Timeout:   "30s",
		},
		Jira: JiraConfig{
			RedirectURI: "http://localhost:8080/auth/callback",
			ProjectKey:  "SUPPORT",
			Timeout:     "30s",
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2048,
			Timeout:     "2m",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			TokensFile: "./data/tokens.json",
			Downloads:  "./data/downloads",
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			HealthSchedule:  "*/5 * * * *", // Every 5 minutes
			RefreshSchedule: "0 */6 * * *", // Every 6 hours
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones, then applies environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the merged configuration against struct tags
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: TESSERA_ENV, fallback: GO_ENV)
	if env := os.Getenv("TESSERA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("TESSERA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TESSERA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("TESSERA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("TESSERA_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("TESSERA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Telegram configuration
	if token := os.Getenv("TESSERA_TELEGRAM_BOT_TOKEN"); token != "" {
		config.Telegram.BotToken = token
	} else if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		config.Telegram.BotToken = token
	}
	if webhookURL := os.Getenv("TESSERA_TELEGRAM_WEBHOOK_URL"); webhookURL != "" {
		config.Telegram.WebhookURL = webhookURL
	}
	if webhookSecret := os.Getenv("TESSERA_TELEGRAM_WEBHOOK_SECRET"); webhookSecret != "" {
		config.Telegram.WebhookSecret = webhookSecret
	}
	if rateLimit := os.Getenv("TESSERA_TELEGRAM_RATE_LIMIT"); rateLimit != "" {
		config.Telegram.RateLimit = rateLimit
	}

	// Jira configuration
	if baseURL := os.Getenv("TESSERA_JIRA_BASE_URL"); baseURL != "" {
		config.Jira.BaseURL = baseURL
	}
	if clientID := os.Getenv("TESSERA_JIRA_CLIENT_ID"); clientID != "" {
		config.Jira.ClientID = clientID
	}
	if clientSecret := os.Getenv("TESSERA_JIRA_CLIENT_SECRET"); clientSecret != "" {
		config.Jira.ClientSecret = clientSecret
	}
	if redirectURI := os.Getenv("TESSERA_JIRA_REDIRECT_URI"); redirectURI != "" {
		config.Jira.RedirectURI = redirectURI
	}
	if projectKey := os.Getenv("TESSERA_JIRA_PROJECT_KEY"); projectKey != "" {
		config.Jira.ProjectKey = projectKey
	}

	// Gemini configuration
	if apiKey := os.Getenv("TESSERA_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("TESSERA_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("TESSERA_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("TESSERA_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("TESSERA_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // TESSERA_ prefix takes priority
	}
	if model := os.Getenv("TESSERA_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("TESSERA_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("TESSERA_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("TESSERA_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Storage configuration
	if badgerPath := os.Getenv("TESSERA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if tokensFile := os.Getenv("TESSERA_TOKENS_FILE"); tokensFile != "" {
		config.Storage.TokensFile = tokensFile
	}
	if downloads := os.Getenv("TESSERA_DOWNLOADS_DIR"); downloads != "" {
		config.Storage.Downloads = downloads
	}

	// Scheduler configuration
	if enabled := os.Getenv("TESSERA_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if healthSchedule := os.Getenv("TESSERA_SCHEDULER_HEALTH_SCHEDULE"); healthSchedule != "" {
		config.Scheduler.HealthSchedule = healthSchedule
	}
	if refreshSchedule := os.Getenv("TESSERA_SCHEDULER_REFRESH_SCHEDULE"); refreshSchedule != "" {
		config.Scheduler.RefreshSchedule = refreshSchedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
