// Package config handles loading and managing application configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Constants for LLM provider types
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the main application configuration
type Config struct {
	Version    string           `json:"version"`
	HTTP       HTTPConfig       `json:"http,omitempty"`
	Slack      SlackConfig      `json:"slack"`
	Agent      AgentConfig      `json:"agent"`
	MCP        MCPConfig        `json:"mcp,omitempty"`
	Tinybird   TinybirdConfig   `json:"tinybird"`
	Dedup      DedupConfig      `json:"dedup,omitempty"`
	Workers    WorkersConfig    `json:"workers,omitempty"`
	Monitoring MonitoringConfig `json:"monitoring,omitempty"`
	Tracing    TracingConfig    `json:"tracing,omitempty"`
	Timeouts   TimeoutConfig    `json:"timeouts,omitempty"`
	Retry      RetryConfig      `json:"retry,omitempty"`
}

// HTTPConfig contains the webhook listener settings
type HTTPConfig struct {
	Port int `json:"port,omitempty"` // Webhook listener port (default: 8080)
}

// SlackConfig contains Slack-specific configuration
type SlackConfig struct {
	BotToken     string `json:"botToken"`
	BotUserID    string `json:"botUserId,omitempty"`    // Resolved via auth.test when empty
	ClientID     string `json:"clientId,omitempty"`     // OAuth v2 app credentials
	ClientSecret string `json:"clientSecret,omitempty"` //
	RedirectURI  string `json:"redirectUri,omitempty"`  // OAuth callback URL registered with the app
}

// AgentConfig contains the LLM agent configuration
type AgentConfig struct {
	Provider      string  `json:"provider,omitempty"`
	Model         string  `json:"model,omitempty"`
	APIKey        string  `json:"apiKey,omitempty"`
	BaseURL       string  `json:"baseUrl,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	MaxIterations int     `json:"maxIterations,omitempty"` // Maximum tool-calling iterations (default: 20)
}

// MCPConfig contains the Tinybird MCP server configuration
type MCPConfig struct {
	URL                      string `json:"url,omitempty"` // Base URL, token and host are appended per channel
	InitializeTimeoutSeconds *int   `json:"initializeTimeoutSeconds,omitempty"`
}

// GetInitializeTimeout returns the timeout with default fallback
func (m *MCPConfig) GetInitializeTimeout() int {
	if m.InitializeTimeoutSeconds != nil {
		return *m.InitializeTimeoutSeconds
	}
	return 30
}

// TinybirdConfig contains the configuration store settings
type TinybirdConfig struct {
	Host       string `json:"host,omitempty"`       // API host for the config workspace
	AdminToken string `json:"adminToken,omitempty"` // Token for the config workspace
}

// DedupConfig contains delivery deduplication settings
type DedupConfig struct {
	WindowSeconds int    `json:"windowSeconds,omitempty"` // Dedup window (default: 300)
	LedgerPath    string `json:"ledgerPath,omitempty"`    // Ledger file path (default: under os.TempDir)
}

// Window returns the dedup window as a duration
func (d *DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowSeconds) * time.Second
}

// WorkersConfig contains worker pool settings
type WorkersConfig struct {
	PoolSize  int `json:"poolSize,omitempty"`  // Worker goroutines (default: 4)
	QueueSize int `json:"queueSize,omitempty"` // Pending task queue (default: 64)
}

// MonitoringConfig contains monitoring and observability settings
type MonitoringConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	MetricsPort  int    `json:"metricsPort,omitempty"`
	LoggingLevel string `json:"loggingLevel,omitempty"`
}

// TracingConfig contains OTLP trace export settings
type TracingConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// TimeoutConfig contains timeout settings for various operations
type TimeoutConfig struct {
	HTTPRequestTimeout string `json:"httpRequestTimeout,omitempty"` // Outbound HTTP client timeout (default: "30s")
	AgentRunTimeout    string `json:"agentRunTimeout,omitempty"`    // Full agent invocation (default: "5m")
	MCPInitTimeout     string `json:"mcpInitTimeout,omitempty"`     // MCP client initialization (default: "30s")
}

// RetryConfig contains retry and resilience settings
type RetryConfig struct {
	MaxAttempts int    `json:"maxAttempts,omitempty"` // Max retry attempts (default: 3)
	BaseBackoff string `json:"baseBackoff,omitempty"` // Base backoff duration (default: "500ms")
	MaxBackoff  string `json:"maxBackoff,omitempty"`  // Maximum backoff duration (default: "5s")
}

// ApplyDefaults applies default values to the configuration
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	// HTTP defaults
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}

	// Agent defaults
	if c.Agent.Provider == "" {
		c.Agent.Provider = ProviderOpenAI
	}
	if c.Agent.Model == "" {
		switch c.Agent.Provider {
		case ProviderAnthropic:
			c.Agent.Model = "claude-3-5-sonnet-20241022"
		default:
			c.Agent.Model = "gpt-4o"
		}
	}
	if c.Agent.Temperature == 0 {
		c.Agent.Temperature = 0.7
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 20
	}

	// MCP defaults
	if c.MCP.URL == "" {
		c.MCP.URL = "https://mcp.tinybird.co"
	}

	// Tinybird defaults
	if c.Tinybird.Host == "" {
		c.Tinybird.Host = "https://api.tinybird.co"
	}

	// Dedup defaults
	if c.Dedup.WindowSeconds == 0 {
		c.Dedup.WindowSeconds = 300
	}

	// Worker defaults
	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 4
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 64
	}

	// Timeout defaults
	if c.Timeouts.HTTPRequestTimeout == "" {
		c.Timeouts.HTTPRequestTimeout = "30s"
	}
	if c.Timeouts.AgentRunTimeout == "" {
		c.Timeouts.AgentRunTimeout = "5m"
	}
	if c.Timeouts.MCPInitTimeout == "" {
		c.Timeouts.MCPInitTimeout = "30s"
	}

	// Retry defaults
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseBackoff == "" {
		c.Retry.BaseBackoff = "500ms"
	}
	if c.Retry.MaxBackoff == "" {
		c.Retry.MaxBackoff = "5s"
	}

	// Monitoring defaults
	c.Monitoring.Enabled = true
	if c.Monitoring.MetricsPort == 0 {
		c.Monitoring.MetricsPort = 9090
	}
	if c.Monitoring.LoggingLevel == "" {
		c.Monitoring.LoggingLevel = "info"
	}
}

// ApplyEnvironmentVariables applies environment variable overrides
func (c *Config) ApplyEnvironmentVariables() {
	// Slack configuration
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		c.Slack.BotToken = token
	}
	if id := os.Getenv("SLACK_BOT_USER_ID"); id != "" {
		c.Slack.BotUserID = id
	}
	if id := os.Getenv("SLACK_CLIENT_ID"); id != "" {
		c.Slack.ClientID = id
	}
	if secret := os.Getenv("SLACK_CLIENT_SECRET"); secret != "" {
		c.Slack.ClientSecret = secret
	}
	if uri := os.Getenv("SLACK_REDIRECT_URI"); uri != "" {
		c.Slack.RedirectURI = uri
	}

	// Agent configuration
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.Agent.Provider = provider
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.Agent.Model = model
	}
	switch c.Agent.Provider {
	case ProviderAnthropic:
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			c.Agent.APIKey = apiKey
		}
	default:
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			c.Agent.APIKey = apiKey
		}
	}

	// Tinybird configuration workspace
	if host := os.Getenv("TINYBIRD_HOST"); host != "" {
		c.Tinybird.Host = host
	}
	if token := os.Getenv("TINYBIRD_ADMIN_TOKEN"); token != "" {
		c.Tinybird.AdminToken = token
	}

	// MCP server override
	if url := os.Getenv("TINYBIRD_MCP_URL"); url != "" {
		c.MCP.URL = url
	}

	// HTTP port override
	if port := os.Getenv("PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			c.HTTP.Port = val
		}
	}

	// Monitoring overrides
	if enabled := os.Getenv("MONITORING_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			c.Monitoring.Enabled = val
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Monitoring.LoggingLevel = level
	}
}
