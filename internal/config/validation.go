// Package config handles loading and managing application configuration
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

// ValidateAfterDefaults validates configuration after defaults and env substitution
func (c *Config) ValidateAfterDefaults() error {
	if c.Slack.BotToken == "" || strings.HasPrefix(c.Slack.BotToken, "${") {
		return fmt.Errorf("SLACK_BOT_TOKEN environment variable not set")
	}

	switch c.Agent.Provider {
	case ProviderOpenAI:
		if c.Agent.APIKey == "" || strings.HasPrefix(c.Agent.APIKey, "${") {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case ProviderAnthropic:
		if c.Agent.APIKey == "" || strings.HasPrefix(c.Agent.APIKey, "${") {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unsupported agent provider '%s'", c.Agent.Provider)
	}

	if c.Tinybird.AdminToken == "" || strings.HasPrefix(c.Tinybird.AdminToken, "${") {
		return fmt.Errorf("TINYBIRD_ADMIN_TOKEN environment variable not set")
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" || strings.HasPrefix(c.Tracing.Endpoint, "${") {
			return fmt.Errorf("tracing enabled but no endpoint configured")
		}
	}

	return nil
}

// ValidateConfig performs comprehensive validation of the configuration structure
// using the JSON schema at schema/config-schema.json
func (c *Config) ValidateConfig() error {
	configJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	schemaPath, err := findSchemaPath()
	if err != nil {
		return fmt.Errorf("failed to find schema file: %w", err)
	}

	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to compile JSON schema: %w", err)
	}

	var configData interface{}
	if err := json.Unmarshal(configJSON, &configData); err != nil {
		return fmt.Errorf("failed to unmarshal config for validation: %w", err)
	}

	if err := schema.Validate(configData); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	return nil
}

// findSchemaPath locates the config schema file
func findSchemaPath() (string, error) {
	possiblePaths := []string{
		"schema/config-schema.json",
		"./schema/config-schema.json",
		"../schema/config-schema.json",
		"../../schema/config-schema.json",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return filepath.Abs(path)
		}
	}

	return "", fmt.Errorf("config schema file not found in any of: %v", possiblePaths)
}

// removeSchemaField removes the $schema field from JSON data to avoid strict parsing errors
func removeSchemaField(configData []byte) []byte {
	var rawConfig map[string]interface{}
	if err := json.Unmarshal(configData, &rawConfig); err != nil {
		return configData
	}

	delete(rawConfig, "$schema")

	if cleanData, err := json.Marshal(rawConfig); err == nil {
		return cleanData
	}

	return configData
}

// SubstituteEnvironmentVariables performs ${VAR} placeholder substitution
func (c *Config) SubstituteEnvironmentVariables() {
	c.Slack.BotToken = substituteEnvVars(c.Slack.BotToken)
	c.Slack.ClientID = substituteEnvVars(c.Slack.ClientID)
	c.Slack.ClientSecret = substituteEnvVars(c.Slack.ClientSecret)
	c.Slack.RedirectURI = substituteEnvVars(c.Slack.RedirectURI)
	c.Agent.APIKey = substituteEnvVars(c.Agent.APIKey)
	c.Agent.BaseURL = substituteEnvVars(c.Agent.BaseURL)
	c.Tinybird.AdminToken = substituteEnvVars(c.Tinybird.AdminToken)
	c.Tinybird.Host = substituteEnvVars(c.Tinybird.Host)
	c.Tracing.Endpoint = substituteEnvVars(c.Tracing.Endpoint)
}

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values
func substituteEnvVars(input string) string {
	if strings.HasPrefix(input, "${") && strings.HasSuffix(input, "}") {
		varName := input[2 : len(input)-1]
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
	}
	return input
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configFile string, logger *logging.Logger) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.InfoKV("No .env file loaded", "error", err)
		}
	} else if logger != nil {
		logger.InfoKV("Loaded environment variables from .env file", "success", true)
	}

	cfg := &Config{}
	cfg.ApplyDefaults()

	// Apply environment variable overrides BEFORE loading the config file so
	// the file keeps the highest priority.
	cfg.ApplyEnvironmentVariables()

	if configFile != "" {
		if err := loadConfigFile(cfg, configFile, logger); err != nil {
			return nil, err
		}
	}

	cfg.SubstituteEnvironmentVariables()

	if err := cfg.ValidateAfterDefaults(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Schema validation runs last so the friendlier checks above report
	// missing credentials before the schema complains about them.
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile loads configuration from a file
func loadConfigFile(cfg *Config, configFile string, logger *logging.Logger) error {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configFile)
	}

	configData, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %s", err)
	}

	configData = removeSchemaField(configData)
	dec := json.NewDecoder(bytes.NewReader(configData))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if logger != nil {
		logger.InfoKV("Loaded configuration from file", "file", configFile)
	}

	return nil
}
