/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	// Database connection configuration
	Database DatabaseConfig `yaml:"database"`

	// Query safety and execution limits
	Query QueryConfig `yaml:"query"`

	// Agent loop configuration
	Agent AgentConfig `yaml:"agent"`

	// LLM configuration (reasoning backend for the agent loop)
	LLM LLMConfig `yaml:"llm"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Address string `yaml:"address"` // Listen address (default: ":8080")
}

// DatabaseConfig holds analytical store connection settings
type DatabaseConfig struct {
	// Path is either a local database file for the embedded engine or a
	// postgres:// URL for a warehouse-hosted copy of the dataset.
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"read_only"` // Open embedded files read-only (default: true)

	// Connection pool settings (postgres backend only)
	PoolMaxConns int `yaml:"pool_max_conns"` // Maximum number of connections (default: 4)
	PoolMinConns int `yaml:"pool_min_conns"` // Minimum number of connections (default: 0)
}

// QueryConfig holds query validation and execution limits
type QueryConfig struct {
	MaxRows                int `yaml:"max_rows"`                  // Row cap per executed query (default: 1000)
	TimeoutSeconds         int `yaml:"query_timeout_seconds"`    // Per-statement execution timeout (default: 30)
	LargeTableRowThreshold int `yaml:"large_table_row_threshold"` // Row-count estimate above which an unbounded scan is rejected without a limit (default: 100000)
}

// AgentConfig holds agent loop settings
type AgentConfig struct {
	MaxSteps             int `yaml:"max_steps"`              // Reasoning/tool iterations per request (default: 8)
	RequestBudgetSeconds int `yaml:"request_budget_seconds"` // Wall-clock budget per request (default: 120)
	SessionTTLSeconds    int `yaml:"session_ttl_seconds"`    // Idle session eviction TTL (default: 3600)
	HistoryLimit         int `yaml:"history_limit"`          // Turns of history fed to the reasoner (default: 20)
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider            string  `yaml:"provider"`               // "anthropic" or "ollama"
	Model               string  `yaml:"model"`                  // Provider-specific model name
	AnthropicAPIKey     string  `yaml:"anthropic_api_key"`      // API key for Anthropic (discouraged, prefer env var or key file)
	AnthropicAPIKeyFile string  `yaml:"anthropic_api_key_file"` // Path to file containing Anthropic API key
	OllamaURL           string  `yaml:"ollama_url"`             // URL for Ollama service (default: http://localhost:11434)
	MaxTokens           int     `yaml:"max_tokens"`             // Maximum tokens for LLM response (default: 4096)
	Temperature         float64 `yaml:"temperature"`            // Temperature for LLM sampling (default: 0.1)
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	HTTPAddr    string
	HTTPAddrSet bool

	DBPath    string
	DBPathSet bool

	Provider    string
	ProviderSet bool

	Model    string
	ModelSet bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// If the file was explicitly specified, error out. Otherwise the
			// default path may simply not exist, which is fine.
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		Database: DatabaseConfig{
			Path:         "data/landuse_analytics.db",
			ReadOnly:     true,
			PoolMaxConns: 4,
			PoolMinConns: 0,
		},
		Query: QueryConfig{
			MaxRows:                1000,
			TimeoutSeconds:         30,
			LargeTableRowThreshold: 100000,
		},
		Agent: AgentConfig{
			MaxSteps:             8,
			RequestBudgetSeconds: 120,
			SessionTTLSeconds:    3600,
			HistoryLimit:         20,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			OllamaURL:   "http://localhost:11434",
			MaxTokens:   4096,
			Temperature: 0.1,
		},
	}
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// mergeConfig merges source config into dest, only overriding non-zero values
func mergeConfig(dest, src *Config) {
	if src.HTTP.Address != "" {
		dest.HTTP.Address = src.HTTP.Address
	}

	if src.Database.Path != "" {
		dest.Database.Path = src.Database.Path
	}
	if src.Database.PoolMaxConns > 0 {
		dest.Database.PoolMaxConns = src.Database.PoolMaxConns
	}
	if src.Database.PoolMinConns > 0 {
		dest.Database.PoolMinConns = src.Database.PoolMinConns
	}

	if src.Query.MaxRows > 0 {
		dest.Query.MaxRows = src.Query.MaxRows
	}
	if src.Query.TimeoutSeconds > 0 {
		dest.Query.TimeoutSeconds = src.Query.TimeoutSeconds
	}
	if src.Query.LargeTableRowThreshold > 0 {
		dest.Query.LargeTableRowThreshold = src.Query.LargeTableRowThreshold
	}

	if src.Agent.MaxSteps > 0 {
		dest.Agent.MaxSteps = src.Agent.MaxSteps
	}
	if src.Agent.RequestBudgetSeconds > 0 {
		dest.Agent.RequestBudgetSeconds = src.Agent.RequestBudgetSeconds
	}
	if src.Agent.SessionTTLSeconds > 0 {
		dest.Agent.SessionTTLSeconds = src.Agent.SessionTTLSeconds
	}
	if src.Agent.HistoryLimit > 0 {
		dest.Agent.HistoryLimit = src.Agent.HistoryLimit
	}

	if src.LLM.Provider != "" {
		dest.LLM.Provider = src.LLM.Provider
	}
	if src.LLM.Model != "" {
		dest.LLM.Model = src.LLM.Model
	}
	if src.LLM.AnthropicAPIKey != "" {
		dest.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
	}
	if src.LLM.AnthropicAPIKeyFile != "" {
		dest.LLM.AnthropicAPIKeyFile = src.LLM.AnthropicAPIKeyFile
	}
	if src.LLM.OllamaURL != "" {
		dest.LLM.OllamaURL = src.LLM.OllamaURL
	}
	if src.LLM.MaxTokens > 0 {
		dest.LLM.MaxTokens = src.LLM.MaxTokens
	}
	if src.LLM.Temperature > 0 {
		dest.LLM.Temperature = src.LLM.Temperature
	}
}

// applyEnvironmentVariables overrides config values from the environment
func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("LANDUSE_HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("LANDUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LANDUSE_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Query.MaxRows = n
		}
	}
	if v := os.Getenv("LANDUSE_QUERY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Query.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("LANDUSE_LARGE_TABLE_ROW_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Query.LargeTableRowThreshold = n
		}
	}
	if v := os.Getenv("LANDUSE_MAX_AGENT_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxSteps = n
		}
	}
	if v := os.Getenv("LANDUSE_SESSION_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.SessionTTLSeconds = n
		}
	}
	if v := os.Getenv("LANDUSE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LANDUSE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
}

// applyCLIFlags overrides config values from explicitly set command line flags
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}
	if flags.DBPathSet {
		cfg.Database.Path = flags.DBPath
	}
	if flags.ProviderSet {
		cfg.LLM.Provider = flags.Provider
	}
	if flags.ModelSet {
		cfg.LLM.Model = flags.Model
	}
}

// validateConfig checks the final configuration for consistency
func validateConfig(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if cfg.Query.MaxRows <= 0 {
		return fmt.Errorf("query max_rows must be positive")
	}
	if cfg.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if cfg.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent max_steps must be positive")
	}
	switch cfg.LLM.Provider {
	case "anthropic", "ollama":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	return nil
}

// ResolveAnthropicAPIKey returns the Anthropic API key, preferring the key
// file over the inline value when both are set.
func (c *LLMConfig) ResolveAnthropicAPIKey() (string, error) {
	if c.AnthropicAPIKeyFile != "" {
		data, err := os.ReadFile(c.AnthropicAPIKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read API key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return c.AnthropicAPIKey, nil
}

// IsPostgres reports whether the database path points at a postgres-hosted
// copy of the dataset rather than a local embedded file.
func (c *DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(c.Path, "postgres://") || strings.HasPrefix(c.Path, "postgresql://")
}
