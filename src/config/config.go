package config

import (
	"fmt"
	"os"

	"coinvest/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills intervals and buffer sizes the YAML may omit.
func (c *Config) applyDefaults() {
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 60
	}
	if c.PriceFeed.TimeoutSeconds == 0 {
		c.PriceFeed.TimeoutSeconds = 10
	}
	if c.Broadcast.PriceIntervalSeconds == 0 {
		c.Broadcast.PriceIntervalSeconds = 30
	}
	if c.Broadcast.PortfolioIntervalSeconds == 0 {
		c.Broadcast.PortfolioIntervalSeconds = 60
	}
	if c.Broadcast.ClientBuffer == 0 {
		c.Broadcast.ClientBuffer = 256
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Cache configuration
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis cache backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache ttl must be greater than 0")
	}

	// Validate PriceFeed configuration
	if c.PriceFeed.TimeoutSeconds <= 0 {
		return fmt.Errorf("price feed timeout must be greater than 0")
	}
	if c.PriceFeed.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if len(c.PriceFeed.Symbols) == 0 {
		return fmt.Errorf("at least one symbol must be configured")
	}
	for i, sym := range c.PriceFeed.Symbols {
		if sym.Symbol == "" {
			return fmt.Errorf("symbol %d must have a ticker", i)
		}
		if sym.ProviderID == "" {
			return fmt.Errorf("symbol '%s' must have a provider_id", sym.Symbol)
		}
	}

	// Validate Broadcast configuration
	if c.Broadcast.PriceIntervalSeconds <= 0 {
		return fmt.Errorf("price interval must be greater than 0")
	}
	if c.Broadcast.PortfolioIntervalSeconds <= 0 {
		return fmt.Errorf("portfolio interval must be greater than 0")
	}
	if c.Broadcast.ClientBuffer <= 0 {
		return fmt.Errorf("client buffer must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Symbols returns the configured instrument tickers.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.PriceFeed.Symbols))
	for _, s := range c.PriceFeed.Symbols {
		out = append(out, s.Symbol)
	}
	return out
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
