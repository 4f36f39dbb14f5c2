package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	Storage   MStorageConfig   `yaml:"storage"`
	Cache     MCacheConfig     `yaml:"cache"`
	PriceFeed MPriceFeedConfig `yaml:"price_feed"`
	Broadcast MBroadcastConfig `yaml:"broadcast"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MCacheConfig struct {
	Backend       string `yaml:"backend"` // "memory" or "redis"
	TTLSeconds    int    `yaml:"ttl_seconds"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type MPriceFeedConfig struct {
	TimeoutSeconds  int             `yaml:"timeout_seconds"`
	MaxRetries      int             `yaml:"max_retries"`
	PrimaryAPIKey   string          `yaml:"primary_api_key"`
	SecondaryAPIKey string          `yaml:"secondary_api_key"`
	Symbols         []MSymbolConfig `yaml:"symbols"`
}

// MSymbolConfig maps one supported instrument onto provider identifiers.
// ProviderID is the primary provider's coin id (e.g. "ethereum" for ETH);
// the secondary provider is keyed by the symbol itself.
type MSymbolConfig struct {
	Symbol      string `yaml:"symbol"`
	DisplayName string `yaml:"display_name"`
	ProviderID  string `yaml:"provider_id"`
}

type MBroadcastConfig struct {
	PriceIntervalSeconds     int `yaml:"price_interval_seconds"`
	PortfolioIntervalSeconds int `yaml:"portfolio_interval_seconds"`
	ClientBuffer             int `yaml:"client_buffer"`
}
