package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Cache struct {
		Backend  string `yaml:"backend"`
		Capacity int    `yaml:"capacity"`
		Redis    struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		QuoteTTL time.Duration `yaml:"quote_ttl"`
		AssetTTL time.Duration `yaml:"asset_ttl"`
		NewsTTL  time.Duration `yaml:"news_ttl"`
	} `yaml:"cache"`
	Scheduler struct {
		QuoteInterval time.Duration `yaml:"quote_interval"`
		AssetInterval time.Duration `yaml:"asset_interval"`
		NewsInterval  time.Duration `yaml:"news_interval"`
		Symbols       []string      `yaml:"symbols"`
		NewsSymbols   []string      `yaml:"news_symbols"`
	} `yaml:"scheduler"`
	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		OpenTimeout      time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`
	Providers struct {
		Finnhub struct {
			APIKey        string        `yaml:"api_key"`
			RatePerMinute int           `yaml:"rate_per_minute"`
			Stream        bool          `yaml:"stream"`
			WebSocketURL  string        `yaml:"websocket_url"`
			StreamSymbols []string      `yaml:"stream_symbols"`
			PingInterval  time.Duration `yaml:"ping_interval"`
		} `yaml:"finnhub"`
		CoinMarketCap struct {
			APIKey        string `yaml:"api_key"`
			RatePerMinute int    `yaml:"rate_per_minute"`
		} `yaml:"coinmarketcap"`
		AlphaVantage struct {
			APIKey        string `yaml:"api_key"`
			RatePerMinute int    `yaml:"rate_per_minute"`
		} `yaml:"alphavantage"`
		CoinGecko struct {
			RatePerMinute int `yaml:"rate_per_minute"`
		} `yaml:"coingecko"`
		YFinance struct {
			RatePerMinute int `yaml:"rate_per_minute"`
		} `yaml:"yfinance"`
		Timeout     time.Duration `yaml:"timeout"`
		Concurrency int           `yaml:"concurrency"`
	} `yaml:"providers"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("COINMARKETCAP_API_KEY"); v != "" {
		c.Providers.CoinMarketCap.APIKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ACTIVE_SYMBOLS"); v != "" {
		c.Scheduler.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 10000
	}
	if c.Cache.QuoteTTL == 0 {
		c.Cache.QuoteTTL = 5 * time.Minute
	}
	if c.Cache.AssetTTL == 0 {
		c.Cache.AssetTTL = 24 * time.Hour
	}
	if c.Cache.NewsTTL == 0 {
		c.Cache.NewsTTL = 30 * time.Minute
	}
	if c.Scheduler.QuoteInterval == 0 {
		c.Scheduler.QuoteInterval = 5 * time.Second
	}
	if c.Scheduler.AssetInterval == 0 {
		c.Scheduler.AssetInterval = 24 * time.Hour
	}
	if c.Scheduler.NewsInterval == 0 {
		c.Scheduler.NewsInterval = 15 * time.Minute
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 5 * time.Minute
	}
	if c.Providers.Timeout == 0 {
		c.Providers.Timeout = 10 * time.Second
	}
	if c.Providers.Concurrency == 0 {
		c.Providers.Concurrency = 4
	}
	if c.Providers.Finnhub.WebSocketURL == "" {
		c.Providers.Finnhub.WebSocketURL = "wss://ws.finnhub.io"
	}
	if c.Providers.Finnhub.PingInterval == 0 {
		c.Providers.Finnhub.PingInterval = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for redis backend")
	}
	if len(c.Scheduler.Symbols) == 0 {
		return fmt.Errorf("scheduler.symbols cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Providers.Finnhub.Stream && c.Providers.Finnhub.APIKey == "" {
		return fmt.Errorf("providers.finnhub.api_key is required for streaming")
	}
	if c.Providers.Concurrency < 0 {
		return fmt.Errorf("providers.concurrency must be positive, got %d", c.Providers.Concurrency)
	}
	return nil
}
