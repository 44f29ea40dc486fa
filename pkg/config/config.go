package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in capability chains.
const (
	ProviderCoinGecko   = "coingecko"
	ProviderFinnhub     = "finnhub"
	ProviderReddit      = "reddit"
	ProviderWhaleAlert  = "whalealert"
	ProviderCoinGeckoTA = "coingecko_ta"
	ProviderAnalytics   = "analytics"
	ProviderBlockscout  = "blockscout"
	ProviderDemo        = "demo"
)

// CapabilityConfig configures one capability's fallback chain.
type CapabilityConfig struct {
	Providers  []string      `yaml:"providers"`
	SuccessTTL time.Duration `yaml:"success_ttl" validate:"gt=0"`
	ErrorTTL   time.Duration `yaml:"error_ttl" validate:"gt=0"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

// TokenConfig maps a token key to upstream identifiers.
type TokenConfig struct {
	CoinGeckoID   string   `yaml:"coingecko_id"`
	FinnhubSymbol string   `yaml:"finnhub_symbol"`
	Address       string   `yaml:"address"`
	Subreddits    []string `yaml:"subreddits"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout" validate:"required"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"5" validate:"gte=0"`
			Burst int     `yaml:"burst" default:"10" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Tracing struct {
		ServiceName string `yaml:"service_name" default:"tokenlens"`
	} `yaml:"tracing"`
	Report struct {
		Deadline     time.Duration `yaml:"deadline" default:"8s" validate:"gt=0"`
		SingleFlight bool          `yaml:"single_flight" default:"true"`
	} `yaml:"report"`
	Cache struct {
		Capacity        int           `yaml:"capacity" default:"1000" validate:"gt=0"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
	} `yaml:"cache"`
	Capabilities map[string]CapabilityConfig `yaml:"capabilities" validate:"dive"`
	Tokens       map[string]TokenConfig      `yaml:"tokens"`
	Providers    struct {
		HTTPTimeout       time.Duration `yaml:"http_timeout" default:"10s"`
		RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" default:"15m"`
		CoinGecko         struct {
			BaseURL       string  `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
			APIKey        string  `yaml:"api_key"`
			RatePerMinute float64 `yaml:"rate_per_minute" default:"8"`
			ChartDays     int     `yaml:"chart_days" default:"60" validate:"gte=2"`
		} `yaml:"coingecko"`
		Finnhub struct {
			APIKey       string `yaml:"api_key"`
			WebSocketURL string `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
			Exchange     string `yaml:"exchange" default:"BINANCE"`
			Quote        string `yaml:"quote" default:"USDT"`
		} `yaml:"finnhub"`
		Reddit struct {
			BaseURL   string `yaml:"base_url" default:"https://www.reddit.com"`
			UserAgent string `yaml:"user_agent" default:"tokenlens/1.0"`
			Limit     int    `yaml:"limit" default:"100" validate:"gt=0,lte=100"`
		} `yaml:"reddit"`
		WhaleAlert struct {
			BaseURL     string `yaml:"base_url" default:"https://api.whale-alert.io/v1"`
			APIKey      string `yaml:"api_key"`
			MinValueUSD int    `yaml:"min_value_usd" default:"500000"`
		} `yaml:"whalealert"`
		Blockscout struct {
			BaseURL string `yaml:"base_url" default:"https://eth.blockscout.com/api/v2"`
		} `yaml:"blockscout"`
		Analytics struct {
			ServiceURL string `yaml:"service_url"`
			Retries    int    `yaml:"retries" default:"2"`
		} `yaml:"analytics"`
		Demo struct {
			Enabled bool `yaml:"enabled" default:"true"`
		} `yaml:"demo"`
	} `yaml:"providers"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"tokenlens"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Prefetch struct {
		Enabled    bool          `yaml:"enabled"`
		Interval   time.Duration `yaml:"interval" default:"5m"`
		Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	} `yaml:"prefetch"`
	Events struct {
		Backend    string        `yaml:"backend" default:"log" validate:"oneof=log kafka clickhouse none"`
		BufferSize int           `yaml:"buffer_size" default:"1024" validate:"gt=0"`
		BatchSize  int           `yaml:"batch_size" default:"100" validate:"gt=0"`
		Linger     time.Duration `yaml:"linger" default:"200ms" validate:"gte=0"`
		Consume    bool          `yaml:"consume"`
	} `yaml:"events"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"tokenlens.fetch-events"`
		LogsTopic    string   `yaml:"logs_topic" default:"tokenlens.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tokenlens-events"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"10000"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tokenlens"`
		Table            string        `yaml:"table" default:"fetch_events"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

var validate = validator.New()

// DefaultCapabilities returns the built-in fallback chains.
func DefaultCapabilities() map[string]CapabilityConfig {
	return map[string]CapabilityConfig{
		"market_snapshot": {
			Providers:  []string{ProviderCoinGecko, ProviderFinnhub, ProviderDemo},
			SuccessTTL: time.Minute, ErrorTTL: 15 * time.Second, Timeout: 4 * time.Second,
		},
		"social_mentions": {
			Providers:  []string{ProviderReddit, ProviderDemo},
			SuccessTTL: 5 * time.Minute, ErrorTTL: 30 * time.Second, Timeout: 5 * time.Second,
		},
		"whale_activity": {
			Providers:  []string{ProviderWhaleAlert, ProviderDemo},
			SuccessTTL: 2 * time.Minute, ErrorTTL: 30 * time.Second, Timeout: 5 * time.Second,
		},
		"technical_signals": {
			Providers:  []string{ProviderCoinGeckoTA, ProviderAnalytics, ProviderDemo},
			SuccessTTL: 5 * time.Minute, ErrorTTL: 30 * time.Second, Timeout: 6 * time.Second,
		},
		"holder_distribution": {
			Providers:  []string{ProviderBlockscout, ProviderDemo},
			SuccessTTL: 30 * time.Minute, ErrorTTL: time.Minute, Timeout: 5 * time.Second,
		},
	}
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.finalize()
	return &c, nil
}

// Load reads and parses a YAML configuration file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.finalize()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("TOKENLENS_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.Providers.CoinGecko.APIKey = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := getenv("WHALE_ALERT_API_KEY"); v != "" {
		c.Providers.WhaleAlert.APIKey = v
	}
	if v := getenv("ANALYTICS_SERVICE_URL"); v != "" {
		c.Providers.Analytics.ServiceURL = v
	}
	if v := getenv("REPORT_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Report.Deadline = d
		}
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// finalize fills capability chains the file left out or left partial.
func (c *Config) finalize() {
	defs := DefaultCapabilities()
	if c.Capabilities == nil {
		c.Capabilities = make(map[string]CapabilityConfig, len(defs))
	}
	for name, def := range defs {
		cur, ok := c.Capabilities[name]
		if !ok {
			c.Capabilities[name] = def
			continue
		}
		if cur.Providers == nil {
			cur.Providers = def.Providers
		}
		if cur.SuccessTTL == 0 {
			cur.SuccessTTL = def.SuccessTTL
		}
		if cur.ErrorTTL == 0 {
			cur.ErrorTTL = def.ErrorTTL
		}
		if cur.Timeout == 0 {
			cur.Timeout = def.Timeout
		}
		c.Capabilities[name] = cur
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	known := map[string]bool{
		ProviderCoinGecko: true, ProviderFinnhub: true, ProviderReddit: true,
		ProviderWhaleAlert: true, ProviderCoinGeckoTA: true, ProviderAnalytics: true,
		ProviderBlockscout: true, ProviderDemo: true,
	}
	defs := DefaultCapabilities()
	for name, cc := range c.Capabilities {
		if _, ok := defs[name]; !ok {
			return fmt.Errorf("capabilities.%s: unknown capability", name)
		}
		if cc.ErrorTTL >= cc.SuccessTTL {
			return fmt.Errorf("capabilities.%s: error_ttl (%s) must be shorter than success_ttl (%s)", name, cc.ErrorTTL, cc.SuccessTTL)
		}
		if cc.Timeout > c.Report.Deadline {
			return fmt.Errorf("capabilities.%s: timeout (%s) exceeds report.deadline (%s)", name, cc.Timeout, c.Report.Deadline)
		}
		seen := map[string]bool{}
		for i, p := range cc.Providers {
			if !known[p] {
				return fmt.Errorf("capabilities.%s: unknown provider %q", name, p)
			}
			if seen[p] {
				return fmt.Errorf("capabilities.%s: provider %q listed twice", name, p)
			}
			seen[p] = true
			if p == ProviderDemo && i != len(cc.Providers)-1 {
				return fmt.Errorf("capabilities.%s: demo provider must be last", name)
			}
		}
	}

	if c.Events.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.backend=kafka requires kafka.brokers")
	}
	if (c.Events.Backend == "clickhouse" || c.Events.Consume) && c.ClickHouse.Host == "" {
		return fmt.Errorf("events.backend=clickhouse and events.consume require clickhouse.host")
	}
	if c.Prefetch.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("prefetch.enabled requires redis.enabled")
	}
	if c.Events.Consume && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.consume requires kafka.brokers")
	}
	return nil
}

// Token returns identifiers configured for a token key, matched case-insensitively.
func (c *Config) Token(key string) (TokenConfig, bool) {
	for k, v := range c.Tokens {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return TokenConfig{}, false
}
