package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Loaded from YAML, then sensitive
// values are overridden from environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode           string  `yaml:"mode"` // "PAPER" or "LIVE"
		InitialCapital float64 `yaml:"initial_capital"`
		CommissionRate float64 `yaml:"commission_rate"`
		SlippageBps    int64   `yaml:"slippage_bps"`
		LotSize        float64 `yaml:"lot_size"`

		StopLoss struct {
			Enabled     bool    `yaml:"enabled"`
			DistancePct float64 `yaml:"distance_pct"`
			// OnPartialFill places the protective order as soon as the first
			// partial fill lands instead of waiting for the full fill.
			OnPartialFill bool `yaml:"on_partial_fill"`
		} `yaml:"stop_loss"`
	} `yaml:"trading"`

	Risk struct {
		MaxPositionPct     float64 `yaml:"max_position_pct"`
		MaxOpenPositions   int     `yaml:"max_open_positions"`
		MaxOrdersPerMinute int     `yaml:"max_orders_per_minute"`
		MaxOrdersPerHour   int     `yaml:"max_orders_per_hour"`
		MaxDailyLoss       float64 `yaml:"max_daily_loss"`

		Sizing struct {
			Mode            string  `yaml:"mode"` // "fixed" or "kelly"
			RiskPerTrade    float64 `yaml:"risk_per_trade"`
			WinRate         float64 `yaml:"win_rate"`
			WinLossRatio    float64 `yaml:"win_loss_ratio"`
			KellyMultiplier float64 `yaml:"kelly_multiplier"`
		} `yaml:"sizing"`
	} `yaml:"risk"`

	Retry struct {
		MaxRetries     int     `yaml:"max_retries"`
		InitialDelayMS int     `yaml:"initial_delay_ms"`
		MaxDelayMS     int     `yaml:"max_delay_ms"`
		JitterFrac     float64 `yaml:"jitter_frac"`
	} `yaml:"retry"`

	Venue struct {
		Name                  string `yaml:"name"`
		RestURL               string `yaml:"rest_url"`
		AccessKey             string `yaml:"access_key"`
		SecretKey             string `yaml:"secret_key"`
		SupportsClientOrderID bool   `yaml:"supports_client_order_id"`

		Breaker struct {
			FailureThreshold int `yaml:"failure_threshold"`
			SuccessThreshold int `yaml:"success_threshold"`
			CooldownSec      int `yaml:"cooldown_sec"`
		} `yaml:"breaker"`
	} `yaml:"venue"`

	Quotes struct {
		WSURL   string   `yaml:"ws_url"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"quotes"`

	Storage struct {
		CheckpointIntervalSec int `yaml:"checkpoint_interval_sec"`
		KeepCheckpoints       int `yaml:"keep_checkpoints"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" or "json"
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment overrides
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// RetryPolicy builds the retry policy value injected into the live engine.
func (c *Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if c.Retry.MaxRetries > 0 {
		p.MaxRetries = c.Retry.MaxRetries
	}
	if c.Retry.InitialDelayMS > 0 {
		p.InitialDelay = time.Duration(c.Retry.InitialDelayMS) * time.Millisecond
	}
	if c.Retry.MaxDelayMS > 0 {
		p.MaxDelay = time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
	}
	if c.Retry.JitterFrac > 0 {
		p.JitterFrac = c.Retry.JitterFrac
	}
	return p
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToUpper(c.Trading.Mode)
	if mode != "PAPER" && mode != "LIVE" {
		return fmt.Errorf("trading mode must be PAPER or LIVE, got %q", c.Trading.Mode)
	}
	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if c.Trading.CommissionRate < 0 || c.Trading.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1)")
	}

	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("max position pct must be in (0, 1]")
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be positive")
	}
	if c.Risk.Sizing.Mode != "" && c.Risk.Sizing.Mode != "fixed" && c.Risk.Sizing.Mode != "kelly" {
		return fmt.Errorf("sizing mode must be fixed or kelly, got %q", c.Risk.Sizing.Mode)
	}

	if mode == "LIVE" && c.Venue.RestURL == "" {
		return fmt.Errorf("venue rest_url is required in LIVE mode")
	}
	if len(c.Quotes.Symbols) == 0 {
		return fmt.Errorf("at least one quote symbol is required")
	}

	return nil
}

// overrideWithEnv replaces values from environment variables when present.
// Environment variables take precedence over the config file for secrets.
func overrideWithEnv(cfg *Config) {
	if cfg.Venue.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: venue secret found in config file.")
		fmt.Println("   Recommendation: use environment variables instead:")
		fmt.Println("   - TRADING_VENUE_KEY, TRADING_VENUE_SECRET")
	}

	if key := os.Getenv("TRADING_VENUE_KEY"); key != "" {
		cfg.Venue.AccessKey = key
	}
	if secret := os.Getenv("TRADING_VENUE_SECRET"); secret != "" {
		cfg.Venue.SecretKey = secret
	}
	if mode := os.Getenv("TRADING_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}
}
