package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbols        []string `yaml:"symbols" default:"[\"EURUSD\"]" validate:"required,min=1,dive,required"`
	Timeframe      string   `yaml:"timeframe" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 1d"`
	Period         string   `yaml:"period" default:"1d" validate:"oneof=1d 5d 1mo 3mo 6mo 1y"`
	ChartTimeframe string   `yaml:"chart_timeframe" validate:"omitempty,oneof=1m 5m 15m 30m 1h 1d"`

	MarketData struct {
		Provider   string            `yaml:"provider" default:"yahoo" validate:"oneof=yahoo kite static"`
		TTLSeconds int               `yaml:"ttl_seconds" default:"30" validate:"gte=0"`
		BaseURL    string            `yaml:"base_url"`
		Exchange   string            `yaml:"exchange" default:"CDS"`
		SymbolMap  map[string]string `yaml:"symbol_map"`
		Retry      struct {
			MaxAttempts   int `yaml:"max_attempts" default:"3" validate:"gte=1,lte=10"`
			InitialWaitMs int `yaml:"initial_wait_ms" default:"500" validate:"gte=0"`
			MaxWaitMs     int `yaml:"max_wait_ms" default:"4000" validate:"gte=0"`
		} `yaml:"retry"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"market_data"`

	Indicators struct {
		Enabled   []string `yaml:"enabled" default:"[\"rsi\",\"adx\",\"ema\",\"bb\"]"`
		RSIPeriod int      `yaml:"rsi_period" default:"14" validate:"gte=2"`
		ADXPeriod int      `yaml:"adx_period" default:"14" validate:"gte=2"`
		EMAPeriod int      `yaml:"ema_period" default:"20" validate:"gte=2"`
		BBWindow  int      `yaml:"bb_window" default:"20" validate:"gte=2"`
		BBStdDev  float64  `yaml:"bb_stddev" default:"2" validate:"gt=0"`
	} `yaml:"indicators"`

	Signal struct {
		Strategy          string  `yaml:"strategy" default:"rsi" validate:"oneof=rsi bollinger rsi_adx"`
		RSIOversold       float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lte=100"`
		RSIOverbought     float64 `yaml:"rsi_overbought" default:"70" validate:"gte=0,lte=100"`
		ADXTrendThreshold float64 `yaml:"adx_trend_threshold" default:"25" validate:"gte=0,lte=100"`
	} `yaml:"signal"`

	Advisory struct {
		Enabled       bool   `yaml:"enabled" default:"true"`
		RecentBars    int    `yaml:"recent_bars" default:"10" validate:"gte=5,lte=10"`
		PriceDecimals int    `yaml:"price_decimals" default:"5" validate:"gte=1,lte=8"`
		MaxReasonLen  int    `yaml:"max_reason_len" default:"280" validate:"gte=16"`
		Persona       string `yaml:"persona"`
		Fields        struct {
			Signal     string `yaml:"signal" default:"signal"`
			Confidence string `yaml:"confidence" default:"confidence"`
			Reason     string `yaml:"reason" default:"reason"`
		} `yaml:"fields"`
	} `yaml:"advisory"`

	LLM struct {
		Provider       string   `yaml:"provider" default:"gemini" validate:"oneof=gemini openai claude noop"`
		Model          string   `yaml:"model"`
		Models         []string `yaml:"models" default:"[\"gemini-2.0-flash-exp\",\"gemini-1.5-flash\",\"gemini-1.5-pro\"]"`
		MaxTokens      int      `yaml:"max_tokens" default:"256" validate:"gte=16"`
		Temperature    float32  `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
		TimeoutSeconds int      `yaml:"timeout_seconds" default:"30" validate:"gte=1,lte=300"`
		System         string   `yaml:"system"`
		Endpoint       string   `yaml:"endpoint"`
		// RequestsPerMinute throttles oracle calls; 0 disables the limit.
		RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	} `yaml:"llm"`

	Refresh struct {
		Schedule string `yaml:"schedule" default:"@every 60s" validate:"required"`
		Advise   bool   `yaml:"advise" default:"true"`
	} `yaml:"refresh"`

	Journal struct {
		Backend       string `yaml:"backend" default:"jsonl" validate:"oneof=jsonl sqlite noop"`
		Dir           string `yaml:"dir" default:"logs/advisories"`
		SQLitePath    string `yaml:"sqlite_path" default:"data/advisor.db"`
		RetentionDays int    `yaml:"retention_days" default:"7" validate:"gte=0"`
	} `yaml:"journal"`

	News struct {
		Enabled        bool         `yaml:"enabled"`
		MaxHeadlines   int          `yaml:"max_headlines" default:"5" validate:"gte=1,lte=5"`
		CacheMinutes   int          `yaml:"cache_minutes" default:"15" validate:"gte=1"`
		TimeoutSeconds int          `yaml:"timeout_seconds" default:"10" validate:"gte=1"`
		Sources        []NewsSource `yaml:"sources" validate:"dive"`
	} `yaml:"news"`

	Server struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"server"`

	EOD struct {
		Dir       string `yaml:"dir" default:"logs/eod"`
		CutoffUTC string `yaml:"cutoff_utc" default:"21:30" validate:"len=5"`
	} `yaml:"eod"`
}

// NewsSource is a page of headlines scraped with CSS selectors.
// URL may contain {query}, replaced by the escaped search terms for a symbol.
type NewsSource struct {
	Name      string `yaml:"name" validate:"required"`
	URL       string `yaml:"url" validate:"required,url"`
	Container string `yaml:"container" validate:"required"`
	Title     string `yaml:"title" validate:"required"`
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%s: failed %q rule (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Signal.RSIOversold >= c.Signal.RSIOverbought {
		return fmt.Errorf("signal.rsi_oversold (%.1f) must be below signal.rsi_overbought (%.1f)",
			c.Signal.RSIOversold, c.Signal.RSIOverbought)
	}
	if _, err := time.Parse("15:04", c.EOD.CutoffUTC); err != nil {
		return fmt.Errorf("eod.cutoff_utc must be HH:MM, got %q", c.EOD.CutoffUTC)
	}
	if c.Advisory.Fields.Signal == c.Advisory.Fields.Confidence || c.Advisory.Fields.Signal == c.Advisory.Fields.Reason ||
		c.Advisory.Fields.Confidence == c.Advisory.Fields.Reason {
		return errors.New("advisory.fields must be three distinct names")
	}
	return nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return &c
}

// LoadConfig reads path over the defaults, applies environment overrides and validates.
// Explicit zero values in the file win over defaults.
func LoadConfig(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("ADVISOR_SYMBOLS"); v != "" {
		var syms []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				syms = append(syms, strings.ToUpper(s))
			}
		}
		c.Symbols = syms
	}
	if v := os.Getenv("ADVISOR_TIMEFRAME"); v != "" {
		c.Timeframe = v
	}
	if v := os.Getenv("ADVISOR_MARKET_PROVIDER"); v != "" {
		c.MarketData.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ADVISOR_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ADVISOR_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ADVISOR_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MarketData.TTLSeconds = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.MarketData.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.MarketData.Redis.Password = v
	}
}

func (c *Config) TTL() time.Duration {
	return time.Duration(c.MarketData.TTLSeconds) * time.Second
}

// DefaultSystemPrompt frames the oracle as a cautious FX analyst.
const DefaultSystemPrompt = "You are a cautious FX technical analyst. Reply with a single JSON object and nothing else."

// SystemPrompt is llm.system or DefaultSystemPrompt.
func (c *Config) SystemPrompt() string {
	if s := strings.TrimSpace(c.LLM.System); s != "" {
		return s
	}
	return DefaultSystemPrompt
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
