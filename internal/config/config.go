package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration. Runtime thresholds live in
// the store, not here.
type Config struct {
	Telegram struct {
		BotToken            string        `yaml:"bot_token" validate:"required"`
		ChatID              string        `yaml:"chat_id" validate:"required"`
		MinReportedDuration time.Duration `yaml:"min_reported_duration" default:"60s"`
	} `yaml:"telegram"`
	Exchange struct {
		BaseURL           string        `yaml:"base_url" default:"https://api.mexc.com/api/v3" validate:"url"`
		Timeout           time.Duration `yaml:"timeout" default:"5s" validate:"gt=0"`
		MaxRetries        int           `yaml:"max_retries" default:"2" validate:"gte=0,lte=10"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"12" validate:"gt=0"`
	} `yaml:"exchange"`
	Engine struct {
		MaxWorkers      int           `yaml:"max_workers" default:"10" validate:"gte=1,lte=64"`
		GraceDelay      time.Duration `yaml:"grace_delay" default:"1s" validate:"gte=0"`
		MessageInterval time.Duration `yaml:"message_interval" default:"1s" validate:"gte=0"`
		MaxDisplay      int           `yaml:"max_display" default:"20" validate:"gte=1"`
		ReportCap       int           `yaml:"report_cap" default:"4000" validate:"gte=200,lte=4096"`
		ResumeLastMode  bool          `yaml:"resume_last_mode"`
	} `yaml:"engine"`
	Store struct {
		Driver     string `yaml:"driver" default:"json" validate:"oneof=json sqlite"`
		Dir        string `yaml:"dir" default:"data"`
		SQLitePath string `yaml:"sqlite_path" default:"data/mexc_pulse.db"`
	} `yaml:"store"`
	Cache struct {
		Driver string        `yaml:"driver" default:"memory" validate:"oneof=memory redis"`
		TTL    time.Duration `yaml:"ttl" default:"2m" validate:"gt=0"`
		Redis  struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"mexcpulse"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"mexc-pulse-events"`
	} `yaml:"kafka"`
	Server struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Maintenance struct {
		CachePurgeCron string `yaml:"cache_purge_cron" default:"0 */5 * * * *"`
		StateFlushCron string `yaml:"state_flush_cron" default:"0 * * * * *"`
		HeartbeatCron  string `yaml:"heartbeat_cron" default:"0 */15 * * * *"`
	} `yaml:"maintenance"`
	Proxy string `yaml:"proxy"`
}

// env lists the variables that override the file. Unset variables leave
// the file value alone.
type env struct {
	BotToken       string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID         string   `envconfig:"TELEGRAM_CHAT_ID"`
	Proxy          string   `envconfig:"HTTPS_PROXY"`
	ExchangeURL    string   `envconfig:"MEXC_BASE_URL"`
	StoreDriver    string   `envconfig:"STORE_DRIVER"`
	CacheDriver    string   `envconfig:"CACHE_DRIVER"`
	RedisAddr      string   `envconfig:"REDIS_ADDR"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	HTTPAddr       string   `envconfig:"HTTP_ADDR"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	ResumeLastMode *bool    `envconfig:"RESUME_LAST_MODE"`
}

var validate = validator.New()

// Load fills defaults, then reads config from a YAML file, then applies
// .env and environment overrides. A missing file is not an error, and a
// value set explicitly to zero in the file stays zero.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	e.apply(cfg)
	return cfg, nil
}

func (e env) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.BotToken, e.BotToken)
	set(&cfg.Telegram.ChatID, e.ChatID)
	set(&cfg.Proxy, e.Proxy)
	set(&cfg.Exchange.BaseURL, e.ExchangeURL)
	set(&cfg.Store.Driver, e.StoreDriver)
	set(&cfg.Cache.Driver, e.CacheDriver)
	set(&cfg.Cache.Redis.Addr, e.RedisAddr)
	set(&cfg.Cache.Redis.Password, e.RedisPassword)
	set(&cfg.Server.Addr, e.HTTPAddr)
	set(&cfg.Log.Level, strings.ToLower(e.LogLevel))
	if len(e.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = e.KafkaBrokers
	}
	if e.ResumeLastMode != nil {
		cfg.Engine.ResumeLastMode = *e.ResumeLastMode
	}
}

// Validate checks that all required fields are set and within bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s fails %q", strings.ToLower(fe.Namespace()), strings.TrimSpace(fe.Tag()+" "+fe.Param()))
		}
		return err
	}
	return nil
}
