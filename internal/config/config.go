package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/router"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Mail      MailConfig      `mapstructure:"mail"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	BodyLimit       string        `mapstructure:"body_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type DedupConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	TTL         time.Duration `mapstructure:"ttl"`
	InFlightTTL time.Duration `mapstructure:"in_flight_ttl"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

type RateLimitConfig struct {
	RPS       int    `mapstructure:"rps"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	GroupID        string        `mapstructure:"group_id"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
	Workers        int           `mapstructure:"workers"`
}

type AnthropicConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Version      string        `mapstructure:"version"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxBodyChars int           `mapstructure:"max_body_chars"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type NotionConfig struct {
	Token       string        `mapstructure:"token"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Databases   DatabasesConf `mapstructure:"databases"`
	WeekTitle   string        `mapstructure:"week_title_format"`
	WeekRelProp string        `mapstructure:"week_relation_property"`
}

type DatabasesConf struct {
	Events     string `mapstructure:"events"`
	Newsletter string `mapstructure:"newsletter"`
	Inbox      string `mapstructure:"inbox"`
	Weeks      string `mapstructure:"weeks"`
}

type RouteRule struct {
	Marker   string `mapstructure:"marker"`
	Pipeline string `mapstructure:"pipeline"`
}

type RoutingConfig struct {
	Rules []RouteRule `mapstructure:"rules"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type MailProviderConfig struct {
	Name    string        `mapstructure:"name"`
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Path    string        `mapstructure:"path"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type MailConfig struct {
	From string `mapstructure:"from"`
	// APIKey is used by providers that set none of their own.
	APIKey      string               `mapstructure:"api_key"`
	MaxAttempts int                  `mapstructure:"max_attempts"`
	Providers   []MailProviderConfig `mapstructure:"providers"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads embedded defaults, merges user YAML (if the file exists), loads
// an optional .env file and applies env overrides (RELAY_*, dots become
// underscores: RELAY_NOTION_TOKEN sets notion.token).
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	for i := range cfg.Mail.Providers {
		if cfg.Mail.Providers[i].APIKey == "" {
			cfg.Mail.Providers[i].APIKey = cfg.Mail.APIKey
		}
	}
	if _, err := cfg.RouterRules(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RouterRules converts routing.rules into router rules, rejecting unknown
// pipeline names. An empty list means the router defaults.
func (c Config) RouterRules() ([]router.Rule, error) {
	if len(c.Routing.Rules) == 0 {
		return nil, nil
	}
	rules := make([]router.Rule, 0, len(c.Routing.Rules))
	for _, r := range c.Routing.Rules {
		kind, ok := model.ParsePipelineKind(r.Pipeline)
		if !ok {
			return nil, fmt.Errorf("routing rule %q: unknown pipeline %q", r.Marker, r.Pipeline)
		}
		rules = append(rules, router.Rule{Marker: r.Marker, Kind: kind})
	}
	return rules, nil
}

// Presence reports which collaborators have credentials, for /healthz.
func (c Config) Presence() map[string]bool {
	mailReady := false
	for _, p := range c.Mail.Providers {
		if p.Enabled && p.BaseURL != "" && p.APIKey != "" {
			mailReady = true
			break
		}
	}
	return map[string]bool{
		"anthropic":           c.Anthropic.APIKey != "",
		"notion":              c.Notion.Token != "",
		"eventsDatabase":      c.Notion.Databases.Events != "",
		"newsletterDatabase":  c.Notion.Databases.Newsletter != "",
		"inboxDatabase":       c.Notion.Databases.Inbox != "",
		"weeksDatabase":       c.Notion.Databases.Weeks != "",
		"mail":                mailReady && c.Mail.From != "",
		"notificationWebhook": c.Notify.WebhookURL != "",
		"redis":               c.Redis.Addr != "",
		"kafka":               c.Kafka.Enabled && len(c.Kafka.Brokers) > 0,
	}
}
