package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// AccessConfig controls tier resolution and daily quota enforcement.
type AccessConfig struct {
	// OwnerID selects the Owner tier for the matching Telegram user id.
	OwnerID int64 `yaml:"owner_id" envconfig:"OWNER_ID"`
	// PremiumTokens is the fixed allow-list of redeemable premium tokens.
	PremiumTokens []string `yaml:"premium_tokens" envconfig:"PREMIUM_TOKENS"`

	FreeDailyLimit    int `yaml:"free_daily_limit" envconfig:"FREE_DAILY_LIMIT"`
	PremiumDailyLimit int `yaml:"premium_daily_limit" envconfig:"PREMIUM_DAILY_LIMIT"`
	// PremiumGrantHours is how long a redeemed token keeps premium active.
	PremiumGrantHours int `yaml:"premium_grant_hours" envconfig:"PREMIUM_GRANT_HOURS"`

	// Timezone names the location used for the calendar-day usage reset.
	// Empty or "Local" keeps server-local semantics.
	Timezone string `yaml:"timezone" envconfig:"ACCESS_TIMEZONE"`

	// Location is resolved from Timezone during Normalize.
	Location *time.Location `yaml:"-" envconfig:"-"`
}

// IdentityConfig points at the external identity provider used for /login.
type IdentityConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"IDENTITY_BASE_URL"`
	// CodeLength is the fixed verification code digit count.
	CodeLength     int `yaml:"code_length" envconfig:"IDENTITY_CODE_LENGTH"`
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"IDENTITY_TIMEOUT_SECONDS"`
}

// FetcherConfig points at the external content fetch service.
type FetcherConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"FETCHER_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"FETCHER_TIMEOUT_SECONDS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
// Database settings live in core/database and are aggregated by the app config.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Access    AccessConfig    `yaml:"access"`
	Identity  IdentityConfig  `yaml:"identity"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeAccess(&cfg.Access); err != nil {
		return err
	}

	if cfg.Identity.CodeLength <= 0 {
		cfg.Identity.CodeLength = 5
	}
	if cfg.Identity.TimeoutSeconds <= 0 {
		cfg.Identity.TimeoutSeconds = 30
	}
	if cfg.Fetcher.TimeoutSeconds <= 0 {
		cfg.Fetcher.TimeoutSeconds = 30
	}

	return nil
}

func normalizeAccess(ac *AccessConfig) error {
	if ac.FreeDailyLimit < 0 || ac.PremiumDailyLimit < 0 {
		return fmt.Errorf("access daily limits must be >= 0")
	}
	if ac.FreeDailyLimit == 0 {
		ac.FreeDailyLimit = 10
	}
	if ac.PremiumDailyLimit == 0 {
		ac.PremiumDailyLimit = 100
	}
	if ac.PremiumDailyLimit < ac.FreeDailyLimit {
		return fmt.Errorf("access.premium_daily_limit must be >= access.free_daily_limit")
	}
	if ac.PremiumGrantHours <= 0 {
		ac.PremiumGrantHours = 3
	}

	tokens := ac.PremiumTokens[:0]
	for _, tok := range ac.PremiumTokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	ac.PremiumTokens = tokens

	tz := strings.TrimSpace(ac.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		ac.Location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid access.timezone %q: %w", ac.Timezone, err)
	}
	ac.Location = loc
	return nil
}
