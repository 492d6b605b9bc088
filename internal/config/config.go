package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"lead-recon/internal/logging"
	"lead-recon/internal/mapping"
)

// MinCheckInterval is the shortest alert polling interval accepted at startup.
const MinCheckInterval = 60 * time.Second

// MaxHistoryLimit caps the number of alerts kept in history.
const MaxHistoryLimit = 1000

// Config materialises application configuration.
type Config struct {
	App             AppConfig          `mapstructure:"app"`
	Logging         logging.Config     `mapstructure:"logging"`
	Cache           CacheConfig        `mapstructure:"cache"`
	Database        DatabaseConfig     `mapstructure:"database"`
	Sources         SourcesConfig      `mapstructure:"sources"`
	Reconcile       ReconcileConfig    `mapstructure:"reconcile"`
	KPI             KPIConfig          `mapstructure:"kpi"`
	Confidence      ConfidenceConfig   `mapstructure:"confidence"`
	Alerting        AlertingConfig     `mapstructure:"alerting"`
	DefaultVertical string             `mapstructure:"default_vertical"`
	Mappings        []mapping.Campaign `mapstructure:"mappings"`
	HTTP            HTTPConfig         `mapstructure:"http"`
	Export          ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Driver   string        `mapstructure:"driver"`
	Path     string        `mapstructure:"path"`
	TTL      time.Duration `mapstructure:"ttl"`
	PruneAge time.Duration `mapstructure:"prune_age"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the postgres cache driver.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SourcesConfig covers upstream APIs.
type SourcesConfig struct {
	Meta       MetaConfig       `mapstructure:"meta"`
	Leadspedia LeadspediaConfig `mapstructure:"leadspedia"`
	Retry      RetryConfig      `mapstructure:"retry"`
	UserAgent  string           `mapstructure:"user_agent"`
}

// MetaConfig captures ad-platform insights access.
type MetaConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIVersion      string        `mapstructure:"api_version"`
	AccessToken     string        `mapstructure:"access_token"`
	AdAccountID     string        `mapstructure:"ad_account_id"`
	LeadActionTypes []string      `mapstructure:"lead_action_types"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// LeadspediaConfig captures lead-distribution access.
type LeadspediaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	PageSize       int           `mapstructure:"page_size"`
	MaxPages       int           `mapstructure:"max_pages"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetryConfig bounds upstream retries.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// ReconcileConfig controls how dispositions are matched to spend.
type ReconcileConfig struct {
	Scope       string        `mapstructure:"scope"`
	Feed        string        `mapstructure:"feed"`
	AffiliateID string        `mapstructure:"affiliate_id"`
	Lookback    time.Duration `mapstructure:"lookback"`
	CampaignIDs []string      `mapstructure:"campaign_ids"`
}

// KPIConfig holds profitability targets.
type KPIConfig struct {
	TargetROI      float64 `mapstructure:"target_roi"`
	TargetSellRate float64 `mapstructure:"target_sell_rate"`
	MinSpend       float64 `mapstructure:"min_spend"`
}

// ConfidenceConfig holds classifier thresholds.
type ConfidenceConfig struct {
	HighSpend     float64 `mapstructure:"high_spend"`
	HighLeads     int     `mapstructure:"high_leads"`
	MediumSpend   float64 `mapstructure:"medium_spend"`
	MediumLeads   int     `mapstructure:"medium_leads"`
	CPLTarget     float64 `mapstructure:"cpl_target"`
	CPLAcceptable float64 `mapstructure:"cpl_acceptable"`
	SampleTarget  int     `mapstructure:"sample_target"`
}

// AlertingConfig defines detection thresholds, polling and routing.
type AlertingConfig struct {
	Enabled       bool             `mapstructure:"enabled"`
	CheckInterval time.Duration    `mapstructure:"check_interval"`
	StopTimeout   time.Duration    `mapstructure:"stop_timeout"`
	RecentWindow  time.Duration    `mapstructure:"recent_window"`
	History       HistoryConfig    `mapstructure:"history"`
	Thresholds    ThresholdsConfig `mapstructure:"thresholds"`
	Channels      ChannelsConfig   `mapstructure:"channels"`
}

// HistoryConfig bounds the stored alert history.
type HistoryConfig struct {
	Key   string        `mapstructure:"key"`
	Limit int           `mapstructure:"limit"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// ThresholdsConfig is the default alert threshold set plus per-vertical overrides.
type ThresholdsConfig struct {
	Default    ThresholdConfig                     `mapstructure:"default"`
	ByVertical map[string]VerticalThresholdsConfig `mapstructure:"by_vertical"`
}

// ThresholdConfig is one complete threshold set.
type ThresholdConfig struct {
	MinSellRate           float64 `mapstructure:"min_sell_rate"`
	MinROI                float64 `mapstructure:"min_roi"`
	MaxUnsoldTimeMinutes  int     `mapstructure:"max_unsold_time_minutes"`
	AlertOnNegativeMargin bool    `mapstructure:"alert_on_negative_margin"`
}

// VerticalThresholdsConfig overrides individual default fields; nil fields inherit.
type VerticalThresholdsConfig struct {
	MinSellRate           *float64 `mapstructure:"min_sell_rate"`
	MinROI                *float64 `mapstructure:"min_roi"`
	MaxUnsoldTimeMinutes  *int     `mapstructure:"max_unsold_time_minutes"`
	AlertOnNegativeMargin *bool    `mapstructure:"alert_on_negative_margin"`
}

// Resolve merges the override onto base.
func (v VerticalThresholdsConfig) Resolve(base ThresholdConfig) ThresholdConfig {
	out := base
	if v.MinSellRate != nil {
		out.MinSellRate = *v.MinSellRate
	}
	if v.MinROI != nil {
		out.MinROI = *v.MinROI
	}
	if v.MaxUnsoldTimeMinutes != nil {
		out.MaxUnsoldTimeMinutes = *v.MaxUnsoldTimeMinutes
	}
	if v.AlertOnNegativeMargin != nil {
		out.AlertOnNegativeMargin = *v.AlertOnNegativeMargin
	}
	return out
}

// ChannelsConfig lists the notification channels.
type ChannelsConfig struct {
	Email     EmailConfig     `mapstructure:"email"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// EmailConfig describes SMTP delivery.
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	To       string        `mapstructure:"to"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SlackConfig describes the incoming webhook.
type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelegramConfig describes Telegram bot delivery.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DashboardConfig sizes the in-memory alert buffer.
type DashboardConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	MaxAlerts int  `mapstructure:"max_alerts"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows     int `mapstructure:"max_rows"`
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "leadrecon")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "leadrecon_cache.db")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.prune_age", "168h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("sources.meta.base_url", "https://graph.facebook.com")
	v.SetDefault("sources.meta.api_version", "v24.0")
	v.SetDefault("sources.meta.request_timeout", "30s")
	v.SetDefault("sources.leadspedia.base_url", "https://api.leadspedia.com/core/v2")
	v.SetDefault("sources.leadspedia.page_size", 500)
	v.SetDefault("sources.leadspedia.max_pages", 100)
	v.SetDefault("sources.leadspedia.request_timeout", "30s")
	v.SetDefault("sources.user_agent", "")
	v.SetDefault("sources.retry.max_attempts", 4)
	v.SetDefault("sources.retry.initial_interval", "500ms")
	v.SetDefault("sources.retry.max_interval", "8s")

	v.SetDefault("reconcile.scope", "global")
	v.SetDefault("reconcile.feed", "all")
	v.SetDefault("reconcile.lookback", "24h")

	v.SetDefault("kpi.target_roi", 20.0)
	v.SetDefault("kpi.target_sell_rate", 95.0)
	v.SetDefault("kpi.min_spend", 50.0)

	v.SetDefault("confidence.high_spend", 500.0)
	v.SetDefault("confidence.high_leads", 30)
	v.SetDefault("confidence.medium_spend", 250.0)
	v.SetDefault("confidence.medium_leads", 15)
	v.SetDefault("confidence.cpl_target", 30.0)
	v.SetDefault("confidence.cpl_acceptable", 45.0)
	v.SetDefault("confidence.sample_target", 50)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.check_interval", "300s")
	v.SetDefault("alerting.stop_timeout", "5s")
	v.SetDefault("alerting.recent_window", "1h")
	v.SetDefault("alerting.history.key", "alert_history")
	v.SetDefault("alerting.history.limit", 1000)
	v.SetDefault("alerting.history.ttl", "168h")
	v.SetDefault("alerting.thresholds.default.min_sell_rate", 95.0)
	v.SetDefault("alerting.thresholds.default.min_roi", 20.0)
	v.SetDefault("alerting.thresholds.default.max_unsold_time_minutes", 30)
	v.SetDefault("alerting.thresholds.default.alert_on_negative_margin", true)
	v.SetDefault("alerting.channels.email.port", 587)
	v.SetDefault("alerting.channels.email.use_tls", true)
	v.SetDefault("alerting.channels.email.timeout", "30s")
	v.SetDefault("alerting.channels.slack.timeout", "10s")
	v.SetDefault("alerting.channels.telegram.enabled", false)
	v.SetDefault("alerting.channels.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.channels.telegram.timeout", "10s")
	v.SetDefault("alerting.channels.dashboard.enabled", true)
	v.SetDefault("alerting.channels.dashboard.max_alerts", 100)

	v.SetDefault("default_vertical", "default")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("export.max_rows", 100000)
	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate rejects configuration the process cannot start with. Threshold
// values are not checked here; invalid ones fall back to defaults at wiring.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres cache driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache.driver %q (want sqlite, postgres or memory)", c.Cache.Driver)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	switch strings.ToLower(c.Reconcile.Scope) {
	case "global", "campaign":
	default:
		return fmt.Errorf("reconcile.scope must be global or campaign, got %q", c.Reconcile.Scope)
	}
	if c.Reconcile.Lookback <= 0 {
		return fmt.Errorf("reconcile.lookback must be greater than zero")
	}
	if c.Alerting.CheckInterval < MinCheckInterval {
		return fmt.Errorf("alerting.check_interval must be at least %s, got %s", MinCheckInterval, c.Alerting.CheckInterval)
	}
	if l := c.Alerting.History.Limit; l <= 0 || l > MaxHistoryLimit {
		return fmt.Errorf("alerting.history.limit must be between 1 and %d, got %d", MaxHistoryLimit, l)
	}
	if t := c.Alerting.Channels.Telegram; t.Enabled {
		if t.BotToken == "" {
			return fmt.Errorf("alerting.channels.telegram.bot_token is required when telegram is enabled")
		}
		if t.ChatID == "" {
			return fmt.Errorf("alerting.channels.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}
