package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lead-recon/internal/alerting"
	"lead-recon/internal/cache"
	"lead-recon/internal/config"
	"lead-recon/internal/confidence"
	"lead-recon/internal/disposition"
	"lead-recon/internal/fetcher"
	"lead-recon/internal/kpi"
	"lead-recon/internal/mapping"
	"lead-recon/internal/metrics"
	"lead-recon/internal/reconcile"
	"lead-recon/internal/service"
	"lead-recon/internal/storage"
	"lead-recon/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// openCache opens the configured backend. The returned closer is never nil.
func (a *App) openCache(ctx context.Context) (cache.Store, func(), error) {
	switch a.Config.Cache.Driver {
	case "memory":
		return cache.NewMemory(nil), func() {}, nil
	case "postgres":
		if a.Config.Database.AutoMigrate {
			if err := storage.Migrate(a.Config.Database.DSN); err != nil {
				return nil, nil, err
			}
		}
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewCache(pool)
		return store, store.Close, nil
	default:
		return cache.NewSQLite(a.Config.Cache.Path), func() {}, nil
	}
}

func (a *App) retryOptions() fetcher.RetryOptions {
	r := a.Config.Sources.Retry
	return fetcher.RetryOptions{MaxAttempts: r.MaxAttempts, InitialInterval: r.InitialInterval, MaxInterval: r.MaxInterval}
}

func (a *App) newSources() (fetcher.SpendSource, fetcher.DispositionSource, error) {
	src := a.Config.Sources
	userAgent := src.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	meta, err := fetcher.NewMeta(fetcher.MetaOptions{
		BaseURL:         src.Meta.BaseURL,
		APIVersion:      src.Meta.APIVersion,
		AccessToken:     src.Meta.AccessToken,
		AdAccountID:     src.Meta.AdAccountID,
		LeadActionTypes: src.Meta.LeadActionTypes,
		Timeout:         src.Meta.RequestTimeout,
		UserAgent:       userAgent,
		Retry:           a.retryOptions(),
	}, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("sources.meta: %w", err)
	}

	lp, err := fetcher.NewLeadspedia(fetcher.LeadspediaOptions{
		BaseURL:   src.Leadspedia.BaseURL,
		APIKey:    src.Leadspedia.APIKey,
		APISecret: src.Leadspedia.APISecret,
		PageSize:  src.Leadspedia.PageSize,
		MaxPages:  src.Leadspedia.MaxPages,
		Timeout:   src.Leadspedia.RequestTimeout,
		UserAgent: userAgent,
		Retry:     a.retryOptions(),
	}, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("sources.leadspedia: %w", err)
	}
	return meta, lp, nil
}

func (a *App) targets() kpi.Targets {
	return kpi.Targets{ROI: a.Config.KPI.TargetROI, SellRate: a.Config.KPI.TargetSellRate}
}

func (a *App) confidenceThresholds() confidence.Thresholds {
	c := a.Config.Confidence
	t, err := confidence.Thresholds{
		HighSpend:     decimal.NewFromFloat(c.HighSpend),
		HighLeads:     c.HighLeads,
		MediumSpend:   decimal.NewFromFloat(c.MediumSpend),
		MediumLeads:   c.MediumLeads,
		CPLTarget:     decimal.NewFromFloat(c.CPLTarget),
		CPLAcceptable: decimal.NewFromFloat(c.CPLAcceptable),
		SampleTarget:  c.SampleTarget,
	}.Sanitize()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("invalid confidence thresholds, using defaults")
	}
	return t
}

func toThresholds(c config.ThresholdConfig) alerting.Thresholds {
	return alerting.Thresholds{
		MinSellRate:           c.MinSellRate,
		MinROI:                c.MinROI,
		MaxUnsoldTimeMinutes:  c.MaxUnsoldTimeMinutes,
		AlertOnNegativeMargin: c.AlertOnNegativeMargin,
	}
}

func (a *App) thresholdSet() alerting.ThresholdSet {
	cfg := a.Config.Alerting.Thresholds
	set := alerting.ThresholdSet{
		Default:    toThresholds(cfg.Default),
		ByVertical: make(map[string]alerting.Thresholds, len(cfg.ByVertical)),
	}
	for vertical, override := range cfg.ByVertical {
		set.ByVertical[vertical] = toThresholds(override.Resolve(cfg.Default))
	}
	set, replaced := set.Sanitize()
	if len(replaced) > 0 {
		a.Logger.Warn().Strs("entries", replaced).Msg("invalid alert thresholds replaced with defaults")
	}
	return set
}

func (a *App) newService(store cache.Store) (*service.Service, error) {
	spendSrc, dispositionSrc, err := a.newSources()
	if err != nil {
		return nil, err
	}
	return a.serviceWith(spendSrc, dispositionSrc, store), nil
}

func (a *App) serviceWith(spendSrc fetcher.SpendSource, dispositionSrc fetcher.DispositionSource, store cache.Store) *service.Service {
	scope, ok := reconcile.ParseScope(a.Config.Reconcile.Scope)
	if !ok {
		a.Logger.Warn().Str("scope", a.Config.Reconcile.Scope).Msg("unknown reconcile scope, using global")
	}
	targets := a.targets()
	return service.New(spendSrc, dispositionSrc, store, mapping.NewStatic(a.Config.DefaultVertical, a.Config.Mappings), service.Options{
		Scope:       scope,
		Feed:        disposition.ParseFeed(a.Config.Reconcile.Feed),
		AffiliateID: a.Config.Reconcile.AffiliateID,
		CampaignIDs: a.Config.Reconcile.CampaignIDs,
		CacheTTL:    a.Config.Cache.TTL,
		Lookback:    a.Config.Reconcile.Lookback,
		Targets:     targets,
		Diagnose:    kpi.DiagnoseOptions{MinSpend: decimal.NewFromFloat(a.Config.KPI.MinSpend), Targets: targets},
		Confidence:  a.confidenceThresholds(),
	}, a.Logger)
}

func (a *App) newChannels() []alerting.Channel {
	ch := a.Config.Alerting.Channels
	channels := []alerting.Channel{
		alerting.NewEmailChannel(alerting.EmailConfig{
			Host:     ch.Email.Host,
			Port:     ch.Email.Port,
			Username: ch.Email.Username,
			Password: ch.Email.Password,
			From:     ch.Email.From,
			To:       ch.Email.To,
			UseTLS:   ch.Email.UseTLS,
			Timeout:  ch.Email.Timeout,
		}, a.Logger),
		alerting.NewSlackChannel(ch.Slack.WebhookURL, ch.Slack.Timeout, a.Logger),
	}
	if ch.Telegram.Enabled {
		channels = append(channels, alerting.NewTelegramChannel(ch.Telegram.BotToken, ch.Telegram.ChatID, ch.Telegram.APIBase, ch.Telegram.Timeout, a.Logger))
	}
	if ch.Dashboard.Enabled {
		channels = append(channels, alerting.NewDashboardChannel(ch.Dashboard.MaxAlerts))
	}
	return channels
}

func (a *App) newEngine(store cache.Store, rec alerting.Recorder) *alerting.Engine {
	cfg := a.Config.Alerting
	history := alerting.NewHistory(store, alerting.HistoryOptions{
		Key:   cfg.History.Key,
		TTL:   cfg.History.TTL,
		Limit: cfg.History.Limit,
	}, a.Logger)

	opts := []alerting.EngineOption{alerting.WithRecentSet(alerting.NewRecentSet(cfg.RecentWindow, nil))}
	if rec != nil {
		opts = append(opts, alerting.WithRecorder(rec))
	}
	return alerting.NewEngine(alerting.NewDetector(a.thresholdSet()), history, a.newChannels(), a.Logger, opts...)
}

func (a *App) newMonitor(engine *alerting.Engine, svc *service.Service) (*alerting.Monitor, error) {
	return alerting.NewMonitor(engine, svc.MatchedRows, alerting.MonitorOptions{
		Interval:    a.Config.Alerting.CheckInterval,
		StopTimeout: a.Config.Alerting.StopTimeout,
		Source:      "reconcile",
	}, a.Logger)
}

// Run executes the alert monitor in the foreground until interrupted.
func (a *App) Run(ctx context.Context) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting.enabled is false; nothing to run")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	svc, err := a.newService(m.InstrumentCache(store))
	if err != nil {
		return err
	}
	monitor, err := a.newMonitor(a.newEngine(store, m), svc)
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Alerting.CheckInterval).Msg("starting alert monitor")
	err = monitor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert monitor stopped")
	return nil
}

// ExportOptions hold parameters for exporting matched rows.
type ExportOptions struct {
	Window  *service.Window
	PNGPath string
	CSVPath string
	MaxRows int
}

// ReportOptions configure the report command.
type ReportOptions struct {
	Window    *service.Window
	Compare   bool
	Dimension string
	JSON      bool
}

// AlertsOptions configure the alerts listing.
type AlertsOptions struct {
	Limit    int
	Severity string
}

// BackfillOptions configure cache warming over past days.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}
