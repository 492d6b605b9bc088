package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"lead-recon/internal/alerting"
	"lead-recon/internal/metrics"
)

// Check runs one detection pass over the current window and prints what was sent.
func (a *App) Check(ctx context.Context) error {
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

	res, runErr := monitor.RunOnce(ctx)
	fmt.Fprintf(a.Out, "detected %d alert(s), sent %d\n", res.Detected, len(res.Sent))
	if len(res.Sent) > 0 {
		a.printAlerts(res.Sent)
	}
	names := make([]string, 0, len(res.Channels))
	for name := range res.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := "ok"
		if !res.Channels[name] {
			status = "failed"
		}
		fmt.Fprintf(a.Out, "channel %s: %s\n", name, status)
	}
	return runErr
}

// Alerts prints stored alert history, newest first.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := a.newEngine(store, nil).History().List(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if opts.Severity != "" {
		sev, err := alerting.ParseSeverity(opts.Severity)
		if err != nil {
			return err
		}
		kept := alerts[:0]
		for _, al := range alerts {
			if al.Severity == sev {
				kept = append(kept, al)
			}
		}
		alerts = kept
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}
	a.printAlerts(alerts)
	return nil
}

// Ack acknowledges an alert in the stored history.
func (a *App) Ack(ctx context.Context, id string) error {
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	found, err := a.newEngine(store, nil).Acknowledge(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("alert %s not found", id)
	}
	fmt.Fprintf(a.Out, "acknowledged %s\n", id)
	return nil
}

// PruneCache deletes cache entries older than maxAge, or cache.prune_age when zero.
func (a *App) PruneCache(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = a.Config.Cache.PruneAge
	}
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.Prune(ctx, maxAge)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("deleted", n).Dur("max_age", maxAge).Msg("cache pruned")
	fmt.Fprintf(a.Out, "deleted %d cache entr(ies) older than %s\n", n, maxAge)
	return nil
}

func (a *App) printAlerts(alerts []alerting.Alert) {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tID\tSeverity\tType\tCampaign\tAd\tAck\tMessage")
	for _, al := range alerts {
		ack := ""
		if al.Acknowledged {
			ack = "yes"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			al.Timestamp.UTC().Format(time.RFC3339),
			al.ID,
			al.Severity,
			al.Type,
			orDash(al.CampaignName),
			orDash(al.AdName),
			ack,
			sanitizeInline(al.Message),
		)
	}
	writer.Flush()
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
