// Package scheduler wraps robfig/cron to run the periodic jobs: the
// daily spend digest and the run log retention sweep.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/store"
)

// Notifier pushes human-facing alerts.
type Notifier interface {
	Send(event string, payload interface{})
}

// EventSink receives lifecycle events for live observers.
type EventSink interface {
	Broadcast(event string, data interface{})
}

// Config holds the cron expressions (6-field, with seconds) and the
// fallback retention window in days.
type Config struct {
	DigestCron    string
	RetentionCron string
	RetentionDays int
}

// Engine manages the cron jobs.
type Engine struct {
	cron     *cron.Cron
	database *store.DB
	notify   Notifier
	events   EventSink
	cfg      Config
}

// New creates a new cron-based Engine. notify and events may be nil.
func New(database *store.DB, notify Notifier, events EventSink, cfg Config) *Engine {
	return &Engine{
		cron:     cron.New(cron.WithSeconds()),
		database: database,
		notify:   notify,
		events:   events,
		cfg:      cfg,
	}
}

// Start registers the jobs and begins the cron engine.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.addJob("digest", e.cfg.DigestCron, e.digest); err != nil {
		return fmt.Errorf("scheduler.Start: %w", err)
	}
	if err := e.addJob("retention", e.cfg.RetentionCron, e.retention); err != nil {
		return fmt.Errorf("scheduler.Start: %w", err)
	}
	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.cron.Stop()
	}()
	return nil
}

func (e *Engine) addJob(name, expr string, fn func()) error {
	if expr == "" {
		return nil
	}
	if _, err := e.cron.AddFunc(expr, fn); err != nil {
		return fmt.Errorf("job %s: parse cron %q: %w", name, expr, err)
	}
	return nil
}

// digest summarizes the last 24 hours of runs and fans the summary out.
// The digest_enabled setting can switch it off without a restart.
func (e *Engine) digest() {
	if e.database.GetSetting("digest_enabled", "1") != "1" {
		return
	}
	ctx := context.Background()
	stats, err := e.database.StatsSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		log.Warn().Err(err).Msg("digest stats query failed")
		return
	}
	summary := fmt.Sprintf(
		"Runs: %d\nSpend: %s\nEscalated: %d\nErrors: %d\nOver budget: %d",
		stats.Runs, orchestrator.FormatCost(stats.TotalCost),
		stats.Escalated, stats.Errors, stats.OverBudget)

	log.Info().
		Int("runs", stats.Runs).
		Float64("spend", stats.TotalCost).
		Msg("daily digest")
	if e.notify != nil {
		e.notify.Send("digest.daily", summary)
	}
	if e.events != nil {
		e.events.Broadcast("digest.daily", stats)
	}
}

// retention deletes runs older than the retention window. The window
// comes from the retention_days setting, falling back to configuration;
// zero disables the sweep.
func (e *Engine) retention() {
	days := e.cfg.RetentionDays
	if v := e.database.GetSetting("retention_days", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			days = n
		}
	}
	if days <= 0 {
		return
	}
	ctx := context.Background()
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := e.database.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Int("days", days).Msg("retention sweep")
	}
}
