package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/dedupe"
)

// DefaultPassTimeout bounds a pass when Config.PassTimeout is unset.
const DefaultPassTimeout = 2 * time.Minute

type Config struct {
	// PassTimeout bounds every blocking call of a single pass.
	PassTimeout time.Duration
}

// Runner executes passes of a watch against one seen-set store. Passes are
// sequential: a runner never works on two listings at once.
type Runner struct {
	logger *slog.Logger
	store  dedupe.SeenStore
	config Config
	tracer trace.Tracer
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, store dedupe.SeenStore) *Runner {
	return NewWithConfig(logger, store, Config{})
}

func NewWithConfig(logger *slog.Logger, store dedupe.SeenStore, cfg Config) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	return &Runner{
		logger: logger,
		store:  store,
		config: cfg,
		tracer: otel.Tracer("dealwatch/runner"),
	}
}

// Start runs a pass on every tick of the watch's triggers until ctx is done.
// A single goroutine consumes the ticks, so passes never overlap; ticks that
// arrive during a pass are dropped.
func (r *Runner) Start(ctx context.Context, watch *core.Watch) error {
	if err := r.validate(watch); err != nil {
		return err
	}
	if len(watch.Triggers) == 0 {
		return fmt.Errorf("watch %s has no schedule", watch.ID)
	}

	ticks := make(chan core.TriggerEvent, 1)
	for _, trigger := range watch.Triggers {
		if trigger == nil {
			continue
		}
		events, err := trigger.Start(ctx, watch.ID)
		if err != nil {
			return fmt.Errorf("start trigger %s: %w", trigger.Name(), err)
		}
		r.wg.Add(1)
		go r.forward(ctx, events, ticks)
	}

	r.wg.Add(1)
	go r.listen(ctx, watch, ticks)
	r.logger.Info("Watch scheduled", slog.String("watch_id", watch.ID), slog.Int("triggers", len(watch.Triggers)))
	return nil
}

// Wait blocks until the goroutines started by Start have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) forward(ctx context.Context, events <-chan core.TriggerEvent, ticks chan<- core.TriggerEvent) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			select {
			case ticks <- event:
			default:
				r.logger.Debug("Dropping tick while a pass is running", slog.String("watch_id", event.WatchID))
			}
		}
	}
}

func (r *Runner) listen(ctx context.Context, watch *core.Watch, ticks <-chan core.TriggerEvent) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ticks:
			r.logger.Info("Trigger event", slog.String("watch_id", event.WatchID), slog.Time("time", event.Timestamp))
			if _, err := r.RunOnce(ctx, watch); err != nil {
				r.logger.Error("Pass failed", slog.String("watch_id", watch.ID), slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs one pass: fetch, then for every listing in source order
// check the seen-set, filter, notify and mark seen. Errors from the store
// schema, seen lookups or the fetch end the pass; notify and mark failures are
// recorded on the returned run and the pass continues.
func (r *Runner) RunOnce(ctx context.Context, watch *core.Watch) (*core.Run, error) {
	if err := r.validate(watch); err != nil {
		return nil, err
	}
	run := &core.Run{
		ID:        fmt.Sprintf("run-%d", time.Now().UnixNano()),
		WatchID:   watch.ID,
		StartedAt: time.Now().UTC(),
		Status:    core.RunStatusRunning,
	}

	ctx = core.WithLogger(ctx, r.logger)
	ctx = core.WithWatchID(ctx, watch.ID)
	ctx = core.WithRunID(ctx, run.ID)
	ctx, cancel := context.WithTimeout(ctx, r.config.PassTimeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "dealwatch.pass", trace.WithAttributes(
		attribute.String("watch.id", watch.ID),
		attribute.String("watch.source", watch.Source),
		attribute.String("run.id", run.ID),
	))
	defer span.End()
	logger := core.LoggerFromContext(ctx)

	if err := r.store.EnsureSchema(ctx); err != nil {
		return r.fail(span, run, err)
	}

	blocks, err := r.fetch(ctx, watch)
	if err != nil {
		return r.fail(span, run, err)
	}
	run.Fetched = len(blocks)

	headerSent := false
	for _, block := range blocks {
		seen, err := r.store.HasSeen(ctx, block.Link)
		if err != nil {
			return r.fail(span, run, err)
		}
		if seen {
			run.AlreadySeen++
			logger.Debug("Skipping seen listing", slog.String("link", block.Link))
			continue
		}
		run.Blocks = append(run.Blocks, block)

		before := len(block.Errors)
		matched, err := watch.Filter.Evaluate(ctx, block)
		if err != nil {
			block.Errors = append(block.Errors, core.NewProcessError(watch.Filter.Name(), core.StageFilter, block.Link, err))
			matched = false
		}
		run.Errors = append(run.Errors, block.Errors[before:]...)
		if !matched {
			logger.Debug("Listing does not match", slog.String("link", block.Link), slog.String("title", block.Title))
			continue
		}
		run.Matched++

		if !headerSent {
			headerSent = true
			r.sendHeader(ctx, watch, run)
		}
		if r.notify(ctx, watch, block, run) {
			block.Notified = true
			run.Notified++
		}

		// Marked even when a send failed.
		if err := r.store.MarkSeen(ctx, block.Link); err != nil {
			run.MarkFailures++
			perr := core.NewProcessError("seen_store", core.StageDedupe, block.Link, err)
			block.Errors = append(block.Errors, perr)
			run.Errors = append(run.Errors, perr)
			logger.Error("Failed to mark listing seen", slog.String("link", block.Link), slog.String("error", err.Error()))
		}
	}

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	run.Status = core.RunStatusCompleted
	span.SetAttributes(
		attribute.Int("run.fetched", run.Fetched),
		attribute.Int("run.matched", run.Matched),
		attribute.Int("run.notified", run.Notified),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("Pass complete",
		slog.Int("fetched", run.Fetched),
		slog.Int("already_seen", run.AlreadySeen),
		slog.Int("matched", run.Matched),
		slog.Int("notified", run.Notified),
		slog.Int("notify_failures", run.NotifyFailures),
		slog.Int("mark_failures", run.MarkFailures),
		slog.Duration("elapsed", completedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

func (r *Runner) validate(watch *core.Watch) error {
	if watch == nil {
		return fmt.Errorf("watch is required")
	}
	if r.store == nil {
		return fmt.Errorf("seen store is required")
	}
	if len(watch.Sources) == 0 {
		return fmt.Errorf("watch %s has no sources", watch.ID)
	}
	if watch.Filter == nil {
		return fmt.Errorf("watch %s has no filter", watch.ID)
	}
	if len(watch.Notifiers) == 0 {
		return fmt.Errorf("watch %s has no notifiers", watch.ID)
	}
	return nil
}

// fetch concatenates the listings of every source in configured order. Any
// source failure fails the whole fetch.
func (r *Runner) fetch(ctx context.Context, watch *core.Watch) ([]*core.ListingBlock, error) {
	ctx, span := r.tracer.Start(ctx, "dealwatch.fetch")
	defer span.End()

	blocks := []*core.ListingBlock{}
	for _, source := range watch.Sources {
		if source == nil {
			continue
		}
		fetched, err := source.Fetch(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("source %s: %w", source.Name(), err)
		}
		blocks = append(blocks, fetched...)
	}
	span.SetAttributes(attribute.Int("listings", len(blocks)))
	return blocks, nil
}

func (r *Runner) sendHeader(ctx context.Context, watch *core.Watch, run *core.Run) {
	logger := core.LoggerFromContext(ctx)
	for _, notifier := range watch.Notifiers {
		if err := notifier.NotifyHeader(ctx); err != nil {
			run.NotifyFailures++
			run.Errors = append(run.Errors, core.NewProcessError(notifier.Name(), core.StageNotify, "header", err))
			logger.Warn("Failed to send batch header", slog.String("notifier", notifier.Name()), slog.String("error", err.Error()))
		}
	}
}

// notify hands the listing to every notifier and reports whether all of them
// delivered it.
func (r *Runner) notify(ctx context.Context, watch *core.Watch, block *core.ListingBlock, run *core.Run) bool {
	ctx, span := r.tracer.Start(ctx, "dealwatch.notify", trace.WithAttributes(attribute.String("listing.link", block.Link)))
	defer span.End()
	logger := core.LoggerFromContext(ctx)

	delivered := true
	for _, notifier := range watch.Notifiers {
		if err := notifier.Notify(ctx, block); err != nil {
			delivered = false
			run.NotifyFailures++
			perr := core.NewProcessError(notifier.Name(), core.StageNotify, block.Link, err)
			block.Errors = append(block.Errors, perr)
			run.Errors = append(run.Errors, perr)
			span.RecordError(err)
			logger.Warn("Failed to send listing", slog.String("notifier", notifier.Name()), slog.String("link", block.Link), slog.String("error", err.Error()))
			continue
		}
		logger.Info("Sent listing", slog.String("notifier", notifier.Name()), slog.String("title", block.Title), slog.String("price", block.Price.String()))
	}
	if !delivered {
		span.SetStatus(codes.Error, "notification failed")
	}
	return delivered
}

func (r *Runner) fail(span trace.Span, run *core.Run, err error) (*core.Run, error) {
	run.Status = core.RunStatusFailed
	if errors.Is(err, context.Canceled) {
		run.Status = core.RunStatusCancelled
	}
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return run, err
}
