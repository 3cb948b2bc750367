package snapshot

import (
	"context"
	"log/slog"

	"github.com/bakkerme/dealwatch/internal/core"
)

// SourceWrapper records or replays the listings of a source. Restore skips the
// wrapped source entirely.
type SourceWrapper struct {
	core.SourceProcessor
	snapshot *core.SnapshotConfig
}

func (w *SourceWrapper) SnapshotConfig() *core.SnapshotConfig {
	return w.snapshot
}

func (w *SourceWrapper) Fetch(ctx context.Context) ([]*core.ListingBlock, error) {
	logger := core.LoggerFromContext(ctx)
	if w.snapshot.Restore {
		blocks, err := Load(w.snapshot.Path)
		if err != nil {
			return nil, err
		}
		watchID := core.WatchIDFromContext(ctx)
		for _, b := range blocks {
			b.WatchID = watchID
			b.Match = nil
			b.Notified = false
			b.Errors = nil
		}
		logger.Info("Restored listings from snapshot", slog.String("source", w.Name()), slog.String("path", w.snapshot.Path), slog.Int("listings", len(blocks)))
		return blocks, nil
	}

	blocks, err := w.SourceProcessor.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if w.snapshot.Snapshot {
		if err := Save(w.snapshot.Path, w.Name(), blocks); err != nil {
			logger.Warn("Failed to save snapshot", slog.String("path", w.snapshot.Path), slog.String("error", err.Error()))
		}
	}
	return blocks, nil
}

func WrapSource(processor core.SourceProcessor, cfg *core.SnapshotConfig) core.SourceProcessor {
	if processor == nil {
		return nil
	}
	if cfg == nil || (!cfg.Snapshot && !cfg.Restore) {
		return processor
	}
	return &SourceWrapper{SourceProcessor: processor, snapshot: cfg}
}
