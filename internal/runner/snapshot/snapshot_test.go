package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bakkerme/dealwatch/internal/core"
)

type countingSource struct {
	calls  int
	blocks []*core.ListingBlock
	err    error
}

func (s *countingSource) Name() string    { return "html" }
func (s *countingSource) Validate() error { return nil }
func (s *countingSource) Fetch(context.Context) ([]*core.ListingBlock, error) {
	s.calls++
	return s.blocks, s.err
}

func TestWrapSourceSavesThenRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "ebay.json")
	live := &countingSource{blocks: []*core.ListingBlock{{
		Source: "ebay",
		Title:  "Thermoball Jacket",
		Link:   "https://www.ebay.com/itm/1",
		Price:  decimal.RequireFromString("25.5"),
	}}}

	recorder := WrapSource(live, &core.SnapshotConfig{Snapshot: true, Path: path})
	if _, err := recorder.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch with snapshot failed: %v", err)
	}
	if live.calls != 1 {
		t.Fatalf("expected live fetch, got %d calls", live.calls)
	}

	replay := WrapSource(live, &core.SnapshotConfig{Restore: true, Path: path})
	ctx := core.WithWatchID(context.Background(), "watch-2")
	blocks, err := replay.Fetch(ctx)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if live.calls != 1 {
		t.Fatalf("restore should not call the source, got %d calls", live.calls)
	}
	if len(blocks) != 1 || blocks[0].Link != "https://www.ebay.com/itm/1" || blocks[0].Price.String() != "25.5" {
		t.Fatalf("unexpected restored blocks %#v", blocks)
	}
	if blocks[0].WatchID != "watch-2" {
		t.Fatalf("expected restored block to take the current watch id, got %q", blocks[0].WatchID)
	}
}

func TestWrapSourcePassesThroughErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebay.json")
	live := &countingSource{err: errors.New("boom")}
	wrapped := WrapSource(live, &core.SnapshotConfig{Snapshot: true, Path: path})
	if _, err := wrapped.Fetch(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected no snapshot after a failed fetch")
	}
}

func TestWrapSourceWithoutModeReturnsSource(t *testing.T) {
	live := &countingSource{}
	if got := WrapSource(live, &core.SnapshotConfig{Path: "unused.json"}); got != core.SourceProcessor(live) {
		t.Fatalf("expected unwrapped source")
	}
	if WrapSource(nil, nil) != nil {
		t.Fatalf("expected nil for nil source")
	}
}
