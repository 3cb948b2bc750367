package core

import (
	"context"
	"time"
)

// Processor is the base interface that all processors must implement
type Processor interface {
	// Name returns the processor name
	Name() string
	// Validate checks if the processor configuration is valid
	Validate() error
}

type SnapshotConfig struct {
	Snapshot bool   `json:"snapshot" yaml:"snapshot"`
	Restore  bool   `json:"restore" yaml:"restore"`
	Path     string `json:"path" yaml:"path"`
}

// TriggerEvent represents a trigger firing
type TriggerEvent struct {
	WatchID   string
	Timestamp time.Time
}

// TriggerProcessor defines when passes run in scheduled mode
type TriggerProcessor interface {
	Processor
	// Start begins the trigger and returns a channel of trigger events.
	// Events that arrive while the previous one is still unconsumed are dropped.
	Start(ctx context.Context, watchID string) (<-chan TriggerEvent, error)
	// Stop gracefully shuts down the trigger
	Stop() error
}

// SourceProcessor fetches one page of candidate listings
type SourceProcessor interface {
	Processor
	// Fetch retrieves the candidates in source order. Malformed items are
	// dropped; an error means the whole fetch failed.
	Fetch(ctx context.Context) ([]*ListingBlock, error)
}

// FilterProcessor decides whether a listing should be notified
type FilterProcessor interface {
	Processor
	// Evaluate populates block.Match and reports whether the listing matches.
	Evaluate(ctx context.Context, block *ListingBlock) (bool, error)
}

// NotifyProcessor delivers notifications for matched listings
type NotifyProcessor interface {
	Processor
	// NotifyHeader sends the one-time batch header preceding the first match of a pass.
	NotifyHeader(ctx context.Context) error
	// Notify sends the message for a single matched listing.
	Notify(ctx context.Context, block *ListingBlock) error
}
