package core

import (
	"time"
)

// Watch represents the internal structure of a parsed watch document:
// where listings come from, what counts as a match and who gets told.
type Watch struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	Source    string             `json:"source" yaml:"source"` // seen-set namespace, e.g. "ebay"
	CreatedAt time.Time          `json:"created_at" yaml:"created_at"`
	Triggers  []TriggerProcessor `json:"-" yaml:"-"`
	Sources   []SourceProcessor  `json:"-" yaml:"-"`
	Filter    FilterProcessor    `json:"-" yaml:"-"`
	Notifiers []NotifyProcessor  `json:"-" yaml:"-"`
}

// Run represents a single pass over a Watch
type Run struct {
	ID             string          `json:"id" yaml:"id"`
	WatchID        string          `json:"watch_id" yaml:"watch_id"`
	StartedAt      time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status         RunStatus       `json:"status" yaml:"status"`
	Fetched        int             `json:"fetched" yaml:"fetched"`
	AlreadySeen    int             `json:"already_seen" yaml:"already_seen"`
	Matched        int             `json:"matched" yaml:"matched"`
	Notified       int             `json:"notified" yaml:"notified"`
	NotifyFailures int             `json:"notify_failures" yaml:"notify_failures"`
	MarkFailures   int             `json:"mark_failures" yaml:"mark_failures"`
	Blocks         []*ListingBlock `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Errors         []ProcessError  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// RunStatus represents the current state of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)
