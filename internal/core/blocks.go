package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingBlock contains the data and metadata of a single marketplace listing
// as it flows through one pass of the pipeline. Only Link outlives the pass,
// and only once the listing has been notified.
type ListingBlock struct {
	WatchID     string          `json:"watch_id" yaml:"watch_id"`
	Source      string          `json:"source" yaml:"source"`
	Title       string          `json:"title" yaml:"title"`
	Link        string          `json:"link" yaml:"link"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	PriceText   string          `json:"price_text,omitempty" yaml:"price_text,omitempty"`
	Match       *MatchResult    `json:"match,omitempty" yaml:"match,omitempty"`
	Notified    bool            `json:"notified" yaml:"notified"`
	ProcessedAt time.Time       `json:"processed_at" yaml:"processed_at"`
	Errors      []ProcessError  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// MatchResult records the outcome of the filter stage for a listing
type MatchResult struct {
	ProcessorName string    `json:"processor_name" yaml:"processor_name"`
	Result        string    `json:"result" yaml:"result"` // "match", "skip"
	Reason        string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	ProcessedAt   time.Time `json:"processed_at" yaml:"processed_at"`
}

const (
	MatchResultMatch = "match"
	MatchResultSkip  = "skip"
)

// Matched reports whether the filter stage accepted the listing.
func (b *ListingBlock) Matched() bool {
	return b != nil && b.Match != nil && b.Match.Result == MatchResultMatch
}

// ProcessError tracks errors that occur during processing
type ProcessError struct {
	ProcessorName string    `json:"processor_name" yaml:"processor_name"`
	Stage         string    `json:"stage" yaml:"stage"` // "source", "dedupe", "filter", "notify"
	Subject       string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Error         string    `json:"error" yaml:"error"`
	OccurredAt    time.Time `json:"occurred_at" yaml:"occurred_at"`
}

const (
	StageSource = "source"
	StageDedupe = "dedupe"
	StageFilter = "filter"
	StageNotify = "notify"
)

// NewProcessError builds a ProcessError stamped with the current time.
func NewProcessError(processor, stage, subject string, err error) ProcessError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ProcessError{
		ProcessorName: processor,
		Stage:         stage,
		Subject:       subject,
		Error:         msg,
		OccurredAt:    time.Now().UTC(),
	}
}
