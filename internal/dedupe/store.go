package dedupe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrStore marks connectivity and query failures of a seen-set backend.
var ErrStore = errors.New("seen store")

// SeenStore tracks the links of listings that have already been notified.
// Records are never updated or deleted.
type SeenStore interface {
	// EnsureSchema creates the seen-set table if it is absent.
	EnsureSchema(ctx context.Context) error
	HasSeen(ctx context.Context, url string) (bool, error)
	// MarkSeen inserts url; inserting an existing url is a no-op.
	MarkSeen(ctx context.Context, url string) error
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	tablePrefix = "seen_links_"
)

// Options selects and configures a SeenStore backend.
type Options struct {
	Driver string
	DSN    string
	// Source namespaces the table: seen_links_<source>.
	Source string
	TLS    TLSMode
}

// Open builds the store for opts.Driver. It does no I/O: the connection is made
// and the table created by the first EnsureSchema, which the runner calls
// inside each pass's timeout.
func Open(opts Options) (SeenStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverPostgres, "postgresql":
		return NewPostgresStore(opts.DSN, opts.Source, opts.TLS)
	case DriverSQLite:
		return NewSQLiteStore(opts.DSN, opts.Source)
	default:
		return nil, fmt.Errorf("unsupported seen store driver %q (expected postgres or sqlite)", opts.Driver)
	}
}

// TableName returns the seen-set table for a listing source.
func TableName(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("seen store source name is required")
	}
	name := tablePrefix + strings.ToLower(source)
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("seen store source %q must match %s", source, identifierPattern.String())
	}
	return name, nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
