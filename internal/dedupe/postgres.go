package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is small: a pass issues one query at a time.
	DefaultMaxOpenConns = 4
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// TLSMode is the explicit transport security setting for the Postgres
// connection. It maps onto lib/pq's sslmode.
type TLSMode string

const (
	TLSModeDisable    TLSMode = "disable"
	TLSModeRequire    TLSMode = "require"
	TLSModeVerifyCA   TLSMode = "verify-ca"
	TLSModeVerifyFull TLSMode = "verify-full"
)

// ParseTLSMode normalizes a configured TLS mode. Empty means disable.
func ParseTLSMode(mode string) (TLSMode, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "disable", "disabled", "off", "false":
		return TLSModeDisable, nil
	case "require", "required", "on", "true":
		return TLSModeRequire, nil
	case "verify-ca", "verify_ca":
		return TLSModeVerifyCA, nil
	case "verify-full", "verify_full":
		return TLSModeVerifyFull, nil
	default:
		return "", fmt.Errorf("invalid database tls mode %q (expected: disable, require, verify-ca, verify-full)", mode)
	}
}

type PostgresStore struct {
	db         *sql.DB
	table      string
	tableIdent string
}

// Compile-time check that PostgresStore implements SeenStore.
var _ SeenStore = (*PostgresStore)(nil)

// NewPostgresStore opens a lib/pq connection pool. The TLS mode overrides any
// sslmode already present in the DSN.
func NewPostgresStore(dsn, source string, tlsMode TLSMode) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	table, err := TableName(source)
	if err != nil {
		return nil, err
	}
	if tlsMode == "" {
		tlsMode = TLSModeDisable
	}
	dsn, err = withSSLMode(dsn, tlsMode)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening postgres seen store", "table", table, "tls", string(tlsMode))
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storeErr("open postgres", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	return &PostgresStore{
		db:         db,
		table:      table,
		tableIdent: pq.QuoteIdentifier(table),
	}, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		url TEXT PRIMARY KEY
	)`, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storeErr("create postgres table "+s.table, err)
	}
	return nil
}

func (s *PostgresStore) HasSeen(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE url = $1", s.tableIdent), url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("seen check", err)
	}
	return true, nil
}

func (s *PostgresStore) MarkSeen(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (url) VALUES ($1) ON CONFLICT DO NOTHING", s.tableIdent),
		url,
	)
	if err != nil {
		return storeErr("mark seen", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withSSLMode sets sslmode on either DSN form lib/pq accepts: a
// postgres:// URL or a space separated key=value list.
func withSSLMode(dsn string, mode TLSMode) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres dsn: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", string(mode))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	fields := strings.Fields(dsn)
	kept := fields[:0]
	for _, field := range fields {
		if strings.HasPrefix(field, "sslmode=") {
			continue
		}
		kept = append(kept, field)
	}
	kept = append(kept, "sslmode="+string(mode))
	return strings.Join(kept, " "), nil
}
