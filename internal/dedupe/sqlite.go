package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db         *sql.DB
	table      string
	tableIdent string
}

// Compile-time check that SQLiteStore implements SeenStore.
var _ SeenStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dsn, source string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	table, err := TableName(source)
	if err != nil {
		return nil, err
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{
		db:         db,
		table:      table,
		tableIdent: `"` + table + `"`,
	}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		url TEXT PRIMARY KEY
	)`, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storeErr("create sqlite table "+s.table, err)
	}
	return nil
}

func (s *SQLiteStore) HasSeen(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE url = ?", s.tableIdent), url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("seen check", err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkSeen(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (url) VALUES (?) ON CONFLICT(url) DO NOTHING", s.tableIdent),
		url,
	)
	if err != nil {
		return storeErr("mark seen", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
