// Package sqlitestore provides a SQLite-backed state.Store.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-modkit/internal/hydrate"
	"github.com/goliatone/go-modkit/pkg/state"
)

const schema = `CREATE TABLE IF NOT EXISTS modkit_state (
	id          TEXT PRIMARY KEY,
	snapshot    TEXT NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL DEFAULT 0,
	extra       TEXT NOT NULL DEFAULT '{}'
)`

// Store persists module state snapshots in SQLite as JSON documents.
type Store[T any] struct {
	sqlDB   *sql.DB
	decoder *hydrate.Decoder[envelope[T]]
}

type envelope[T any] struct {
	State T `json:"state"`
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite state store at path and creates its table. Use
// ":memory:" for a private in-memory database.
func Open[T any](path string) (*Store[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store[T]{
		sqlDB:   sqlDB,
		decoder: hydrate.New[envelope[T]](),
	}, nil
}

// Close closes the SQLite handle.
func (s *Store[T]) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load reads the snapshot stored for ref.
func (s *Store[T]) Load(ctx context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, state.Meta{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return zero, state.Meta{}, false, fmt.Errorf("storage is not configured")
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	var (
		snapshot  string
		meta      state.Meta
		updatedAt int64
		extra     string
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT snapshot, snapshot_id, etag, updated_at, extra FROM modkit_state WHERE id = ?`,
		key,
	)
	if err := row.Scan(&snapshot, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, state.Meta{}, false, nil
		}
		return zero, state.Meta{}, false, fmt.Errorf("load state %s: %w", key, err)
	}
	meta.UpdatedAt = fromMillis(updatedAt)
	if err := json.Unmarshal([]byte(extra), &meta.Extra); err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("decode meta %s: %w", key, err)
	}
	if len(meta.Extra) == 0 {
		meta.Extra = nil
	}

	decoded, err := s.decoder.DecodeJSON(hydrate.Origin{Name: key, Format: "sqlite"}, []byte(snapshot))
	if err != nil {
		return zero, state.Meta{}, false, err
	}
	return decoded.State, meta, true, nil
}

// Save upserts the snapshot for ref and returns the stored metadata.
func (s *Store[T]) Save(ctx context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	if err := ctx.Err(); err != nil {
		return state.Meta{}, err
	}
	if s == nil || s.sqlDB == nil {
		return state.Meta{}, fmt.Errorf("storage is not configured")
	}
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}

	payload, err := json.Marshal(envelope[T]{State: snapshot})
	if err != nil {
		return state.Meta{}, fmt.Errorf("encode state %s: %w", key, err)
	}
	extra := meta.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return state.Meta{}, fmt.Errorf("encode meta %s: %w", key, err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO modkit_state (id, snapshot, snapshot_id, etag, updated_at, extra)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   snapshot = excluded.snapshot,
		   snapshot_id = excluded.snapshot_id,
		   etag = excluded.etag,
		   updated_at = excluded.updated_at,
		   extra = excluded.extra`,
		key,
		string(payload),
		meta.SnapshotID,
		meta.ETag,
		toMillis(meta.UpdatedAt),
		string(extraJSON),
	)
	if err != nil {
		return state.Meta{}, fmt.Errorf("save state %s: %w", key, err)
	}

	out := meta
	out.UpdatedAt = fromMillis(toMillis(meta.UpdatedAt))
	return out, nil
}

// Delete removes the snapshot for ref.
func (s *Store[T]) Delete(ctx context.Context, ref state.Ref) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM modkit_state WHERE id = ?`, key); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
