// Package postgres provides the Postgres-backed bulletin archive.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Menenkel/aibulletin/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "bulletins"

const columns = `id, created_at, region, urls, follow_links, max_depth,
	sources_processed, urls_analyzed, corpus_chars, corpus_hash, corpus_uri, analysis`

// ArchiveConfig controls the Postgres connection pool used for bulletins.
type ArchiveConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Archive writes and reads bulletin rows.
type Archive struct {
	pool  querier
	table string
}

// NewArchive connects to Postgres using the provided config.
func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	archive, err := NewArchiveWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return archive, nil
}

// NewArchiveWithPool constructs an archive from an existing pool (primarily for testing).
func NewArchiveWithPool(pool querier, table string) (*Archive, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Archive{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (a *Archive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}

// EnsureSchema creates the bulletin table when it does not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id                TEXT PRIMARY KEY,
	created_at        TIMESTAMPTZ NOT NULL,
	region            TEXT NOT NULL,
	urls              JSONB NOT NULL,
	follow_links      BOOLEAN NOT NULL,
	max_depth         INTEGER NOT NULL,
	sources_processed INTEGER NOT NULL,
	urls_analyzed     INTEGER NOT NULL,
	corpus_chars      INTEGER NOT NULL,
	corpus_hash       TEXT NOT NULL,
	corpus_uri        TEXT NOT NULL,
	analysis          TEXT NOT NULL
)`, a.table)
	if _, err := a.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create bulletin table: %w", err)
	}
	return nil
}

// SaveBulletin inserts a bulletin row.
func (a *Archive) SaveBulletin(ctx context.Context, b storage.Bulletin) error {
	if b.ID == "" {
		return fmt.Errorf("bulletin id is required")
	}
	urls := b.URLs
	if urls == nil {
		urls = []string{}
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, a.table, columns)

	args := []any{
		b.ID,
		b.CreatedAt,
		b.Region,
		urlsJSON,
		b.FollowLinks,
		b.MaxDepth,
		b.SourcesProcessed,
		b.TotalVisited,
		b.CorpusChars,
		b.CorpusHash,
		b.CorpusURI,
		b.Analysis,
	}
	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert bulletin: %w", err)
	}
	return nil
}

// GetBulletin loads one bulletin by id.
func (a *Archive) GetBulletin(ctx context.Context, id string) (storage.Bulletin, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, a.table)
	b, err := scanBulletin(a.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Bulletin{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Bulletin{}, fmt.Errorf("select bulletin: %w", err)
	}
	return b, nil
}

// ListBulletins returns up to limit bulletins, newest first.
func (a *Archive) ListBulletins(ctx context.Context, limit int) ([]storage.Bulletin, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1`, columns, a.table)
	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list bulletins: %w", err)
	}
	defer rows.Close()

	var out []storage.Bulletin
	for rows.Next() {
		b, err := scanBulletin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bulletin: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bulletins: %w", err)
	}
	return out, nil
}

func scanBulletin(row pgx.Row) (storage.Bulletin, error) {
	var (
		b        storage.Bulletin
		urlsJSON []byte
	)
	err := row.Scan(
		&b.ID,
		&b.CreatedAt,
		&b.Region,
		&urlsJSON,
		&b.FollowLinks,
		&b.MaxDepth,
		&b.SourcesProcessed,
		&b.TotalVisited,
		&b.CorpusChars,
		&b.CorpusHash,
		&b.CorpusURI,
		&b.Analysis,
	)
	if err != nil {
		return storage.Bulletin{}, err
	}
	if len(urlsJSON) > 0 {
		if err := json.Unmarshal(urlsJSON, &b.URLs); err != nil {
			return storage.Bulletin{}, fmt.Errorf("decode urls: %w", err)
		}
	}
	return b, nil
}
