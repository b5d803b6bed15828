package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by KV.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// KV stores session records in the demo_sessions table (see migrations/postgres).
type KV struct {
	pg     DB
	schema string
	ttl    time.Duration
}

// NewKV returns a Postgres backend. schema defaults to "demogate" and ttl
// to 30 days.
func NewKV(pg DB, schema string, ttl time.Duration) *KV {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "demogate"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &KV{pg: pg, schema: s, ttl: ttl}
}

func (s *KV) table() string { return s.schema + ".demo_sessions" }

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := s.pg.QueryRow(ctx, `SELECT value FROM `+s.table()+` WHERE key=$1 AND expires_at > NOW() LIMIT 1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// Put upserts the value. It is stored as text rather than jsonb so corrupt
// payloads survive long enough to be detected and replaced by the session
// store.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pg.Exec(ctx, `INSERT INTO `+s.table()+` (key, value, updated_at, expires_at)
VALUES ($1, $2, NOW(), $3)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at, expires_at=EXCLUDED.expires_at`,
		key, string(value), time.Now().Add(s.ttl))
	return err
}

func (s *KV) Del(ctx context.Context, key string) error {
	_, err := s.pg.Exec(ctx, `DELETE FROM `+s.table()+` WHERE key=$1`, key)
	return err
}

// PurgeExpired deletes rows past their expiry and returns how many went.
func (s *KV) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pg.Exec(ctx, `DELETE FROM `+s.table()+` WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
