package dismissal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StorageKey prefixes every persisted dismissal set. Bump the version when the
// payload shape changes.
const StorageKey = "dismissed_jobs_v1"

// Store persists one dismissed-id set per device.
type Store interface {
	Load(ctx context.Context, deviceID string) (*IDSet, error)
	Save(ctx context.Context, deviceID string, set *IDSet) error
	Clear(ctx context.Context, deviceID string) error
}

func storageKey(deviceID string) string {
	return StorageKey + ":" + deviceID
}

func decode(payload []byte) (*IDSet, error) {
	set := &IDSet{}
	if err := json.Unmarshal(payload, set); err != nil {
		return nil, fmt.Errorf("decode dismissed set: %w", err)
	}
	return set, nil
}

// ─── Redis ───────────────────────────────────────────────────────────────────

// RedisStore keeps each set as a JSON array string under
// "dismissed_jobs_v1:<deviceID>". Keys carry no TTL.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a store backed by rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, deviceID string) (*IDSet, error) {
	payload, err := s.rdb.Get(ctx, storageKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewIDSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", storageKey(deviceID), err)
	}
	return decode(payload)
}

func (s *RedisStore) Save(ctx context.Context, deviceID string, set *IDSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, storageKey(deviceID), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", storageKey(deviceID), err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, deviceID string) error {
	if err := s.rdb.Del(ctx, storageKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", storageKey(deviceID), err)
	}
	return nil
}

// ─── SQLite ──────────────────────────────────────────────────────────────────

// SQLiteStore keeps the sets in a local SQLite file, one row per device. It
// backs deployments that run without Redis.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database. Call EnsureSchema before use.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureSchema creates the dismissals table if it is missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS dismissals (
  storage_key TEXT PRIMARY KEY,
  payload     TEXT NOT NULL DEFAULT '[]',
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create dismissals table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, deviceID string) (*IDSet, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dismissals WHERE storage_key = ?`, storageKey(deviceID),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return NewIDSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select dismissals: %w", err)
	}
	return decode([]byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, deviceID string, set *IDSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dismissals (storage_key, payload, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(storage_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		storageKey(deviceID), string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert dismissals: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, deviceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dismissals WHERE storage_key = ?`, storageKey(deviceID)); err != nil {
		return fmt.Errorf("delete dismissals: %w", err)
	}
	return nil
}

// ─── Memory ──────────────────────────────────────────────────────────────────

// MemoryStore is an in-process Store with no persistence across restarts.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]*IDSet
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]*IDSet)}
}

func (s *MemoryStore) Load(_ context.Context, deviceID string) (*IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[deviceID]; ok {
		return set.Clone(), nil
	}
	return NewIDSet(), nil
}

func (s *MemoryStore) Save(_ context.Context, deviceID string, set *IDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[deviceID] = set.Clone()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, deviceID)
	return nil
}
