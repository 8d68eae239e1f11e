package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/scry-forge/internal/routing"
	"github.com/phrazzld/scry-forge/internal/store"
)

// RoutingOverridesKey is the admin_settings key holding routing overrides.
const RoutingOverridesKey = "routing_overrides"

// SettingsStore reads and writes JSON documents in admin_settings.
type SettingsStore struct {
	db  store.DBTX
	now func() time.Time
}

var _ routing.OverrideSource = (*SettingsStore)(nil)

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(db store.DBTX) *SettingsStore {
	return &SettingsStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get decodes the setting stored under key into out. It reports false when
// the key is absent.
func (s *SettingsStore) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM admin_settings WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read setting %q: %w", key, MapError(err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return true, nil
}

// Put stores value under key, replacing any previous value.
func (s *SettingsStore) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(raw), s.now())
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, MapError(err))
	}
	return nil
}

// RoutingOverrides implements routing.OverrideSource. A missing row means
// no overrides.
func (s *SettingsStore) RoutingOverrides(ctx context.Context) (map[string]any, error) {
	var raw map[string]any
	if _, err := s.Get(ctx, RoutingOverridesKey, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
