package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-enrich/internal/db"
	"github.com/sells-group/crm-enrich/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS versions (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_archives (
	archive_key TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	provider    TEXT NOT NULL,
	payload     JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, entity_id, provider, archive_key)
);

CREATE TABLE IF NOT EXISTS source_state (
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS cache_entries (
	tier       TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    JSONB NOT NULL,
	written_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tier, key)
);

CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_versions_entity ON versions(tenant_id, entity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_entity ON runs(tenant_id, entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, tenantID, entityID string) (*model.CanonicalRecord, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM records WHERE tenant_id = $1 AND entity_id = $2`,
		tenantID, entityID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s/%s", tenantID, entityID)
	}

	var rec model.CanonicalRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) PutRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (tenant_id, entity_id, doc, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, entity_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		rec.TenantID, rec.EntityID, doc, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put record %s/%s", rec.TenantID, rec.EntityID)
}

func (s *PostgresStore) ListRecords(ctx context.Context, tenantID string, limit int) ([]model.CanonicalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM records WHERE tenant_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list records %s", tenantID)
	}
	defer rows.Close()

	var records []model.CanonicalRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.CanonicalRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records")
}

func (s *PostgresStore) AppendVersion(ctx context.Context, v *model.VersionSnapshot) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal version")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO versions (id, tenant_id, entity_id, version, doc, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.TenantID, v.EntityID, v.Version, doc, v.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append version %s/%s v%d", v.TenantID, v.EntityID, v.Version)
}

func (s *PostgresStore) ListVersions(ctx context.Context, tenantID, entityID string, limit int) ([]model.VersionSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM versions WHERE tenant_id = $1 AND entity_id = $2 ORDER BY created_at DESC, version DESC LIMIT $3`,
		tenantID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list versions %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var versions []model.VersionSnapshot
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		var v model.VersionSnapshot
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal version")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "postgres: list versions")
}

func (s *PostgresStore) AppendArchive(ctx context.Context, a *model.RawArchiveSnapshot) error {
	if a.CapturedAt.IsZero() {
		a.CapturedAt = time.Now().UTC()
	}
	if a.Key == "" {
		a.Key = model.ArchiveKey(a.CapturedAt)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw_archives (archive_key, tenant_id, entity_id, provider, payload, captured_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Key, a.TenantID, a.EntityID, a.Provider, []byte(a.Payload), a.CapturedAt,
	)
	return eris.Wrapf(err, "postgres: append archive %s/%s %s", a.TenantID, a.EntityID, a.Key)
}

func (s *PostgresStore) GetSourceState(ctx context.Context, tenantID, entityID string) (*model.SourceState, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM source_state WHERE tenant_id = $1 AND entity_id = $2`,
		tenantID, entityID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source state %s/%s", tenantID, entityID)
	}

	var st model.SourceState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal source state")
	}
	return &st, nil
}

func (s *PostgresStore) SetSourceState(ctx context.Context, st *model.SourceState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source state")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO source_state (tenant_id, entity_id, doc, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, entity_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		st.TenantID, st.EntityID, doc, st.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: set source state %s/%s", st.TenantID, st.EntityID)
}

func (s *PostgresStore) GetCacheEntry(ctx context.Context, tier, key string) (*model.CacheEntry, error) {
	var payload []byte
	var writtenAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT payload, written_at FROM cache_entries WHERE tier = $1 AND key = $2`,
		tier, key,
	).Scan(&payload, &writtenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cache entry %s/%s", tier, key)
	}
	return &model.CacheEntry{
		Tier:      tier,
		Key:       key,
		Payload:   json.RawMessage(payload),
		WrittenAt: writtenAt,
	}, nil
}

func (s *PostgresStore) SetCacheEntry(ctx context.Context, e *model.CacheEntry) error {
	if e.WrittenAt.IsZero() {
		e.WrittenAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (tier, key, payload, written_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tier, key) DO UPDATE SET payload = EXCLUDED.payload, written_at = EXCLUDED.written_at`,
		e.Tier, e.Key, []byte(e.Payload), e.WrittenAt,
	)
	return eris.Wrapf(err, "postgres: set cache entry %s/%s", e.Tier, e.Key)
}

func (s *PostgresStore) CreateRun(ctx context.Context, tenantID, entityID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, tenant_id, entity_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, tenantID, entityID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{
		ID:        id,
		TenantID:  tenantID,
		EntityID:  entityID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
