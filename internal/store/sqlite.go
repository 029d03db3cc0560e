package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crm-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS versions (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	doc        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_archives (
	archive_key TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	provider    TEXT NOT NULL,
	payload     TEXT NOT NULL,
	captured_at DATETIME NOT NULL,
	PRIMARY KEY (tenant_id, entity_id, provider, archive_key)
);

CREATE TABLE IF NOT EXISTS source_state (
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS cache_entries (
	tier       TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    TEXT NOT NULL,
	written_at DATETIME NOT NULL,
	PRIMARY KEY (tier, key)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_versions_entity ON versions(tenant_id, entity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_entity ON runs(tenant_id, entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetRecord(ctx context.Context, tenantID, entityID string) (*model.CanonicalRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE tenant_id = ? AND entity_id = ?`,
		tenantID, entityID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s/%s", tenantID, entityID)
	}

	var rec model.CanonicalRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) PutRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (tenant_id, entity_id, doc, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, entity_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		rec.TenantID, rec.EntityID, string(doc), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put record %s/%s", rec.TenantID, rec.EntityID)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, tenantID string, limit int) ([]model.CanonicalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM records WHERE tenant_id = ? ORDER BY updated_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list records %s", tenantID)
	}
	defer rows.Close()

	var records []model.CanonicalRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		var rec model.CanonicalRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records")
}

func (s *SQLiteStore) AppendVersion(ctx context.Context, v *model.VersionSnapshot) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal version")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO versions (id, tenant_id, entity_id, version, doc, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.TenantID, v.EntityID, v.Version, string(doc), v.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append version %s/%s v%d", v.TenantID, v.EntityID, v.Version)
}

func (s *SQLiteStore) ListVersions(ctx context.Context, tenantID, entityID string, limit int) ([]model.VersionSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM versions WHERE tenant_id = ? AND entity_id = ? ORDER BY created_at DESC, version DESC LIMIT ?`,
		tenantID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list versions %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var versions []model.VersionSnapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version")
		}
		var v model.VersionSnapshot
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal version")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "sqlite: list versions")
}

func (s *SQLiteStore) AppendArchive(ctx context.Context, a *model.RawArchiveSnapshot) error {
	if a.CapturedAt.IsZero() {
		a.CapturedAt = time.Now().UTC()
	}
	if a.Key == "" {
		a.Key = model.ArchiveKey(a.CapturedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_archives (archive_key, tenant_id, entity_id, provider, payload, captured_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Key, a.TenantID, a.EntityID, a.Provider, string(a.Payload), a.CapturedAt,
	)
	return eris.Wrapf(err, "sqlite: append archive %s/%s %s", a.TenantID, a.EntityID, a.Key)
}

func (s *SQLiteStore) GetSourceState(ctx context.Context, tenantID, entityID string) (*model.SourceState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM source_state WHERE tenant_id = ? AND entity_id = ?`,
		tenantID, entityID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source state %s/%s", tenantID, entityID)
	}

	var st model.SourceState
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal source state")
	}
	return &st, nil
}

func (s *SQLiteStore) SetSourceState(ctx context.Context, st *model.SourceState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source state")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO source_state (tenant_id, entity_id, doc, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, entity_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		st.TenantID, st.EntityID, string(doc), st.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: set source state %s/%s", st.TenantID, st.EntityID)
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, tier, key string) (*model.CacheEntry, error) {
	var payload string
	var writtenAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, written_at FROM cache_entries WHERE tier = ? AND key = ?`,
		tier, key,
	).Scan(&payload, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cache entry %s/%s", tier, key)
	}
	return &model.CacheEntry{
		Tier:      tier,
		Key:       key,
		Payload:   json.RawMessage(payload),
		WrittenAt: writtenAt,
	}, nil
}

func (s *SQLiteStore) SetCacheEntry(ctx context.Context, e *model.CacheEntry) error {
	if e.WrittenAt.IsZero() {
		e.WrittenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (tier, key, payload, written_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tier, key) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
		e.Tier, e.Key, string(e.Payload), e.WrittenAt,
	)
	return eris.Wrapf(err, "sqlite: set cache entry %s/%s", e.Tier, e.Key)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, tenantID, entityID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, tenant_id, entity_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, tenantID, entityID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
