// Package store defines the persistence contract for canonical records,
// version snapshots, raw archives, advisory cache tiers, and run tracking.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-enrich/internal/model"
)

// ErrNotFound is returned when a keyed read finds no row.
var ErrNotFound = eris.New("store: not found")

// Store is the persistence interface for the enrichment and advisory paths.
//
// Records are whole-document reads and writes; the merge resolver owns field
// semantics and prunes absent values before a record ever reaches the store
// (nil field entries are explicit nulls and are persisted as such).
type Store interface {
	// Canonical records
	GetRecord(ctx context.Context, tenantID, entityID string) (*model.CanonicalRecord, error)
	PutRecord(ctx context.Context, rec *model.CanonicalRecord) error
	ListRecords(ctx context.Context, tenantID string, limit int) ([]model.CanonicalRecord, error)

	// Version snapshots and raw archives, append-only
	AppendVersion(ctx context.Context, v *model.VersionSnapshot) error
	ListVersions(ctx context.Context, tenantID, entityID string, limit int) ([]model.VersionSnapshot, error)
	AppendArchive(ctx context.Context, a *model.RawArchiveSnapshot) error

	// Source aggregation state
	GetSourceState(ctx context.Context, tenantID, entityID string) (*model.SourceState, error)
	SetSourceState(ctx context.Context, st *model.SourceState) error

	// Advisory cache tiers: full overwrite per (tier, key)
	GetCacheEntry(ctx context.Context, tier, key string) (*model.CacheEntry, error)
	SetCacheEntry(ctx context.Context, e *model.CacheEntry) error

	// Run tracking
	CreateRun(ctx context.Context, tenantID, entityID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
