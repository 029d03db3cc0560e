package model

import "time"

// RunStatus tracks the enrichment pipeline state machine.
type RunStatus string

const (
	RunStatusQueued          RunStatus = "queued"
	RunStatusFetchingSources RunStatus = "fetching_sources"
	RunStatusExtracting      RunStatus = "extracting"
	RunStatusMerging         RunStatus = "merging"
	RunStatusPersisting      RunStatus = "persisting"
	RunStatusScoring         RunStatus = "scoring"
	RunStatusComplete        RunStatus = "complete"
	RunStatusFailed          RunStatus = "failed"
)

// RunMode selects the enrichment depth.
type RunMode string

const (
	ModeFull         RunMode = "full"
	ModeMetadataOnly RunMode = "metadata-only"
)

// Run is one tracked enrichment invocation for a tenant/entity pair.
type Run struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	EntityID  string    `json:"entity_id"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
