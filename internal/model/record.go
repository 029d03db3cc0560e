package model

import "time"

// EntityKind distinguishes the two CRM record types.
type EntityKind string

const (
	KindCompany EntityKind = "company"
	KindContact EntityKind = "contact"
)

// SignalStrength is a coarse label for how much usable source material a run found.
type SignalStrength string

const (
	SignalNone     SignalStrength = "none"
	SignalLow      SignalStrength = "low"
	SignalHigh     SignalStrength = "high"
	SignalVerified SignalStrength = "verified"
)

// ProvenanceMap records, per field path, the source that owns the current
// value. A path is present only after a write attributed a non-empty value to
// a source; absence means the field is unowned and freely overwritable.
type ProvenanceMap map[FieldPath]string

// Clone returns a copy of the map. A nil receiver yields an empty map.
func (p ProvenanceMap) Clone() ProvenanceMap {
	out := make(ProvenanceMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CanonicalRecord is the single merge-target document for a company or
// contact. It is mutated only by the merge resolver and never deleted here.
type CanonicalRecord struct {
	TenantID string     `json:"tenant_id"`
	EntityID string     `json:"entity_id"`
	Kind     EntityKind `json:"kind"`

	// Fields holds catalog-path keyed values. A nil entry is an explicit
	// "no value"; an absent key has never been written.
	Fields map[FieldPath]any `json:"fields"`

	// FirmoBySource keeps raw firmographics keyed by provider name.
	FirmoBySource map[string]map[string]any `json:"firmo_by_source,omitempty"`

	Provenance ProvenanceMap `json:"provenance"`

	// Version is the monotonic enrichment-run counter, incremented once per
	// appended VersionSnapshot.
	Version int `json:"version"`

	// Latest is a denormalized copy of the newest extracted profile so reads
	// don't have to query the version table.
	Latest *ExtractedProfile `json:"latest,omitempty"`

	// Score is fully recomputed and overwritten every run, never versioned.
	Score *LeadScore `json:"score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCanonicalRecord creates an empty record for the given entity.
func NewCanonicalRecord(tenantID, entityID string, kind EntityKind) *CanonicalRecord {
	now := time.Now().UTC()
	return &CanonicalRecord{
		TenantID:   tenantID,
		EntityID:   entityID,
		Kind:       kind,
		Fields:     make(map[FieldPath]any),
		Provenance: make(ProvenanceMap),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// LeadScore is the derived additive score with its human-readable signals.
type LeadScore struct {
	Score    int       `json:"score"`
	Signals  []string  `json:"signals"`
	ScoredAt time.Time `json:"scored_at"`
}
