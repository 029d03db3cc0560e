package model

import (
	"encoding/json"
	"time"
)

// TokenUsage tallies LLM token consumption for one run.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// VersionSnapshot is the immutable, append-only record of one enrichment
// run's structured output. It is never mutated or deleted by this subsystem.
type VersionSnapshot struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	EntityID     string            `json:"entity_id"`
	Version      int               `json:"version"`
	Profile      ExtractedProfile  `json:"profile"`
	Model        string            `json:"model"`
	Usage        TokenUsage        `json:"usage"`
	SourceHashes map[string]string `json:"source_hashes,omitempty"`
	QANote       string            `json:"qa_note,omitempty"`
	Fallback     bool              `json:"fallback"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ArchiveKeyFormat is the sortable UTC key layout for raw archives. Two runs
// for the same entity within the same wall-clock second collide; accepted.
const ArchiveKeyFormat = "20060102150405"

// ArchiveKey formats t as a raw-archive key.
func ArchiveKey(t time.Time) string {
	return t.UTC().Format(ArchiveKeyFormat)
}

// RawArchiveSnapshot captures a third-party payload verbatim for audit and
// replay. The merge logic never reads it.
type RawArchiveSnapshot struct {
	Key        string          `json:"key"` // ArchiveKey of capture time
	TenantID   string          `json:"tenant_id"`
	EntityID   string          `json:"entity_id"`
	Provider   string          `json:"provider"`
	Payload    json.RawMessage `json:"payload"`
	CapturedAt time.Time       `json:"captured_at"`
}

// SourceText is one normalized source fetch inside a SourceState.
type SourceText struct {
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Text      string    `json:"text,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SourceState is the standalone aggregation snapshot persisted after each
// fetch pass. The hashes let a later run detect unchanged sources.
type SourceState struct {
	TenantID  string       `json:"tenant_id"`
	EntityID  string       `json:"entity_id"`
	Sources   []SourceText `json:"sources"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CacheEntry is one tiered advisory-cache row. Entries are immutable except
// for full overwrite; freshness is checked lazily at read time.
type CacheEntry struct {
	Tier      string          `json:"tier"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"written_at"`
}

// Fresh reports whether the entry is still inside ttl as of now.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.WrittenAt) < ttl
}
