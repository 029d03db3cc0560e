package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/merge"
	"github.com/sells-group/crm-enrich/internal/model"
)

func findCandidate(cands []merge.Candidate, path model.FieldPath) (merge.Candidate, bool) {
	for _, c := range cands {
		if c.Path == path {
			return c, true
		}
	}
	return merge.Candidate{}, false
}

func TestProfileCandidatesEmptyFieldsAbsent(t *testing.T) {
	p := &model.ExtractedProfile{
		CompanyName: "Acme",
		Summary:     "A summary.",
		Industry:    "", // not found: must not blank an existing value
	}
	p.Normalize()

	cands := profileCandidates(p)

	name, ok := findCandidate(cands, "name")
	require.True(t, ok)
	assert.Equal(t, "Acme", name.Value)

	industry, ok := findCandidate(cands, "industry")
	require.True(t, ok)
	assert.Nil(t, industry.Value)
	assert.False(t, industry.Null)
}

func TestProfileCandidatesSummaryMapsToDescription(t *testing.T) {
	p := &model.ExtractedProfile{Summary: "The description."}
	cands := profileCandidates(p)

	desc, ok := findCandidate(cands, "description")
	require.True(t, ok)
	assert.Equal(t, "The description.", desc.Value)
}

func TestFirmoCandidatesCoercesNumbers(t *testing.T) {
	cands := firmoCandidates(map[string]any{
		"employee_count": float64(250),
		"name":           "Acme LLC",
		"unknown_key":    "ignored",
	})

	emp, ok := findCandidate(cands, "employee_estimate")
	require.True(t, ok)
	assert.Equal(t, "250", emp.Value)

	_, ok = findCandidate(cands, "unknown_key")
	assert.False(t, ok)
}

func TestFirmoCandidatesNilRecord(t *testing.T) {
	assert.Nil(t, firmoCandidates(nil))
}

func TestMetadataCandidatesCoverSyncFields(t *testing.T) {
	cands := metadataCandidates(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), model.SignalHigh)

	strength, ok := findCandidate(cands, "signal_strength")
	require.True(t, ok)
	assert.Equal(t, "high", strength.Value)

	_, ok = findCandidate(cands, "synced_at")
	assert.True(t, ok)
}
