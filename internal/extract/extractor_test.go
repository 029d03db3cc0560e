package extract

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

// scriptedAI returns canned responses in order, one per call.
type scriptedAI struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedAI) GenerateStructured(_ context.Context, _ anthropic.Request) (string, anthropic.TokenUsage, error) {
	i := s.calls
	s.calls++
	usage := anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", usage, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], usage, nil
	}
	return "", usage, eris.New("script exhausted")
}

func (s *scriptedAI) GenerateText(ctx context.Context, req anthropic.Request) (string, anthropic.TokenUsage, error) {
	return s.GenerateStructured(ctx, req)
}

const validProfileJSON = `{
	"company_name": "Acme Staffing",
	"summary": "Acme provides light industrial staffing across the Midwest.",
	"industry": "Staffing",
	"tags": ["staffing", "light industrial"]
}`

func TestExtractFirstAttemptSucceeds(t *testing.T) {
	ai := &scriptedAI{responses: []string{validProfileJSON}}
	ex := New(ai, "test-model", 1024)

	result := ex.Extract(context.Background(), map[string]string{"website": "some text"})

	assert.Equal(t, 1, ai.calls)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Acme Staffing", result.Profile.CompanyName)
	assert.Equal(t, int64(100), result.Usage.InputTokens)
	require.NotNil(t, result.Profile.RedFlags)
	assert.Empty(t, result.Profile.RedFlags)
}

func TestExtractRetriesOnceThenSucceeds(t *testing.T) {
	ai := &scriptedAI{responses: []string{"not json at all", validProfileJSON}}
	ex := New(ai, "test-model", 1024)

	result := ex.Extract(context.Background(), map[string]string{"website": "some text"})

	assert.Equal(t, 2, ai.calls)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Acme Staffing", result.Profile.CompanyName)
	// Usage from the failed attempt is still counted.
	assert.Equal(t, int64(200), result.Usage.InputTokens)
}

func TestExtractFallsBackAfterTwoFailures(t *testing.T) {
	ai := &scriptedAI{responses: []string{"garbage", `{"summary": ""}`}}
	ex := New(ai, "test-model", 1024)

	result := ex.Extract(context.Background(), map[string]string{
		"b-site": "Beta text here.",
		"a-site": "Alpha text here.",
	})

	assert.Equal(t, 2, ai.calls)
	assert.True(t, result.Fallback)
	// Deterministic fallback: sources concatenated in name order.
	assert.Equal(t, "Alpha text here. Beta text here.", result.Profile.Summary)
	assert.Empty(t, result.Profile.CompanyName)
	require.NotNil(t, result.Profile.Tags)
	assert.Empty(t, result.Profile.Tags)
}

func TestExtractToleratesCodeFences(t *testing.T) {
	ai := &scriptedAI{responses: []string{"```json\n" + validProfileJSON + "\n```"}}
	ex := New(ai, "test-model", 1024)

	result := ex.Extract(context.Background(), map[string]string{"website": "text"})

	assert.False(t, result.Fallback)
	assert.Equal(t, "Staffing", result.Profile.Industry)
}

func TestExtractSanitizesSummary(t *testing.T) {
	ai := &scriptedAI{responses: []string{`{"summary": "Great company... 1,200+ followers on LinkedIn. Real info here."}`}}
	ex := New(ai, "test-model", 1024)

	result := ex.Extract(context.Background(), map[string]string{"website": "text"})

	assert.False(t, result.Fallback)
	assert.NotContains(t, result.Profile.Summary, "...")
	assert.NotContains(t, result.Profile.Summary, "followers")
	assert.Contains(t, result.Profile.Summary, "Real info here.")
}

func TestFallbackProfileTruncated(t *testing.T) {
	long := make([]byte, fallbackSummaryChars*2)
	for i := range long {
		long[i] = 'x'
	}
	profile := fallbackProfile(map[string]string{"only": string(long)})
	assert.LessOrEqual(t, len([]rune(profile.Summary)), fallbackSummaryChars)
}
