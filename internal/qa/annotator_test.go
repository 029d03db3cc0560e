package qa

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

type stubAI struct {
	note      string
	err       error
	gotPrompt string
}

func (s *stubAI) GenerateStructured(ctx context.Context, req anthropic.Request) (string, anthropic.TokenUsage, error) {
	return s.GenerateText(ctx, req)
}

func (s *stubAI) GenerateText(_ context.Context, req anthropic.Request) (string, anthropic.TokenUsage, error) {
	s.gotPrompt = req.Prompt
	return s.note, anthropic.TokenUsage{}, s.err
}

func TestAnnotateReturnsTrimmedNote(t *testing.T) {
	ai := &stubAI{note: "  Looks good.\n"}
	a := New(ai, "qa-model")

	note, err := a.Annotate(context.Background(), &model.ExtractedProfile{Summary: "Acme staffing."}, map[string]string{
		"website": "Acme provides staffing.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Looks good.", note)
	assert.Contains(t, ai.gotPrompt, "Acme staffing.")
	assert.Contains(t, ai.gotPrompt, "Acme provides staffing.")
}

func TestAnnotatePropagatesError(t *testing.T) {
	ai := &stubAI{err: eris.New("model overloaded")}
	a := New(ai, "qa-model")

	_, err := a.Annotate(context.Background(), &model.ExtractedProfile{}, nil)
	assert.Error(t, err)
}

func TestExcerptBounded(t *testing.T) {
	long := strings.Repeat("x", maxContextChars*3)
	got := excerpt(map[string]string{"a": long, "b": long})
	assert.LessOrEqual(t, len([]rune(got)), maxContextChars)
}
