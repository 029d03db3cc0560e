package aggregate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/pkg/reader"
)

// stubReader maps URLs to canned content or errors.
type stubReader struct {
	content map[string]string
	fail    map[string]bool
}

func (s *stubReader) Read(_ context.Context, targetURL string) (*reader.ReadResponse, error) {
	if s.fail[targetURL] {
		return nil, eris.New("reader: upstream 503")
	}
	return &reader.ReadResponse{
		Code: 200,
		Data: reader.ReadData{URL: targetURL, Content: s.content[targetURL]},
	}, nil
}

func fixedClock() func() time.Time {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func TestFetchAllSourcesSettle(t *testing.T) {
	r := &stubReader{content: map[string]string{
		"https://acme.com":         "Acme front page.",
		"https://acme.com/careers": "Hiring forklift operators.",
	}}
	agg := New(r, 0).WithNow(fixedClock())

	result := agg.Fetch(context.Background(), []Source{
		{Name: "website", URL: "https://acme.com"},
		{Name: "careers", URL: "https://acme.com/careers"},
	})

	require.Len(t, result.Sources, 2)
	assert.False(t, result.Empty())
	texts := result.Texts()
	assert.Equal(t, "Acme front page.", texts["website"])
	assert.Equal(t, "Hiring forklift operators.", texts["careers"])
	assert.Len(t, result.Hashes(), 2)
}

func TestFetchFailureIsolatedToOneSource(t *testing.T) {
	r := &stubReader{
		content: map[string]string{"https://acme.com": "Acme front page."},
		fail:    map[string]bool{"https://acme.com/about": true},
	}
	agg := New(r, 0).WithNow(fixedClock())

	result := agg.Fetch(context.Background(), []Source{
		{Name: "website", URL: "https://acme.com"},
		{Name: "about", URL: "https://acme.com/about"},
	})

	require.Len(t, result.Sources, 2)
	texts := result.Texts()
	assert.Contains(t, texts, "website")
	assert.NotContains(t, texts, "about")
	assert.False(t, result.Empty())
}

func TestFetchAllFailuresYieldsEmpty(t *testing.T) {
	r := &stubReader{fail: map[string]bool{"https://acme.com": true}}
	agg := New(r, 0).WithNow(fixedClock())

	result := agg.Fetch(context.Background(), []Source{
		{Name: "website", URL: "https://acme.com"},
		{Name: "missing-url"},
	})

	assert.True(t, result.Empty())
	assert.Empty(t, result.Texts())
	assert.Empty(t, result.Hashes())
}

func TestFetchTruncatesToMaxChars(t *testing.T) {
	long := strings.Repeat("x", 500)
	r := &stubReader{content: map[string]string{"https://acme.com": long}}
	agg := New(r, 100).WithNow(fixedClock())

	result := agg.Fetch(context.Background(), []Source{{Name: "website", URL: "https://acme.com"}})

	assert.Len(t, []rune(result.Sources[0].Text), 100)
}

func TestFetchHashStableForSameContent(t *testing.T) {
	r := &stubReader{content: map[string]string{"https://acme.com": "same text"}}
	agg := New(r, 0).WithNow(fixedClock())

	first := agg.Fetch(context.Background(), []Source{{Name: "website", URL: "https://acme.com"}})
	second := agg.Fetch(context.Background(), []Source{{Name: "website", URL: "https://acme.com"}})

	assert.Equal(t, first.Sources[0].Hash, second.Sources[0].Hash)
	assert.NotEmpty(t, first.Sources[0].Hash)
}
