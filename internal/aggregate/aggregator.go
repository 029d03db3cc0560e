// Package aggregate fetches raw text from the configured external sources in
// parallel, isolating per-source failure.
package aggregate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/reader"
)

// Source is one named source descriptor. A missing URL yields an empty
// result for that source only.
type Source struct {
	Name string
	URL  string
}

// Result holds all settled source fetches for one entity, in input order.
type Result struct {
	Sources []model.SourceText
}

// Empty reports whether every source produced empty text.
func (r Result) Empty() bool {
	for _, s := range r.Sources {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Texts returns the non-empty source texts keyed by source name.
func (r Result) Texts() map[string]string {
	out := make(map[string]string, len(r.Sources))
	for _, s := range r.Sources {
		if strings.TrimSpace(s.Text) != "" {
			out[s.Name] = s.Text
		}
	}
	return out
}

// Hashes returns the content hash per source that produced text.
func (r Result) Hashes() map[string]string {
	out := make(map[string]string, len(r.Sources))
	for _, s := range r.Sources {
		if s.Hash != "" {
			out[s.Name] = s.Hash
		}
	}
	return out
}

// Aggregator fans out fetches over a reader client.
type Aggregator struct {
	reader   reader.Client
	maxChars int
	now      func() time.Time
}

// New creates an Aggregator. maxChars bounds each normalized source text.
func New(r reader.Client, maxChars int) *Aggregator {
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &Aggregator{reader: r, maxChars: maxChars, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Fetch retrieves all sources concurrently and waits for every one to settle.
// A fetch failure degrades that source to empty text; it never aborts the
// others and never returns an error.
func (a *Aggregator) Fetch(ctx context.Context, sources []Source) Result {
	results := make([]model.SourceText, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.fetchOne(gCtx, src)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Sources: results}
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source) model.SourceText {
	out := model.SourceText{
		Name:      src.Name,
		URL:       src.URL,
		FetchedAt: a.now().UTC(),
	}
	if strings.TrimSpace(src.URL) == "" {
		return out
	}

	resp, err := a.reader.Read(ctx, src.URL)
	if err != nil {
		zap.L().Warn("aggregate: source unavailable",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
			zap.Error(err),
		)
		return out
	}

	text := strings.TrimSpace(resp.Data.Content)
	if runes := []rune(text); len(runes) > a.maxChars {
		text = string(runes[:a.maxChars])
	}
	if text == "" {
		return out
	}

	sum := sha256.Sum256([]byte(text))
	out.Text = text
	out.Hash = hex.EncodeToString(sum[:])
	if resp.Data.URL != "" {
		out.URL = resp.Data.URL
	}
	return out
}
