// Package qa runs an optional, non-blocking sanity pass over extracted
// profiles with a cheaper model.
package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

// maxContextChars bounds the source text excerpt sent for review.
const maxContextChars = 4000

const prompt = `Review the extracted company profile against the source excerpt.
Reply with exactly one sentence: "Looks good." if the profile is consistent
with the sources, otherwise a short comma-separated list of concerns.

Profile:
%s

Source excerpt:
%s`

// Annotator asks a small model for a one-sentence sanity note.
type Annotator struct {
	ai    anthropic.Client
	model string
}

// New creates an Annotator bound to a (typically cheaper) model.
func New(ai anthropic.Client, modelID string) *Annotator {
	return &Annotator{ai: ai, model: modelID}
}

// Annotate returns the sanity note. Callers treat failure as best-effort;
// the note is simply omitted from the version snapshot.
func (a *Annotator) Annotate(ctx context.Context, profile *model.ExtractedProfile, texts map[string]string) (string, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", eris.Wrap(err, "qa: marshal profile")
	}

	note, _, err := a.ai.GenerateText(ctx, anthropic.Request{
		Model:     a.model,
		MaxTokens: 256,
		Prompt:    fmt.Sprintf(prompt, profileJSON, excerpt(texts)),
	})
	if err != nil {
		return "", eris.Wrap(err, "qa: generate note")
	}
	return strings.TrimSpace(note), nil
}

func excerpt(texts map[string]string) string {
	var b strings.Builder
	for _, text := range texts {
		if b.Len() >= maxContextChars {
			break
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	s := b.String()
	if runes := []rune(s); len(runes) > maxContextChars {
		s = string(runes[:maxContextChars])
	}
	return s
}
