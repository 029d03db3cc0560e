// Package extract turns aggregated source text into a schema-shaped
// ExtractedProfile via a generative call with bounded retry and a
// deterministic fallback. Extraction never surfaces an error to the caller.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

// maxAttempts is the fixed retry budget: one call plus one identical retry.
const maxAttempts = 2

// fallbackSummaryChars bounds the deterministic fallback summary.
const fallbackSummaryChars = 1500

const systemPrompt = "You are a CRM data analyst extracting structured company intelligence from raw web text. Return only valid JSON matching the requested schema. Use empty strings and empty arrays for anything not found."

const promptTemplate = `Extract a structured company profile from the source texts below.

Output JSON schema:
{
  "company_name": "<official company name>",
  "summary": "<2-4 sentence plain-text summary>",
  "industry": "<primary industry>",
  "employee_estimate": "<employee count or range, as text>",
  "address": "<headquarters address>",
  "hiring_trends": ["<observed hiring activity, one entry per role family or trend>"],
  "org_signals": ["<organizational structure observations, e.g. decision_maker_identified, multiple_locations>"],
  "red_flags": ["<risk indicators, e.g. high_turnover, layoffs>"],
  "tags": ["<free-form topical keywords>"],
  "technologies": ["<tools and platforms in use>"],
  "related_orgs": [{"name": "", "domain": "", "relationship": ""}]
}

Source texts:
%s

Return only the JSON object.`

// Result is everything one extraction pass produced.
type Result struct {
	Profile  model.ExtractedProfile
	Usage    anthropic.TokenUsage
	Fallback bool
	Model    string
}

// Extractor owns the generative extraction call.
type Extractor struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Extractor bound to a model.
func New(ai anthropic.Client, modelID string, maxTokens int64) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Extractor{ai: ai, model: modelID, maxTokens: maxTokens}
}

// Extract runs the bounded-retry extraction. On two consecutive parse or
// validation failures it falls back to the deterministic summary; the error
// is logged, never returned.
func (e *Extractor) Extract(ctx context.Context, texts map[string]string) Result {
	prompt := fmt.Sprintf(promptTemplate, formatSources(texts))
	result := Result{Model: e.model}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, usage, err := e.ai.GenerateStructured(ctx, anthropic.Request{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    systemPrompt,
			Prompt:    prompt,
		})
		result.Usage.Add(usage)
		if err != nil {
			lastErr = err
		} else if profile, parseErr := parseProfile(raw); parseErr != nil {
			lastErr = parseErr
		} else {
			profile.Summary = SanitizeSummary(profile.Summary)
			result.Profile = *profile
			return result
		}

		zap.L().Warn("extract: attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	zap.L().Warn("extract: falling back to deterministic summary", zap.Error(lastErr))
	result.Profile = fallbackProfile(texts)
	result.Fallback = true
	return result
}

// parseProfile decodes and validates strict-JSON model output. Code fences
// around the object are tolerated; anything else is a parse error.
func parseProfile(raw string) (*model.ExtractedProfile, error) {
	raw = stripFences(raw)

	var profile model.ExtractedProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("extract: decode profile: %w", err)
	}
	if strings.TrimSpace(profile.Summary) == "" {
		return nil, fmt.Errorf("extract: profile missing summary")
	}
	profile.Normalize()
	return &profile, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// fallbackProfile builds the deterministic summary: truncated, sanitized
// source texts concatenated in stable order, all array fields empty.
func fallbackProfile(texts map[string]string) model.ExtractedProfile {
	names := make([]string, 0, len(texts))
	for name := range texts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		text := strings.TrimSpace(texts[name])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(text)
		if b.Len() >= fallbackSummaryChars {
			break
		}
	}

	summary := SanitizeSummary(b.String())
	if runes := []rune(summary); len(runes) > fallbackSummaryChars {
		summary = string(runes[:fallbackSummaryChars])
	}

	profile := model.ExtractedProfile{Summary: summary}
	profile.Normalize()
	return profile
}

// formatSources lays out per-source blocks in stable order for the prompt.
func formatSources(texts map[string]string) string {
	names := make([]string, 0, len(texts))
	for name := range texts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		if strings.TrimSpace(texts[name]) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", name, texts[name])
	}
	return b.String()
}
