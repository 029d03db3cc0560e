// Package advisory guards the expensive advisory-generation call behind four
// independently-keyed, independently-timed cache tiers, consulted in fixed
// priority order: result, recent, rate-limit, dedupe.
package advisory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/store"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

// Tier names; each is an independent key namespace in the cache table.
const (
	TierResult    = "advisory_result"
	TierRecent    = "advisory_recent"
	TierRateLimit = "advisory_ratelimit"
	TierDedupe    = "advisory_dedupe"
)

// Config holds per-tier TTLs. Zero values take the defaults.
type Config struct {
	ResultTTL    time.Duration
	RecentTTL    time.Duration
	RateLimitTTL time.Duration
	DedupeTTL    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResultTTL <= 0 {
		c.ResultTTL = 12 * time.Hour
	}
	if c.RecentTTL <= 0 {
		c.RecentTTL = 6 * time.Hour
	}
	if c.RateLimitTTL <= 0 {
		c.RateLimitTTL = time.Hour
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 10 * time.Minute
	}
	return c
}

// Payload is the generated advisory analysis.
type Payload struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
	Risks       []string `json:"risks"`
}

// Result annotates the payload with which guard, if any, served it.
type Result struct {
	Payload     Payload `json:"payload"`
	CacheHit    bool    `json:"cache_hit"`
	Recent      bool    `json:"recent,omitempty"`
	RateLimited bool    `json:"rate_limited,omitempty"`
	Deduped     bool    `json:"deduped,omitempty"`
}

const systemPrompt = "You are a sales advisor. Return only valid JSON with keys summary (string), suggestions (array of strings), risks (array of strings)."

const promptTemplate = `Generate advisory analysis for the deal below.

Tenant: %s
Entity: %s
Stage: %s
Parameters:
%s

Return only the JSON object.`

// Service wires the tier checks in front of the generation call.
type Service struct {
	store store.Store
	ai    anthropic.Client
	model string
	cfg   Config
	now   func() time.Time
}

// New creates an advisory Service.
func New(st store.Store, ai anthropic.Client, modelID string, cfg Config) *Service {
	return &Service{
		store: st,
		ai:    ai,
		model: modelID,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate returns the advisory analysis for (tenant, entity, stage, params),
// serving from the first fresh cache tier and aborting all downstream checks
// and the generation call on a hit. On a full miss it generates and writes
// all four tiers with the same payload and timestamp.
func (s *Service) Generate(ctx context.Context, tenantID, entityID, stage string, params map[string]string) (*Result, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(entityID) == "" {
		return nil, eris.New("advisory: tenant and entity are required")
	}
	if strings.TrimSpace(stage) == "" {
		return nil, eris.New("advisory: stage is required")
	}

	now := s.now().UTC()
	checks := []struct {
		tier     string
		key      string
		ttl      time.Duration
		annotate func(*Result)
	}{
		{TierResult, Fingerprint(tenantID, entityID, stage, params), s.cfg.ResultTTL,
			func(r *Result) {}},
		{TierRecent, scopeKey(tenantID, entityID, stage), s.cfg.RecentTTL,
			func(r *Result) { r.Recent = true }},
		{TierRateLimit, scopeKey(tenantID, entityID), s.cfg.RateLimitTTL,
			func(r *Result) { r.RateLimited = true }},
		{TierDedupe, scopeKey(tenantID, entityID, stage), s.cfg.DedupeTTL,
			func(r *Result) { r.Deduped = true }},
	}

	for _, check := range checks {
		payload, ok := s.lookup(ctx, check.tier, check.key, check.ttl, now)
		if !ok {
			continue
		}
		result := &Result{Payload: *payload, CacheHit: true}
		check.annotate(result)
		zap.L().Info("advisory: cache hit",
			zap.String("tier", check.tier),
			zap.String("tenant", tenantID),
			zap.String("entity", entityID),
			zap.String("stage", stage),
		)
		return result, nil
	}

	payload, err := s.generate(ctx, tenantID, entityID, stage, params)
	if err != nil {
		return nil, err
	}

	s.writeTiers(ctx, tenantID, entityID, stage, params, payload, now)
	return &Result{Payload: *payload}, nil
}

// lookup reads one tier, applying lazy expiry. Store read failures degrade
// to a miss.
func (s *Service) lookup(ctx context.Context, tier, key string, ttl time.Duration, now time.Time) (*Payload, bool) {
	entry, err := s.store.GetCacheEntry(ctx, tier, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("advisory: cache read failed",
				zap.String("tier", tier),
				zap.Error(err),
			)
		}
		return nil, false
	}
	if !entry.Fresh(now, ttl) {
		return nil, false
	}

	var payload Payload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		zap.L().Warn("advisory: corrupt cache payload",
			zap.String("tier", tier),
			zap.Error(err),
		)
		return nil, false
	}
	return &payload, true
}

// writeTiers overwrites all four tiers with the same payload and timestamp.
// Each write is an independent full overwrite; failures are logged only.
func (s *Service) writeTiers(ctx context.Context, tenantID, entityID, stage string, params map[string]string, payload *Payload, now time.Time) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("advisory: marshal payload", zap.Error(err))
		return
	}

	writes := map[string]string{
		TierResult:    Fingerprint(tenantID, entityID, stage, params),
		TierRecent:    scopeKey(tenantID, entityID, stage),
		TierRateLimit: scopeKey(tenantID, entityID),
		TierDedupe:    scopeKey(tenantID, entityID, stage),
	}
	for tier, key := range writes {
		err := s.store.SetCacheEntry(ctx, &model.CacheEntry{
			Tier:      tier,
			Key:       key,
			Payload:   raw,
			WrittenAt: now,
		})
		if err != nil {
			zap.L().Warn("advisory: cache write failed",
				zap.String("tier", tier),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) generate(ctx context.Context, tenantID, entityID, stage string, params map[string]string) (*Payload, error) {
	raw, _, err := s.ai.GenerateStructured(ctx, anthropic.Request{
		Model:     s.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Prompt:    fmt.Sprintf(promptTemplate, tenantID, entityID, stage, formatParams(params)),
	})
	if err != nil {
		return nil, eris.Wrap(err, "advisory: generate")
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, eris.Wrap(err, "advisory: decode payload")
	}
	if payload.Suggestions == nil {
		payload.Suggestions = []string{}
	}
	if payload.Risks == nil {
		payload.Risks = []string{}
	}
	return &payload, nil
}

// Fingerprint hashes all normalized request parameters for the result tier.
func Fingerprint(tenantID, entityID, stage string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", tenantID, entityID, stage)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, strings.TrimSpace(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func scopeKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, params[k])
	}
	if b.Len() == 0 {
		return "(none)"
	}
	return b.String()
}
