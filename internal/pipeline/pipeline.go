// Package pipeline orchestrates one enrichment run end to end: source
// aggregation, structured extraction, firmographic augmentation, the
// provenance-gated merge, versioned persistence, and lead scoring.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-enrich/internal/aggregate"
	"github.com/sells-group/crm-enrich/internal/besteffort"
	"github.com/sells-group/crm-enrich/internal/extract"
	"github.com/sells-group/crm-enrich/internal/leadscore"
	"github.com/sells-group/crm-enrich/internal/merge"
	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/qa"
	"github.com/sells-group/crm-enrich/internal/secrets"
	"github.com/sells-group/crm-enrich/internal/store"
	"github.com/sells-group/crm-enrich/pkg/firmo"
	"github.com/sells-group/crm-enrich/pkg/salesforce"
)

// ErrInvalidInput marks request-shape failures: callers should not retry
// without changing the request.
var ErrInvalidInput = eris.New("pipeline: invalid input")

// resyncWindow is the minimum spacing between full runs for one entity.
// Runs inside the window are skipped unless forced.
const resyncWindow = time.Hour

// RunOptions selects how one enrichment run behaves.
type RunOptions struct {
	// Kind is used only when the entity has no record yet.
	Kind model.EntityKind
	// Mode defaults to ModeFull. ModeMetadataOnly skips fetch, extraction,
	// and augmentation entirely and refreshes sync metadata only.
	Mode model.RunMode
	// Sources overrides the derived source list.
	Sources []aggregate.Source
	// Domain seeds source derivation and firmographics when the record has
	// no domain field yet.
	Domain string
	// Force runs even when the record was synced inside the resync window.
	Force bool
}

// RunResult summarizes one completed run.
type RunResult struct {
	RunID    string
	Version  int
	Strength model.SignalStrength
	Fallback bool
	Skipped  bool
	Applied  int
	Dropped  int
}

// FirmoFactory builds a vendor client scoped to one tenant's API key.
type FirmoFactory func(apiKey string) firmo.Client

// Option configures a Runner.
type Option func(*Runner)

// WithQA enables the post-extraction sanity note, waiting at most wait for
// the annotator before persisting without it.
func WithQA(annotator *qa.Annotator, wait time.Duration) Option {
	return func(r *Runner) {
		r.qa = annotator
		if wait > 0 {
			r.qaWait = wait
		}
	}
}

// WithFirmo enables firmographic augmentation via a per-tenant client factory.
func WithFirmo(factory FirmoFactory) Option {
	return func(r *Runner) {
		r.firmoFor = factory
	}
}

// WithSalesforce enables the best-effort CRM push.
func WithSalesforce(sf salesforce.Client) Option {
	return func(r *Runner) {
		r.sf = sf
	}
}

// WithNow sets a fixed clock for testing.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner executes enrichment runs. Safe for concurrent use; runs for the
// same (tenant, entity) are serialized internally.
type Runner struct {
	store     store.Store
	catalog   *model.Catalog
	agg       *aggregate.Aggregator
	extractor *extract.Extractor
	resolver  *merge.Resolver
	secrets   secrets.Resolver

	qa       *qa.Annotator
	qaWait   time.Duration
	firmoFor FirmoFactory
	sf       salesforce.Client

	locks *keyedLocks
	now   func() time.Time
}

// New creates a Runner over the required collaborators.
func New(st store.Store, catalog *model.Catalog, agg *aggregate.Aggregator, ex *extract.Extractor, sec secrets.Resolver, opts ...Option) *Runner {
	r := &Runner{
		store:     st,
		catalog:   catalog,
		agg:       agg,
		extractor: ex,
		resolver:  merge.NewResolver(catalog),
		secrets:   sec,
		qaWait:    10 * time.Second,
		locks:     newKeyedLocks(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one enrichment run for the entity. The record-mutating span
// is serialized per (tenant, entity).
func (r *Runner) Run(ctx context.Context, tenantID, entityID string, opts RunOptions) (*RunResult, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(entityID) == "" {
		return nil, eris.Wrap(ErrInvalidInput, "pipeline: tenant and entity IDs are required")
	}
	if opts.Mode == "" {
		opts.Mode = model.ModeFull
	}
	if opts.Kind == "" {
		opts.Kind = model.KindCompany
	}

	unlock := r.locks.acquire(tenantID + "/" + entityID)
	defer unlock()

	run, err := r.store.CreateRun(ctx, tenantID, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	result, err := r.execute(ctx, run, opts)
	if err != nil {
		besteffort.Run("mark run failed", func() error {
			return r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
		})
		return nil, err
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark run complete")
	}
	result.RunID = run.ID
	return result, nil
}

func (r *Runner) execute(ctx context.Context, run *model.Run, opts RunOptions) (*RunResult, error) {
	rec, err := r.loadRecord(ctx, run.TenantID, run.EntityID, opts.Kind)
	if err != nil {
		return nil, err
	}

	if opts.Mode == model.ModeMetadataOnly {
		return r.metadataOnly(ctx, run, rec, model.SignalNone)
	}

	if !opts.Force && r.syncedRecently(rec) {
		zap.L().Info("pipeline: synced recently, skipping",
			zap.String("tenant", run.TenantID),
			zap.String("entity", run.EntityID),
		)
		return &RunResult{Version: rec.Version, Skipped: true}, nil
	}

	if err := r.setStatus(ctx, run.ID, model.RunStatusFetchingSources); err != nil {
		return nil, err
	}
	sources := opts.Sources
	if len(sources) == 0 {
		sources = deriveSources(rec, opts.Domain)
	}
	fetched := r.agg.Fetch(ctx, sources)
	if err := r.store.SetSourceState(ctx, &model.SourceState{
		TenantID:  run.TenantID,
		EntityID:  run.EntityID,
		Sources:   fetched.Sources,
		UpdatedAt: r.now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist source state")
	}

	// Nothing fetched anywhere: no generative call is worth making, so the
	// run degrades to a metadata refresh with strength "none".
	if fetched.Empty() {
		zap.L().Info("pipeline: all sources empty, metadata-only run",
			zap.String("tenant", run.TenantID),
			zap.String("entity", run.EntityID),
		)
		return r.metadataOnly(ctx, run, rec, model.SignalNone)
	}

	if err := r.setStatus(ctx, run.ID, model.RunStatusExtracting); err != nil {
		return nil, err
	}
	texts := fetched.Texts()
	domain := recordDomain(rec, opts.Domain)

	var (
		ext      extract.Result
		firmoRec map[string]any
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ext = r.extractor.Extract(gCtx, texts)
		return nil
	})
	g.Go(func() error {
		firmoRec = r.fetchFirmographics(gCtx, run.TenantID, run.EntityID, domain)
		return nil
	})
	_ = g.Wait()

	strength := signalStrength(len(texts), firmoRec != nil)
	qaNote := r.annotate(ctx, &ext, texts)

	if err := r.setStatus(ctx, run.ID, model.RunStatusMerging); err != nil {
		return nil, err
	}
	merged := r.resolver.Apply(rec, sourceEnrichment, profileCandidates(&ext.Profile))
	if firmoRec != nil {
		if rec.FirmoBySource == nil {
			rec.FirmoBySource = make(map[string]map[string]any)
		}
		rec.FirmoBySource[firmoProviderName] = firmoRec
		fm := r.resolver.Apply(rec, sourceFirmographics, firmoCandidates(firmoRec))
		merged.Applied = append(merged.Applied, fm.Applied...)
		merged.Dropped = append(merged.Dropped, fm.Dropped...)
	}
	r.resolver.Apply(rec, sourceEnrichment, metadataCandidates(r.now(), strength))

	if err := r.setStatus(ctx, run.ID, model.RunStatusPersisting); err != nil {
		return nil, err
	}
	rec.Version++
	profile := ext.Profile
	rec.Latest = &profile
	snapshot := &model.VersionSnapshot{
		ID:           uuid.NewString(),
		TenantID:     run.TenantID,
		EntityID:     run.EntityID,
		Version:      rec.Version,
		Profile:      ext.Profile,
		Model:        ext.Model,
		Usage:        model.TokenUsage{InputTokens: ext.Usage.InputTokens, OutputTokens: ext.Usage.OutputTokens},
		SourceHashes: fetched.Hashes(),
		QANote:       qaNote,
		Fallback:     ext.Fallback,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.store.AppendVersion(ctx, snapshot); err != nil {
		return nil, eris.Wrap(err, "pipeline: append version")
	}

	if err := r.setStatus(ctx, run.ID, model.RunStatusScoring); err != nil {
		return nil, err
	}
	score := leadscore.Score(&ext.Profile, strength, r.now())
	rec.Score = &score

	if err := r.store.PutRecord(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "pipeline: put record")
	}

	r.pushCRM(ctx, rec)

	return &RunResult{
		Version:  rec.Version,
		Strength: strength,
		Fallback: ext.Fallback,
		Applied:  len(merged.Applied),
		Dropped:  len(merged.Dropped),
	}, nil
}

// metadataOnly refreshes sync metadata without touching business fields or
// appending a version snapshot.
func (r *Runner) metadataOnly(ctx context.Context, run *model.Run, rec *model.CanonicalRecord, strength model.SignalStrength) (*RunResult, error) {
	if err := r.setStatus(ctx, run.ID, model.RunStatusMerging); err != nil {
		return nil, err
	}
	merged := r.resolver.Apply(rec, sourceEnrichment, metadataCandidates(r.now(), strength))

	if err := r.setStatus(ctx, run.ID, model.RunStatusPersisting); err != nil {
		return nil, err
	}
	if err := r.store.PutRecord(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "pipeline: put record")
	}

	return &RunResult{
		Version:  rec.Version,
		Strength: strength,
		Applied:  len(merged.Applied),
	}, nil
}

func (r *Runner) syncedRecently(rec *model.CanonicalRecord) bool {
	s, ok := rec.Fields["synced_at"].(string)
	if !ok {
		return false
	}
	syncedAt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return false
	}
	return r.now().UTC().Sub(syncedAt) < resyncWindow
}

func (r *Runner) loadRecord(ctx context.Context, tenantID, entityID string, kind model.EntityKind) (*model.CanonicalRecord, error) {
	rec, err := r.store.GetRecord(ctx, tenantID, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return model.NewCanonicalRecord(tenantID, entityID, kind), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load record")
	}
	return rec, nil
}

func (r *Runner) setStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if err := r.store.UpdateRunStatus(ctx, runID, status); err != nil {
		return eris.Wrapf(err, "pipeline: set run status %s", status)
	}
	return nil
}

// fetchFirmographics is best-effort: a missing tenant credential or vendor
// failure degrades augmentation, never the run.
func (r *Runner) fetchFirmographics(ctx context.Context, tenantID, entityID, domain string) map[string]any {
	if r.firmoFor == nil || domain == "" {
		return nil
	}
	key, err := r.secrets.Get(ctx, tenantID, secrets.ProviderFirmographics)
	if err != nil {
		zap.L().Warn("pipeline: firmographics credential lookup failed",
			zap.String("tenant", tenantID), zap.Error(err))
		return nil
	}
	if key == "" {
		return nil
	}

	record, err := r.firmoFor(key).CompanyByDomain(ctx, domain)
	if err != nil {
		zap.L().Warn("pipeline: firmographics unavailable",
			zap.String("tenant", tenantID),
			zap.String("domain", domain),
			zap.Error(err),
		)
		return nil
	}
	if record == nil {
		return nil
	}

	besteffort.Run("archive firmographics payload", func() error {
		payload, err := json.Marshal(record)
		if err != nil {
			return eris.Wrap(err, "pipeline: marshal firmo payload")
		}
		now := r.now().UTC()
		return r.store.AppendArchive(ctx, &model.RawArchiveSnapshot{
			Key:        model.ArchiveKey(now),
			TenantID:   tenantID,
			EntityID:   entityID,
			Provider:   firmoProviderName,
			Payload:    payload,
			CapturedAt: now,
		})
	})
	return record
}

// annotate runs the QA pass in the background and waits a bounded time for
// the note. Fallback profiles are never annotated.
func (r *Runner) annotate(ctx context.Context, ext *extract.Result, texts map[string]string) string {
	if r.qa == nil || ext.Fallback {
		return ""
	}

	noteCh := make(chan string, 1)
	qaCtx, cancel := context.WithTimeout(ctx, r.qaWait)
	besteffort.Go("qa annotate", func() error {
		defer cancel()
		note, err := r.qa.Annotate(qaCtx, &ext.Profile, texts)
		if err != nil {
			return err
		}
		noteCh <- note
		return nil
	})

	select {
	case note := <-noteCh:
		return note
	case <-qaCtx.Done():
		zap.L().Debug("pipeline: qa note not ready, persisting without it")
		return ""
	}
}

// pushCRM writes the catalog's SF-mapped fields to Salesforce, best-effort.
// A new Account's ID is stored back as external_org_id metadata.
func (r *Runner) pushCRM(ctx context.Context, rec *model.CanonicalRecord) {
	if r.sf == nil || rec.Kind != model.KindCompany {
		return
	}

	fields := make(map[string]any)
	for _, def := range r.catalog.Fields {
		if def.SFField == "" {
			continue
		}
		if v, ok := rec.Fields[def.Path]; ok && v != nil {
			fields[def.SFField] = v
		}
	}
	if len(fields) == 0 {
		return
	}

	besteffort.Run("salesforce push", func() error {
		externalID, _ := rec.Fields["external_org_id"].(string)
		if externalID != "" {
			return r.sf.UpdateOne(ctx, "Account", externalID, fields)
		}
		id, err := r.sf.InsertOne(ctx, "Account", fields)
		if err != nil {
			return err
		}
		r.resolver.Apply(rec, sourceEnrichment, []merge.Candidate{
			{Path: "external_org_id", Value: id},
		})
		return r.store.PutRecord(ctx, rec)
	})
}

// deriveSources builds the default source list from the entity's domain.
func deriveSources(rec *model.CanonicalRecord, fallbackDomain string) []aggregate.Source {
	domain := recordDomain(rec, fallbackDomain)
	if domain == "" {
		return nil
	}
	return []aggregate.Source{
		{Name: "website", URL: "https://" + domain},
		{Name: "about", URL: "https://" + domain + "/about"},
		{Name: "careers", URL: "https://" + domain + "/careers"},
	}
}

func recordDomain(rec *model.CanonicalRecord, fallback string) string {
	if s, ok := rec.Fields["domain"].(string); ok && strings.TrimSpace(s) != "" {
		return normalizeDomain(s)
	}
	return normalizeDomain(fallback)
}

func normalizeDomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}

// signalStrength labels the run by usable source material.
func signalStrength(textSources int, firmoVerified bool) model.SignalStrength {
	if firmoVerified {
		return model.SignalVerified
	}
	switch {
	case textSources == 0:
		return model.SignalNone
	case textSources == 1:
		return model.SignalLow
	default:
		return model.SignalHigh
	}
}
