package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/advisory"
	"github.com/sells-group/crm-enrich/internal/aggregate"
	"github.com/sells-group/crm-enrich/internal/extract"
	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/qa"
	"github.com/sells-group/crm-enrich/internal/secrets"
	"github.com/sells-group/crm-enrich/internal/store"
	anthropicpkg "github.com/sells-group/crm-enrich/pkg/anthropic"
	"github.com/sells-group/crm-enrich/pkg/firmo"
	"github.com/sells-group/crm-enrich/pkg/reader"
	"github.com/sells-group/crm-enrich/pkg/salesforce"
)

// env holds the initialized store, clients, runner, and advisory service
// shared by the enrich/batch/advisory/serve commands.
type env struct {
	Store    store.Store
	Runner   *pipeline.Runner
	Advisory *advisory.Service
	Limits   pipeline.BatchLimits
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store, runs migrations, constructs all API clients, and
// wires the pipeline runner and advisory service. Callers defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (ENRICH_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog, err := model.DefaultCatalog()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	readerClient := reader.NewClient(cfg.Reader.Key, reader.WithBaseURL(cfg.Reader.BaseURL))
	agg := aggregate.New(readerClient, cfg.Pipeline.MaxSourceChars)
	extractor := extract.New(aiClient, cfg.Anthropic.ExtractModel, cfg.Anthropic.MaxTokens)
	resolver := secrets.NewStatic(cfg.Secrets)

	opts := []pipeline.Option{
		pipeline.WithFirmo(func(apiKey string) firmo.Client {
			return firmo.NewClient(apiKey, firmo.WithBaseURL(cfg.Firmo.BaseURL))
		}),
	}
	if cfg.Pipeline.QAEnabled {
		annotator := qa.New(aiClient, cfg.Anthropic.QAModel)
		opts = append(opts, pipeline.WithQA(annotator, time.Duration(cfg.Pipeline.QAWaitSecs)*time.Second))
	}

	// Salesforce is optional: without credentials the CRM push is skipped.
	if cfg.Salesforce.ClientID != "" && cfg.Salesforce.Username != "" && cfg.Salesforce.KeyPath != "" {
		sfClient, err := salesforce.Connect(salesforce.Credentials{
			LoginURL: cfg.Salesforce.LoginURL,
			ClientID: cfg.Salesforce.ClientID,
			Username: cfg.Salesforce.Username,
			KeyPath:  cfg.Salesforce.KeyPath,
		}, salesforce.WithRateLimit(cfg.Salesforce.RateRPS))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithSalesforce(sfClient))
		zap.L().Info("salesforce push enabled", zap.String("username", cfg.Salesforce.Username))
	} else {
		zap.L().Debug("salesforce not configured, CRM push disabled")
	}

	runner := pipeline.New(st, catalog, agg, extractor, resolver, opts...)

	advisorySvc := advisory.New(st, aiClient, cfg.Anthropic.AdvisoryModel, advisory.Config{
		ResultTTL:    cfg.Advisory.ResultTTL(),
		RecentTTL:    cfg.Advisory.RecentTTL(),
		RateLimitTTL: cfg.Advisory.RateLimitTTL(),
		DedupeTTL:    cfg.Advisory.DedupeTTL(),
	})

	return &env{
		Store:    st,
		Runner:   runner,
		Advisory: advisorySvc,
		Limits: pipeline.BatchLimits{
			Global:    cfg.Batch.GlobalLimit,
			PerTenant: cfg.Batch.PerTenantLimit,
			Delay:     time.Duration(cfg.Batch.DelayMS) * time.Millisecond,
		},
	}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
