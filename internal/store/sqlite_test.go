package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRecordRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetRecord(ctx, "t1", "e1")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := model.NewCanonicalRecord("t1", "e1", model.KindCompany)
	rec.Fields["name"] = "Acme"
	rec.Fields["tags"] = []string{"staffing"}
	rec.Provenance["name"] = "enrichment"
	rec.Version = 3
	require.NoError(t, st.PutRecord(ctx, rec))

	got, err := st.GetRecord(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, model.KindCompany, got.Kind)
	assert.Equal(t, "Acme", got.Fields["name"])
	assert.Equal(t, "enrichment", got.Provenance["name"])
	assert.Equal(t, 3, got.Version)
}

func TestPutRecordOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := model.NewCanonicalRecord("t1", "e1", model.KindCompany)
	rec.Fields["name"] = "First"
	require.NoError(t, st.PutRecord(ctx, rec))

	rec.Fields["name"] = "Second"
	require.NoError(t, st.PutRecord(ctx, rec))

	got, err := st.GetRecord(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Fields["name"])
}

func TestListRecordsScopedToTenant(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, pair := range [][2]string{{"t1", "e1"}, {"t1", "e2"}, {"t2", "e1"}} {
		require.NoError(t, st.PutRecord(ctx, model.NewCanonicalRecord(pair[0], pair[1], model.KindCompany)))
	}

	records, err := st.ListRecords(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestVersionsListedNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.AppendVersion(ctx, &model.VersionSnapshot{
			TenantID:  "t1",
			EntityID:  "e1",
			Version:   i,
			Profile:   model.ExtractedProfile{Summary: "v"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	versions, err := st.ListVersions(ctx, "t1", "e1", 2)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
}

func TestAppendVersionAssignsID(t *testing.T) {
	st := newTestStore(t)
	v := &model.VersionSnapshot{TenantID: "t1", EntityID: "e1", Version: 1}
	require.NoError(t, st.AppendVersion(context.Background(), v))
	assert.NotEmpty(t, v.ID)
}

func TestAppendArchive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := &model.RawArchiveSnapshot{
		TenantID:   "t1",
		EntityID:   "e1",
		Provider:   "firmograph",
		Payload:    json.RawMessage(`{"employee_count": 120}`),
		CapturedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.AppendArchive(ctx, a))
	assert.Equal(t, "20260301100000", a.Key)

	// Same entity, different second: a new archive row.
	b := &model.RawArchiveSnapshot{
		TenantID:   "t1",
		EntityID:   "e1",
		Provider:   "firmograph",
		Payload:    json.RawMessage(`{}`),
		CapturedAt: time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
	}
	require.NoError(t, st.AppendArchive(ctx, b))
}

func TestSourceStateRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetSourceState(ctx, "t1", "e1")
	assert.ErrorIs(t, err, ErrNotFound)

	state := &model.SourceState{
		TenantID: "t1",
		EntityID: "e1",
		Sources: []model.SourceText{
			{Name: "website", URL: "https://acme.com", Text: "hello", Hash: "abc"},
		},
	}
	require.NoError(t, st.SetSourceState(ctx, state))

	got, err := st.GetSourceState(ctx, "t1", "e1")
	require.NoError(t, err)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "website", got.Sources[0].Name)
	assert.Equal(t, "abc", got.Sources[0].Hash)
}

func TestCacheEntryOverwrite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetCacheEntry(ctx, "advisory_result", "k1")
	assert.ErrorIs(t, err, ErrNotFound)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetCacheEntry(ctx, &model.CacheEntry{
		Tier: "advisory_result", Key: "k1",
		Payload:   json.RawMessage(`{"summary":"old"}`),
		WrittenAt: first,
	}))
	require.NoError(t, st.SetCacheEntry(ctx, &model.CacheEntry{
		Tier: "advisory_result", Key: "k1",
		Payload:   json.RawMessage(`{"summary":"new"}`),
		WrittenAt: first.Add(time.Hour),
	}))

	got, err := st.GetCacheEntry(ctx, "advisory_result", "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"new"}`, string(got.Payload))
	assert.True(t, got.WrittenAt.Equal(first.Add(time.Hour)))
}

func TestCacheEntryTiersAreIndependent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, &model.CacheEntry{
		Tier: "advisory_recent", Key: "shared", Payload: json.RawMessage(`"a"`),
	}))

	_, err := st.GetCacheEntry(ctx, "advisory_dedupe", "shared")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))
	assert.ErrorIs(t, st.UpdateRunStatus(ctx, "missing-run", model.RunStatusFailed), ErrNotFound)
}
