package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresGetRecord(t *testing.T) {
	st, mock := newMockStore(t)

	rec := model.NewCanonicalRecord("t1", "e1", model.KindCompany)
	rec.Fields["name"] = "Acme"
	doc, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM records`).
		WithArgs("t1", "e1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := st.GetRecord(context.Background(), "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Fields["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRecordNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM records`).
		WithArgs("t1", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}))

	_, err := st.GetRecord(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutRecordUpserts(t *testing.T) {
	st, mock := newMockStore(t)

	rec := model.NewCanonicalRecord("t1", "e1", model.KindCompany)
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs("t1", "e1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.PutRecord(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendVersionAssignsID(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO versions`).
		WithArgs(pgxmock.AnyArg(), "t1", "e1", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v := &model.VersionSnapshot{TenantID: "t1", EntityID: "e1", Version: 1}
	require.NoError(t, st.AppendVersion(context.Background(), v))
	assert.NotEmpty(t, v.ID)
	assert.False(t, v.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCacheEntry(t *testing.T) {
	st, mock := newMockStore(t)
	writtenAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT payload, written_at FROM cache_entries`).
		WithArgs("advisory_result", "k1").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "written_at"}).
			AddRow([]byte(`{"summary":"s"}`), writtenAt))

	got, err := st.GetCacheEntry(context.Background(), "advisory_result", "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"s"}`, string(got.Payload))
	assert.Equal(t, writtenAt, got.WrittenAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetSourceState(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO source_state`).
		WithArgs("t1", "e1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	state := &model.SourceState{TenantID: "t1", EntityID: "e1"}
	require.NoError(t, st.SetSourceState(context.Background(), state))
	assert.False(t, state.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
