package registry

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRecordJSON(t *testing.T, rec *ContractRecord) []byte {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	return raw
}

func TestPostgresUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registry_contracts")).
		WithArgs("rec-1", "CCTOKEN1", "testnet", "1.0.0", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Upsert(context.Background(), &ContractRecord{
		ID:          "rec-1",
		ContractID:  "CCTOKEN1",
		Name:        "Token",
		Network:     "testnet",
		Version:     "1.0.0",
		PublishedAt: time.Now(),
		UpdatedAt:   time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatest_PicksHighestSemver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)

	old := mustRecordJSON(t, &ContractRecord{ID: "rec-1", ContractID: "CCTOKEN1", Version: "1.2.0"})
	newer := mustRecordJSON(t, &ContractRecord{ID: "rec-2", ContractID: "CCTOKEN1", Version: "1.10.0"})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT record_json FROM registry_contracts WHERE contract_id = $1")).
		WithArgs("CCTOKEN1").
		WillReturnRows(sqlmock.NewRows([]string{"record_json"}).AddRow(old).AddRow(newer))

	rec, err := store.Latest(context.Background(), "CCTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatest_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT record_json FROM registry_contracts WHERE contract_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"record_json"}))

	_, err = store.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresCreateAndGetPatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	p := &PatchRecord{
		ID:             "patch-1",
		Version:        "1.0.1",
		WasmHash:       "sha256:abc",
		Severity:       SeverityHigh,
		RolloutPercent: 50,
		CreatedAt:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registry_patches")).
		WithArgs("patch-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreatePatch(context.Background(), p))

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT patch_json FROM registry_patches WHERE id = $1")).
		WithArgs("patch-1").
		WillReturnRows(sqlmock.NewRows([]string{"patch_json"}).AddRow(raw))

	got, err := store.GetPatch(context.Background(), "patch-1")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, got.Severity)
	assert.Equal(t, 50, got.RolloutPercent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetPatch_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT patch_json FROM registry_patches WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"patch_json"}))

	_, err = store.GetPatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRecordApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registry_patch_applications")).
		WithArgs("patch-1", "CCTOKEN1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.RecordApplication(context.Background(), &PatchApplication{
		PatchID:    "patch-1",
		ContractID: "CCTOKEN1",
		AppliedAt:  time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
