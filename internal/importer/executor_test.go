package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convites-app/backend/internal/models"
)

func testBatch(cands ...Candidate) Batch {
	return Batch{
		EventID:    uuid.New(),
		UserID:     uuid.New(),
		Total:      len(cands),
		Candidates: cands,
	}
}

func TestExecuteInsertsAndAudits(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	exec := NewExecutor(store, audit, nil)

	note := "vegetariano"
	b := testBatch(
		Candidate{Row: 1, Name: "Ana", Phone: "+5511999999999", Note: &note},
		Candidate{Row: 3, Name: "Bia", Phone: "+5511988888888"},
	)
	b.Total = 3
	b.Failures = []models.ImportFailure{{Row: 2, Error: MsgNameRequired}}

	res := exec.Execute(context.Background(), b)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.InsertedCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, []models.ImportFailure{{Row: 2, Error: MsgNameRequired}}, res.Failures)
	require.NotNil(t, res.ImportID)

	require.Len(t, store.inserted, 2)
	first := store.inserted[0]
	assert.Equal(t, b.EventID, first.EventID)
	assert.Equal(t, models.ConvitePending, first.Status)
	require.NotNil(t, first.ResponsavelID)
	assert.Equal(t, b.UserID, *first.ResponsavelID)
	assert.Equal(t, &note, first.Observacao)

	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, *res.ImportID, log.ID)
	assert.Equal(t, log.TotalRegistros, log.RegistrosImportados+log.RegistrosFalha)
}

func TestExecuteUniqueViolationIsOneAggregateFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = fmt.Errorf("insert convites: %w", &pgconn.PgError{Code: "23505", ConstraintName: "convites_event_id_telefone_key"})
	audit := &fakeAudit{}

	res := NewExecutor(store, audit, nil).Execute(context.Background(), testBatch(
		Candidate{Row: 1, Name: "Ana", Phone: "+5511999999999"},
		Candidate{Row: 2, Name: "Bia", Phone: "+5511988888888"},
	))

	assert.Equal(t, 0, res.InsertedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, []models.ImportFailure{{Row: 0, Error: MsgConstraintRace}}, res.Failures)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, 2, audit.logs[0].RegistrosFalha)
}

func TestExecuteGenericFailureIsAttributedToEveryRow(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection reset by peer")

	res := NewExecutor(store, &fakeAudit{}, nil).Execute(context.Background(), testBatch(
		Candidate{Row: 1, Name: "Ana", Phone: "+5511999999999"},
		Candidate{Row: 2, Name: "Bia", Phone: "+5511988888888"},
	))

	assert.Equal(t, 0, res.InsertedCount)
	require.Len(t, res.Failures, 2)
	for i, f := range res.Failures {
		assert.Equal(t, i+1, f.Row)
		assert.Contains(t, f.Error, "connection reset by peer")
	}
}

func TestExecuteShortfallIsSurfaced(t *testing.T) {
	store := newFakeStore()
	store.shortBy = 1

	res := NewExecutor(store, &fakeAudit{}, nil).Execute(context.Background(), testBatch(
		Candidate{Row: 1, Name: "Ana", Phone: "+5511999999999"},
		Candidate{Row: 2, Name: "Bia", Phone: "+5511988888888"},
	))

	assert.Equal(t, 1, res.InsertedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Row)
}

func TestExecuteAuditFailureDoesNotFailImport(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{err: errors.New("import_logs unavailable")}

	res := NewExecutor(store, audit, nil).Execute(context.Background(), testBatch(
		Candidate{Row: 1, Name: "Ana", Phone: "+5511999999999"},
	))

	assert.Equal(t, 1, res.InsertedCount)
	assert.Nil(t, res.ImportID)
	assert.Len(t, store.inserted, 1)
}

func TestExecuteWithoutCandidatesSkipsInsert(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	b := testBatch()
	b.Total = 1
	b.Failures = []models.ImportFailure{{Row: 1, Error: MsgPhoneInvalid}}

	res := NewExecutor(store, audit, nil).Execute(context.Background(), b)

	assert.Equal(t, 0, store.insertCalls)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, audit.logs, 1)
}
