package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/convites-app/backend/internal/models"
)

type fakeStore struct {
	existing    map[string]bool
	lookupErr   error
	insertErr   error
	shortBy     int
	inserted    []models.Convite
	insertCalls int
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{existing: map[string]bool{}}
	for _, p := range existing {
		s.existing[p] = true
	}
	return s
}

func (s *fakeStore) ExistingPhones(_ context.Context, _ uuid.UUID, phones []string) ([]string, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	var out []string
	for _, p := range phones {
		if s.existing[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertConvites(_ context.Context, convites []models.Convite) ([]models.Convite, error) {
	s.insertCalls++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	created := make([]models.Convite, 0, len(convites))
	for _, c := range convites[:len(convites)-s.shortBy] {
		c.ID = uuid.New()
		created = append(created, c)
		s.existing[c.Telefone] = true
	}
	s.inserted = append(s.inserted, created...)
	return created, nil
}

type fakeAudit struct {
	logs []*models.ImportLog
	err  error
}

func (a *fakeAudit) Record(_ context.Context, log *models.ImportLog) error {
	if a.err != nil {
		return a.err
	}
	log.ID = uuid.New()
	a.logs = append(a.logs, log)
	return nil
}

type fakeArchiver struct {
	key   string
	err   error
	calls int
}

func (a *fakeArchiver) ArchiveImport(_ context.Context, _ uuid.UUID, _ string, _ []byte) (string, error) {
	a.calls++
	return a.key, a.err
}

// buildSheet writes rows into the first worksheet of a new xlsx file.
func buildSheet(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", ref, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func header() []interface{} {
	return []interface{}{"nome_convidado", "telefone", "observacao"}
}
