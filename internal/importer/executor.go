package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/metrics"
	"github.com/convites-app/backend/pkg/pgutils"
)

// MsgConstraintRace is the aggregate failure recorded when the storage unique
// index rejects a batch that passed the duplicate pre-check.
const MsgConstraintRace = "Um ou mais telefones já foram cadastrados para este evento durante a importação"

// GuestInserter writes a batch of invitations in one statement and returns the
// rows storage actually created.
type GuestInserter interface {
	InsertConvites(ctx context.Context, convites []models.Convite) ([]models.Convite, error)
}

// AuditRecorder appends one import attempt to the audit log.
type AuditRecorder interface {
	Record(ctx context.Context, log *models.ImportLog) error
}

// Result is what the caller gets back from a completed import attempt.
type Result struct {
	ImportID      *uuid.UUID             `json:"import_id,omitempty"`
	Total         int                    `json:"total"`
	InsertedCount int                    `json:"inserted_count"`
	FailedCount   int                    `json:"failed_count"`
	Failures      []models.ImportFailure `json:"failures"`
}

// Batch is the input of the executor: validated, de-duplicated candidates plus
// the failures collected before insertion.
type Batch struct {
	EventID    uuid.UUID
	UserID     uuid.UUID
	Total      int
	Candidates []Candidate
	Failures   []models.ImportFailure
	SourceKey  string
}

// Executor inserts a batch and always records the attempt, whatever the outcome.
type Executor struct {
	store  GuestInserter
	audit  AuditRecorder
	logger *zap.Logger
}

// NewExecutor creates an import executor.
func NewExecutor(store GuestInserter, audit AuditRecorder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{store: store, audit: audit, logger: logger}
}

// Execute never returns an error: insert failures become failure entries and
// audit failures are only logged.
func (e *Executor) Execute(ctx context.Context, b Batch) *Result {
	failures := append([]models.ImportFailure{}, b.Failures...)
	inserted := 0

	if len(b.Candidates) > 0 {
		records := make([]models.Convite, len(b.Candidates))
		for i, c := range b.Candidates {
			userID := b.UserID
			records[i] = models.Convite{
				EventID:       b.EventID,
				NomeConvidado: c.Name,
				Telefone:      c.Phone,
				Observacao:    c.Note,
				Status:        models.ConvitePending,
				ResponsavelID: &userID,
			}
		}

		created, err := e.store.InsertConvites(ctx, records)
		switch {
		case err == nil:
			inserted = len(created)
			if short := len(records) - inserted; short > 0 {
				e.logger.Warn("storage inserted fewer rows than submitted",
					zap.String("event_id", b.EventID.String()),
					zap.Int("submitted", len(records)),
					zap.Int("inserted", inserted))
				failures = append(failures, models.ImportFailure{
					Row:   0,
					Error: fmt.Sprintf("%d registro(s) não foram inseridos pelo banco de dados", short),
				})
			}
		case pgutils.IsUniqueViolation(err):
			e.logger.Warn("unique constraint rejected import batch",
				zap.String("event_id", b.EventID.String()),
				zap.String("constraint", pgutils.ConstraintName(err)))
			failures = append(failures, models.ImportFailure{Row: 0, Error: MsgConstraintRace})
		default:
			e.logger.Error("bulk insert failed", zap.Error(err), zap.String("event_id", b.EventID.String()))
			for _, c := range b.Candidates {
				failures = append(failures, models.ImportFailure{Row: c.Row, Error: "Erro ao inserir: " + err.Error()})
			}
		}
	}

	res := &Result{
		Total:         b.Total,
		InsertedCount: inserted,
		FailedCount:   b.Total - inserted,
		Failures:      failures,
	}
	metrics.ImportRows.WithLabelValues("inserted").Add(float64(res.InsertedCount))
	metrics.ImportRows.WithLabelValues("failed").Add(float64(res.FailedCount))

	entry := &models.ImportLog{
		EventID:             b.EventID,
		UserID:              b.UserID,
		TotalRegistros:      res.Total,
		RegistrosImportados: res.InsertedCount,
		RegistrosFalha:      res.FailedCount,
		Erros:               res.Failures,
		ArquivoKey:          b.SourceKey,
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.logger.Error("record import attempt failed", zap.Error(err), zap.String("event_id", b.EventID.String()))
		return res
	}
	id := entry.ID
	res.ImportID = &id
	return res
}
