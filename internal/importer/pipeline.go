// Package importer turns an uploaded guest list into invitations: decode,
// validate per row, gate on duplicates, bulk insert and audit.
package importer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/pkg/metrics"
)

// Store is the storage capability the pipeline needs for invitations.
type Store interface {
	ExistingPhoneFinder
	GuestInserter
}

// Archiver keeps a copy of an uploaded file and returns its key.
type Archiver interface {
	ArchiveImport(ctx context.Context, eventID uuid.UUID, filename string, data []byte) (string, error)
}

// Request is one import attempt over already decoded rows.
type Request struct {
	EventID   uuid.UUID
	UserID    uuid.UUID
	Rows      []RawRow
	SourceKey string
}

// FileRequest is one import attempt over an uploaded spreadsheet.
type FileRequest struct {
	EventID  uuid.UUID
	UserID   uuid.UUID
	Filename string
	Data     []byte
}

// Preview is the dry-run outcome shown before the organizer confirms.
type Preview struct {
	Total int `json:"total"`
	Validation
	Duplicates []string `json:"duplicates,omitempty"`
}

// Pipeline runs import attempts strictly in sequence within one call.
type Pipeline struct {
	store    Store
	executor *Executor
	archiver Archiver
	logger   *zap.Logger
}

// NewPipeline creates the import pipeline.
func NewPipeline(store Store, audit AuditRecorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		executor: NewExecutor(store, audit, logger),
		logger:   logger,
	}
}

// SetArchiver enables archiving of uploaded spreadsheets.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// ImportFile decodes an uploaded spreadsheet and runs it through Run.
// Structural problems are returned as *MalformedFileError or *MissingColumnsError.
func (p *Pipeline) ImportFile(ctx context.Context, req FileRequest) (*Result, error) {
	rows, err := ReadSpreadsheet(req.Data)
	if err != nil {
		metrics.ImportAttempts.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}

	var key string
	if p.archiver != nil {
		key, err = p.archiver.ArchiveImport(ctx, req.EventID, req.Filename, req.Data)
		if err != nil {
			p.logger.Warn("archive import file failed", zap.Error(err), zap.String("event_id", req.EventID.String()))
			key = ""
		}
	}

	return p.Run(ctx, Request{EventID: req.EventID, UserID: req.UserID, Rows: rows, SourceKey: key})
}

// Run validates rows, applies both duplicate gates and executes the insert.
// A *DuplicateError means nothing was written and no audit entry exists.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Rows) == 0 {
		err := &MalformedFileError{Reason: "nenhum registro enviado"}
		metrics.ImportAttempts.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}

	v := ValidateRows(req.Rows)
	if err := CheckBatchDuplicates(v.Candidates); err != nil {
		metrics.ImportAttempts.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}
	if err := CheckStorageDuplicates(ctx, p.store, req.EventID, v.Candidates); err != nil {
		metrics.ImportAttempts.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}

	res := p.executor.Execute(ctx, Batch{
		EventID:    req.EventID,
		UserID:     req.UserID,
		Total:      len(req.Rows),
		Candidates: v.Candidates,
		Failures:   v.Errors,
		SourceKey:  req.SourceKey,
	})
	metrics.ImportAttempts.WithLabelValues("completed").Inc()
	p.logger.Info("import completed",
		zap.String("event_id", req.EventID.String()),
		zap.Int("total", res.Total),
		zap.Int("inserted", res.InsertedCount),
		zap.Int("failed", res.FailedCount))
	return res, nil
}

// PreviewFile decodes and validates without touching storage.
func (p *Pipeline) PreviewFile(data []byte) (*Preview, error) {
	rows, err := ReadSpreadsheet(data)
	if err != nil {
		return nil, err
	}
	out := &Preview{Total: len(rows), Validation: ValidateRows(rows)}
	var dup *DuplicateError
	if err := CheckBatchDuplicates(out.Candidates); errors.As(err, &dup) {
		out.Duplicates = dup.Phones
	}
	return out, nil
}

func outcomeOf(err error) string {
	var (
		malformed *MalformedFileError
		missing   *MissingColumnsError
		dup       *DuplicateError
	)
	switch {
	case errors.As(err, &malformed):
		return "malformed_file"
	case errors.As(err, &missing):
		return "missing_columns"
	case errors.As(err, &dup):
		return string(dup.Kind)
	default:
		return "error"
	}
}

// IsFatal reports whether err is a structural error of the upload itself.
func IsFatal(err error) bool {
	var (
		malformed *MalformedFileError
		missing   *MissingColumnsError
	)
	return errors.As(err, &malformed) || errors.As(err, &missing)
}
