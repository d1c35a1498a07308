package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportFailure is one failure entry of an import attempt. Row is 1-based;
// 0 marks an entry that covers the whole batch rather than a single row.
type ImportFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportLog is the append-only audit record of one guest-list import attempt.
// TotalRegistros == RegistrosImportados + RegistrosFalha.
type ImportLog struct {
	ID                  uuid.UUID       `json:"id"`
	EventID             uuid.UUID       `json:"event_id"`
	UserID              uuid.UUID       `json:"user_id"`
	TotalRegistros      int             `json:"total_registros"`
	RegistrosImportados int             `json:"registros_importados"`
	RegistrosFalha      int             `json:"registros_falha"`
	Erros               []ImportFailure `json:"erros"`
	ArquivoKey          string          `json:"arquivo_key,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}
