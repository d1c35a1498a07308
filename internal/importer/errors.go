package importer

import (
	"fmt"
	"strings"
)

// DuplicateKind tags which duplicate gate rejected a batch.
type DuplicateKind string

const (
	// DuplicateInRequest: the same phone appears more than once in the batch.
	DuplicateInRequest DuplicateKind = "duplicidade_na_requisicao"
	// DuplicateInStorage: a phone of the batch is already invited to the event.
	DuplicateInStorage DuplicateKind = "duplicidade_no_banco"
)

// MalformedFileError means the upload could not be decoded into rows at all.
type MalformedFileError struct {
	Reason string
	Err    error
}

func (e *MalformedFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("arquivo inválido: %s (%v)", e.Reason, e.Err)
	}
	return "arquivo inválido: " + e.Reason
}

func (e *MalformedFileError) Unwrap() error { return e.Err }

// MissingColumnsError means the header row lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "colunas obrigatórias ausentes: " + strings.Join(e.Columns, ", ")
}

// DuplicateError rejects a whole batch before anything is written.
type DuplicateError struct {
	Kind   DuplicateKind
	Phones []string
}

func (e *DuplicateError) Error() string {
	switch e.Kind {
	case DuplicateInRequest:
		return "telefones duplicados na planilha: " + strings.Join(e.Phones, ", ")
	default:
		return "telefones já cadastrados para este evento: " + strings.Join(e.Phones, ", ")
	}
}
