package importer

import (
	"strings"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/phone"
)

// Per-row validation messages shown to the organizer.
const (
	MsgNameRequired  = "Nome do convidado é obrigatório"
	MsgPhoneRequired = "Telefone é obrigatório"
	MsgPhoneInvalid  = "Número de telefone inválido"
)

// Candidate is a row that passed validation, with its phone normalized.
type Candidate struct {
	Row   int     `json:"row"`
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Note  *string `json:"note"`
}

// Validation partitions a batch in original row order.
type Validation struct {
	Candidates []Candidate            `json:"candidates"`
	Errors     []models.ImportFailure `json:"errors"`
}

// ValidateRows checks each row on its own; a bad row never aborts the batch.
func ValidateRows(rows []RawRow) Validation {
	v := Validation{
		Candidates: make([]Candidate, 0, len(rows)),
		Errors:     []models.ImportFailure{},
	}
	for _, row := range rows {
		cand, failure := ValidateRow(row)
		if failure != nil {
			v.Errors = append(v.Errors, *failure)
			continue
		}
		v.Candidates = append(v.Candidates, cand)
	}
	return v
}

// ValidateRow applies the name, phone presence and phone format checks in that
// order and reports only the first one that fails.
func ValidateRow(row RawRow) (Candidate, *models.ImportFailure) {
	name := strings.TrimSpace(row.NomeConvidado)
	if name == "" {
		return Candidate{}, &models.ImportFailure{Row: row.Row, Error: MsgNameRequired}
	}
	tel := strings.TrimSpace(row.Telefone)
	if phone.Digits(tel) == "" {
		return Candidate{}, &models.ImportFailure{Row: row.Row, Error: MsgPhoneRequired}
	}
	if !phone.IsValid(tel) {
		return Candidate{}, &models.ImportFailure{Row: row.Row, Error: MsgPhoneInvalid}
	}

	cand := Candidate{Row: row.Row, Name: name, Phone: phone.Format(tel)}
	if note := strings.TrimSpace(row.Observacao); note != "" {
		cand.Note = &note
	}
	return cand, nil
}
