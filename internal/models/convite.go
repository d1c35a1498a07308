package models

import (
	"time"

	"github.com/google/uuid"
)

// ConviteStatus is the guest's RSVP state.
type ConviteStatus string

const (
	ConvitePending     ConviteStatus = "pending"
	ConviteConfirmed   ConviteStatus = "confirmed"
	ConviteDeclined    ConviteStatus = "declined"
	ConviteWantsToTalk ConviteStatus = "wants_to_talk"
)

// Valid reports whether s is one of the known statuses.
func (s ConviteStatus) Valid() bool {
	switch s {
	case ConvitePending, ConviteConfirmed, ConviteDeclined, ConviteWantsToTalk:
		return true
	}
	return false
}

// IsResponse reports whether a guest may answer with s. Pending is not an answer.
func (s ConviteStatus) IsResponse() bool {
	return s.Valid() && s != ConvitePending
}

// Convite is one invitation of one guest to one event. (EventID, Telefone) is unique.
type Convite struct {
	ID            uuid.UUID     `json:"id"`
	EventID       uuid.UUID     `json:"event_id"`
	NomeConvidado string        `json:"nome_convidado"`
	Telefone      string        `json:"telefone"`
	Observacao    *string       `json:"observacao,omitempty"`
	Status        ConviteStatus `json:"status"`
	Resposta      *string       `json:"resposta,omitempty"`
	EnviadoEm     *time.Time    `json:"enviado_em,omitempty"`
	RespondidoEm  *time.Time    `json:"respondido_em,omitempty"`
	ResponsavelID *uuid.UUID    `json:"responsavel_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ConviteStats aggregates the RSVP dashboard counters of an event.
type ConviteStats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Confirmed   int `json:"confirmed"`
	Declined    int `json:"declined"`
	WantsToTalk int `json:"wants_to_talk"`
	Sent        int `json:"sent"`
	Responded   int `json:"responded"`
}
