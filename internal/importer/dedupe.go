package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ExistingPhoneFinder looks up which of phones are already invited to an event.
type ExistingPhoneFinder interface {
	ExistingPhones(ctx context.Context, eventID uuid.UUID, phones []string) ([]string, error)
}

// CheckBatchDuplicates rejects the whole batch when any normalized phone repeats.
func CheckBatchDuplicates(cands []Candidate) error {
	seen := make(map[string]int, len(cands))
	var dups []string
	for _, c := range cands {
		seen[c.Phone]++
		if seen[c.Phone] == 2 {
			dups = append(dups, c.Phone)
		}
	}
	if len(dups) > 0 {
		return &DuplicateError{Kind: DuplicateInRequest, Phones: dups}
	}
	return nil
}

// CheckStorageDuplicates rejects the whole batch when any phone already has an
// invitation for the event. The storage unique index remains the real arbiter;
// this only fails fast with a readable message.
func CheckStorageDuplicates(ctx context.Context, finder ExistingPhoneFinder, eventID uuid.UUID, cands []Candidate) error {
	if len(cands) == 0 {
		return nil
	}
	phones := make([]string, len(cands))
	for i, c := range cands {
		phones[i] = c.Phone
	}
	existing, err := finder.ExistingPhones(ctx, eventID, phones)
	if err != nil {
		return fmt.Errorf("lookup existing phones: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}
	found := make(map[string]bool, len(existing))
	for _, p := range existing {
		found[p] = true
	}
	var dups []string
	for _, p := range phones {
		if found[p] {
			dups = append(dups, p)
			delete(found, p)
		}
	}
	return &DuplicateError{Kind: DuplicateInStorage, Phones: dups}
}
