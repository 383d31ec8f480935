// Package roster provides the in-process store behind the activity directory.
package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"example.com/activitydirectory/internal/domain"
	"example.com/activitydirectory/internal/observability"
)

// entry guards one activity. Locking is per activity so signups for
// different activities never contend.
type entry struct {
	mu       sync.Mutex
	activity domain.Activity
}

// MemoryRepository keeps every activity in memory for the lifetime of the process.
// The set of activity names is fixed at construction.
type MemoryRepository struct {
	entries map[string]*entry
	order   []string
}

// NewMemoryRepository builds a repository seeded with activities.
func NewMemoryRepository(seed []domain.Activity) (*MemoryRepository, error) {
	repo := &MemoryRepository{
		entries: make(map[string]*entry, len(seed)),
		order:   make([]string, 0, len(seed)),
	}
	for _, a := range seed {
		if _, exists := repo.entries[a.Name]; exists {
			return nil, fmt.Errorf("duplicate activity %q in seed", a.Name)
		}
		activity := a.Clone()
		activity.Participants = dedupe(activity.Participants)
		repo.entries[a.Name] = &entry{activity: activity}
		repo.order = append(repo.order, a.Name)
		observability.RecordRosterSize(a.Name, len(activity.Participants))
	}
	sort.Strings(repo.order)
	return repo, nil
}

// List returns a copy of every activity ordered by name.
func (r *MemoryRepository) List(ctx context.Context) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		e.mu.Lock()
		out = append(out, e.activity.Clone())
		e.mu.Unlock()
	}
	return out, nil
}

// Enroll implements domain.Repository.
func (r *MemoryRepository) Enroll(ctx context.Context, activityName, email string) (domain.Activity, error) {
	e, ok := r.entries[activityName]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activity.HasParticipant(email) {
		return domain.Activity{}, domain.ErrAlreadySignedUp
	}
	e.activity.Participants = append(e.activity.Participants, email)
	return e.changed(), nil
}

// Withdraw implements domain.Repository.
func (r *MemoryRepository) Withdraw(ctx context.Context, activityName, email string) (domain.Activity, error) {
	e, ok := r.entries[activityName]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	participants := e.activity.Participants
	for i, p := range participants {
		if p == email {
			e.activity.Participants = append(participants[:i:i], participants[i+1:]...)
			return e.changed(), nil
		}
	}
	return domain.Activity{}, domain.ErrNotSignedUp
}

// changed bumps the revision and publishes the roster size. Callers hold e.mu,
// so the gauge always ends on the latest roster.
func (e *entry) changed() domain.Activity {
	e.activity.Revision++
	observability.RecordRosterSize(e.activity.Name, len(e.activity.Participants))
	return e.activity.Clone()
}

func dedupe(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
