// Package memory provides in-memory implementations of vacation.Store and
// auth.Store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/vacation-desk/auth"
	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	profiles      map[vacation.UserID]vacation.Profile
	vacations     map[string]vacation.VacationRequest
	compensations map[string]vacation.CompensationRequest

	identities map[string]auth.IdentityRecord // by id
	emails     map[string]string              // email -> id
	sessions   map[string]auth.SessionRecord

	// seq orders rows inserted with identical CreatedAt, newest last.
	seq      int
	inserted map[string]int
}

func New() *Memory {
	return &Memory{
		profiles:      make(map[vacation.UserID]vacation.Profile),
		vacations:     make(map[string]vacation.VacationRequest),
		compensations: make(map[string]vacation.CompensationRequest),
		identities:    make(map[string]auth.IdentityRecord),
		emails:        make(map[string]string),
		sessions:      make(map[string]auth.SessionRecord),
		inserted:      make(map[string]int),
	}
}

var (
	_ vacation.Store = (*Memory)(nil)
	_ auth.Store     = (*Memory)(nil)
)

func (m *Memory) mark(id string) {
	m.seq++
	m.inserted[id] = m.seq
}

// newestFirst sorts by CreatedAt DESC, then insertion order DESC.
func (m *Memory) newestFirst(ids []string, createdAt func(i int) time.Time) {
	sort.SliceStable(ids, func(i, j int) bool {
		ci, cj := createdAt(i), createdAt(j)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return m.inserted[ids[i]] > m.inserted[ids[j]]
	})
}

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) InsertProfile(_ context.Context, p vacation.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[p.ID]; exists {
		return generic.ErrConcurrentModification
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) GetProfile(_ context.Context, id vacation.UserID) (*vacation.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// =============================================================================
// VACATION REQUESTS
// =============================================================================

func (m *Memory) InsertVacationRequest(_ context.Context, r vacation.VacationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vacations[r.ID]; exists {
		return generic.ErrConcurrentModification
	}
	m.vacations[r.ID] = r
	m.mark(r.ID)
	return nil
}

func (m *Memory) GetVacationRequest(_ context.Context, id string) (*vacation.VacationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.vacations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListVacationRequests(_ context.Context, owner vacation.UserID) ([]vacation.VacationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, r := range m.vacations {
		if r.UserID == owner {
			ids = append(ids, id)
		}
	}
	m.newestFirst(ids, func(i int) time.Time { return m.vacations[ids[i]].CreatedAt })

	result := make([]vacation.VacationRequest, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.vacations[id])
	}
	return result, nil
}

func (m *Memory) UpdateVacationStatus(_ context.Context, id string, from, to vacation.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.vacations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	m.vacations[id] = r
	return true, nil
}

// =============================================================================
// COMPENSATION REQUESTS
// =============================================================================

func (m *Memory) InsertCompensationRequest(_ context.Context, r vacation.CompensationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.compensations[r.ID]; exists {
		return generic.ErrConcurrentModification
	}
	m.compensations[r.ID] = r
	m.mark(r.ID)
	return nil
}

func (m *Memory) GetCompensationRequest(_ context.Context, id string) (*vacation.CompensationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.compensations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListCompensationRequests(_ context.Context, owner vacation.UserID) ([]vacation.CompensationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, r := range m.compensations {
		if r.UserID == owner {
			ids = append(ids, id)
		}
	}
	m.newestFirst(ids, func(i int) time.Time { return m.compensations[ids[i]].CreatedAt })

	result := make([]vacation.CompensationRequest, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.compensations[id])
	}
	return result, nil
}

func (m *Memory) UpdateCompensationStatus(_ context.Context, id string, from, to vacation.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.compensations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	m.compensations[id] = r
	return true, nil
}

// =============================================================================
// IDENTITIES + SESSIONS
// =============================================================================

func (m *Memory) InsertIdentity(_ context.Context, rec auth.IdentityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.emails[rec.Email]; taken {
		return generic.ErrEmailTaken
	}
	m.identities[rec.ID] = rec
	m.emails[rec.Email] = rec.ID
	return nil
}

func (m *Memory) GetIdentityByEmail(_ context.Context, email string) (*auth.IdentityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return nil, nil
	}
	rec := m.identities[id]
	return &rec, nil
}

func (m *Memory) GetIdentity(_ context.Context, id string) (*auth.IdentityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) InsertSession(_ context.Context, rec auth.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = rec
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*auth.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok || rec.RevokedAt != nil {
		return nil
	}
	rec.RevokedAt = &at
	m.sessions[id] = rec
	return nil
}
