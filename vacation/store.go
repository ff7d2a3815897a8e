/*
store.go - Persistence interfaces for profiles and requests

PURPOSE:
  Defines the record store the controller and gate depend on. Three
  entities: users (profiles), vacation_requests, compensation_requests.
  Every query is keyed or filtered by owner identity.

CONTRACT:
  - Get* returns (nil, nil) for a missing row.
  - List* returns newest first (created_at DESC).
  - Update*Status is conditional: it only writes when the current status
    equals `from`, and reports whether a row changed. This is how a
    cancel stays correct if the external approval process moves the
    same row between our read and our write.
  - There is no delete.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory, for tests and dev

SEE ALSO:
  - controller.go: Lifecycle on top of these
  - auth/store.go: Identity and session persistence
*/
package vacation

import "context"

// ProfileStore persists the users entity.
type ProfileStore interface {
	InsertProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id UserID) (*Profile, error)
}

// RequestStore persists both request entities.
type RequestStore interface {
	InsertVacationRequest(ctx context.Context, r VacationRequest) error
	GetVacationRequest(ctx context.Context, id string) (*VacationRequest, error)
	ListVacationRequests(ctx context.Context, owner UserID) ([]VacationRequest, error)
	UpdateVacationStatus(ctx context.Context, id string, from, to Status) (bool, error)

	InsertCompensationRequest(ctx context.Context, r CompensationRequest) error
	GetCompensationRequest(ctx context.Context, id string) (*CompensationRequest, error)
	ListCompensationRequests(ctx context.Context, owner UserID) ([]CompensationRequest, error)
	UpdateCompensationStatus(ctx context.Context, id string, from, to Status) (bool, error)
}

// Store is the full record store.
type Store interface {
	ProfileStore
	RequestStore
}
