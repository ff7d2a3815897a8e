/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the record store (vacation.Store) and the identity store
  (auth.Store) on one SQLite database.

INTERFACES IMPLEMENTED:
  vacation.Store: users, vacation_requests, compensation_requests
  auth.Store:     identities, sessions

KEY TABLES:
  identities:            Email + bcrypt hash, one row per account
  sessions:              Issued bearer sessions, revoked on sign-out
  users:                 Profiles (balances, default compensation rate)
  vacation_requests:     Time-off requests
  compensation_requests: Sell-my-days requests

AMOUNTS:
  Days and money are stored as TEXT decimal strings, never REAL, so the
  stored total_amount re-derives exactly from days_to_sell x rate_per_day.

STATUS UPDATES:
  Update*Status runs `UPDATE ... WHERE id = ? AND status = ?` and reports
  whether a row matched. No request row is ever deleted.

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection, which also keeps
  ":memory:" databases from splitting across connections.

USAGE:
  store, err := sqlite.New("./data/vacation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - vacation/store.go: Record store contract
  - auth/store.go: Identity store contract
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/vacation-desk/auth"
	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ vacation.Store = (*Store)(nil)
	_ auth.Store     = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Identities (sign-up / sign-in)
	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Sessions (bearer tokens reference these by jti)
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES identities(id),
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		revoked_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user
		ON sessions(user_id);

	-- Profiles
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'employee',
		annual_vacation_days TEXT NOT NULL,
		remaining_vacation_days TEXT NOT NULL,
		compensation_rate_per_day TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Vacation requests
	CREATE TABLE IF NOT EXISTS vacation_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested INTEGER NOT NULL CHECK (days_requested > 0),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- History view: owner, newest first
	CREATE INDEX IF NOT EXISTS idx_vacation_requests_user_created
		ON vacation_requests(user_id, created_at DESC);

	-- Compensation requests
	CREATE TABLE IF NOT EXISTS compensation_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		days_to_sell TEXT NOT NULL,
		rate_per_day TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_compensation_requests_user_created
		ON compensation_requests(user_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// IDENTITY STORE (auth.Store interface)
// =============================================================================

// InsertIdentity stores a new identity.
func (s *Store) InsertIdentity(ctx context.Context, rec auth.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO identities (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		rec.ID, rec.Email, rec.PasswordHash, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if isUniqueConstraintError(err) && strings.Contains(err.Error(), "identities.email") {
		return generic.ErrEmailTaken
	}
	return err
}

// GetIdentityByEmail retrieves an identity by normalised email.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*auth.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryIdentity(ctx,
		"SELECT id, email, password_hash, created_at FROM identities WHERE email = ?", email)
}

// GetIdentity retrieves an identity by id.
func (s *Store) GetIdentity(ctx context.Context, id string) (*auth.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryIdentity(ctx,
		"SELECT id, email, password_hash, created_at FROM identities WHERE id = ?", id)
}

func (s *Store) queryIdentity(ctx context.Context, query string, args ...any) (*auth.IdentityRecord, error) {
	var rec auth.IdentityRecord
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &rec, nil
}

// InsertSession stores a newly issued session.
func (s *Store) InsertSession(ctx context.Context, rec auth.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		rec.ID, rec.UserID,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.ExpiresAt.UTC().Format(timeLayout),
	)
	return err
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*auth.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec auth.SessionRecord
	var createdAt, expiresAt string
	var revokedAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?", id,
	).Scan(&rec.ID, &rec.UserID, &createdAt, &expiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	rec.ExpiresAt, _ = time.Parse(timeLayout, expiresAt)
	if revokedAt.Valid {
		t, _ := time.Parse(timeLayout, revokedAt.String)
		rec.RevokedAt = &t
	}
	return &rec, nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first time.
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL",
		at.UTC().Format(timeLayout), id,
	)
	return err
}

// =============================================================================
// PROFILE STORE
// =============================================================================

// InsertProfile stores a profile. Profiles are created once and never replaced.
func (s *Store) InsertProfile(ctx context.Context, p vacation.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, email, full_name, role, annual_vacation_days,
			remaining_vacation_days, compensation_rate_per_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	role := p.Role
	if role == "" {
		role = vacation.RoleEmployee
	}

	_, err := s.db.ExecContext(ctx, query,
		string(p.ID), p.Email, p.FullName, string(role),
		p.AnnualVacationDays.String(),
		p.RemainingVacationDays.String(),
		p.CompensationRatePerDay.String(),
		p.CreatedAt.UTC().Format(timeLayout),
		p.UpdatedAt.UTC().Format(timeLayout),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrConcurrentModification
	}
	return err
}

// GetProfile retrieves a profile by identity id.
func (s *Store) GetProfile(ctx context.Context, id vacation.UserID) (*vacation.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, email, full_name, role, annual_vacation_days, remaining_vacation_days,
			compensation_rate_per_day, created_at, updated_at
		FROM users WHERE id = ?
	`

	var p vacation.Profile
	var pid, role, annual, remaining, rate, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(
		&pid, &p.Email, &p.FullName, &role, &annual, &remaining, &rate, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.ID = vacation.UserID(pid)
	p.Role = vacation.Role(role)
	if p.AnnualVacationDays, err = parseDecimal("annual_vacation_days", annual); err != nil {
		return nil, err
	}
	if p.RemainingVacationDays, err = parseDecimal("remaining_vacation_days", remaining); err != nil {
		return nil, err
	}
	if p.CompensationRatePerDay, err = parseDecimal("compensation_rate_per_day", rate); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	p.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &p, nil
}

// =============================================================================
// VACATION REQUEST STORE
// =============================================================================

const vacationColumns = `id, user_id, start_date, end_date, days_requested, status, reason, created_at, updated_at`

// InsertVacationRequest stores a vacation request as given, status included.
func (s *Store) InsertVacationRequest(ctx context.Context, r vacation.VacationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vacation_requests ("+vacationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, string(r.UserID), r.StartDate.String(), r.EndDate.String(), r.DaysRequested,
		string(r.Status), r.Reason,
		r.CreatedAt.UTC().Format(timeLayout), r.UpdatedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetVacationRequest retrieves a vacation request by ID.
func (s *Store) GetVacationRequest(ctx context.Context, id string) (*vacation.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryVacationRequests(ctx,
		"SELECT "+vacationColumns+" FROM vacation_requests WHERE id = ?", id)
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

// ListVacationRequests returns an owner's vacation requests, newest first.
func (s *Store) ListVacationRequests(ctx context.Context, owner vacation.UserID) ([]vacation.VacationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryVacationRequests(ctx,
		"SELECT "+vacationColumns+" FROM vacation_requests WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		string(owner))
}

// UpdateVacationStatus moves a request from one status to another.
func (s *Store) UpdateVacationStatus(ctx context.Context, id string, from, to vacation.Status) (bool, error) {
	return s.updateStatus(ctx, "vacation_requests", id, from, to)
}

func (s *Store) queryVacationRequests(ctx context.Context, query string, args ...any) ([]vacation.VacationRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []vacation.VacationRequest
	for rows.Next() {
		var r vacation.VacationRequest
		var userID, start, end, status, createdAt, updatedAt string
		if err := rows.Scan(
			&r.ID, &userID, &start, &end, &r.DaysRequested, &status, &r.Reason, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		r.UserID = vacation.UserID(userID)
		if r.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if r.EndDate, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		if r.Status, err = vacation.ParseStatus(status); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		r.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

		requests = append(requests, r)
	}

	return requests, rows.Err()
}

// =============================================================================
// COMPENSATION REQUEST STORE
// =============================================================================

const compensationColumns = `id, user_id, days_to_sell, rate_per_day, total_amount, status, notes, created_at, updated_at`

// InsertCompensationRequest stores a compensation request as given.
func (s *Store) InsertCompensationRequest(ctx context.Context, r vacation.CompensationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO compensation_requests ("+compensationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, string(r.UserID),
		r.DaysToSell.String(), r.RatePerDay.String(), r.TotalAmount.StringFixed(2),
		string(r.Status), r.Notes,
		r.CreatedAt.UTC().Format(timeLayout), r.UpdatedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetCompensationRequest retrieves a compensation request by ID.
func (s *Store) GetCompensationRequest(ctx context.Context, id string) (*vacation.CompensationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryCompensationRequests(ctx,
		"SELECT "+compensationColumns+" FROM compensation_requests WHERE id = ?", id)
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

// ListCompensationRequests returns an owner's compensation requests, newest first.
func (s *Store) ListCompensationRequests(ctx context.Context, owner vacation.UserID) ([]vacation.CompensationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCompensationRequests(ctx,
		"SELECT "+compensationColumns+" FROM compensation_requests WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		string(owner))
}

// UpdateCompensationStatus moves a request from one status to another.
func (s *Store) UpdateCompensationStatus(ctx context.Context, id string, from, to vacation.Status) (bool, error) {
	return s.updateStatus(ctx, "compensation_requests", id, from, to)
}

func (s *Store) queryCompensationRequests(ctx context.Context, query string, args ...any) ([]vacation.CompensationRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []vacation.CompensationRequest
	for rows.Next() {
		var r vacation.CompensationRequest
		var userID, days, rate, total, status, createdAt, updatedAt string
		if err := rows.Scan(
			&r.ID, &userID, &days, &rate, &total, &status, &r.Notes, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		r.UserID = vacation.UserID(userID)
		if r.DaysToSell, err = parseDecimal("days_to_sell", days); err != nil {
			return nil, err
		}
		if r.RatePerDay, err = parseDecimal("rate_per_day", rate); err != nil {
			return nil, err
		}
		if r.TotalAmount, err = parseDecimal("total_amount", total); err != nil {
			return nil, err
		}
		if r.Status, err = vacation.ParseStatus(status); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		r.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

		requests = append(requests, r)
	}

	return requests, rows.Err()
}

// =============================================================================
// SHARED
// =============================================================================

// updateStatus is the conditional status write shared by both request tables.
// table is one of two constants, never user input.
func (s *Store) updateStatus(ctx context.Context, table, id string, from, to vacation.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE "+table+" SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), time.Now().UTC().Format(timeLayout), id, string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Helper functions

func parseDecimal(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt %s %q: %w", column, value, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
