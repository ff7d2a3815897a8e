/*
Package auth is the identity provider: password sign-up and sign-in,
sign-out, session lookup, and session-change notifications.

SESSIONS:
  A session is an HS256 JWT whose jti is a stored session row. The row is
  what makes sign-out real: GetSession rejects a token whose row is
  revoked even though the signature and exp are still good.

NOTIFICATIONS:
  Subscribe registers a callback that runs synchronously, on the caller's
  goroutine, for every sign-in and sign-out. Nothing here starts a
  goroutine.

USAGE:
  p := auth.NewProvider(store, []byte(secret), 72*time.Hour)
  unsubscribe := p.Subscribe(func(ev auth.Event) { ... })
  defer unsubscribe()

  id, err := p.SignUp(ctx, "ada@example.com", "hunter22")
  sess, err := p.SignInWithPassword(ctx, "ada@example.com", "hunter22")
  cur, err := p.GetSession(ctx, sess.Token) // nil when invalid
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/warp/vacation-desk/generic"
	"golang.org/x/crypto/bcrypt"
)

// Accepted password lengths in bytes. bcrypt refuses anything past 72.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// Identity is what sign-up returns.
type Identity struct {
	ID    string
	Email string
}

// Session is an authenticated identity plus its bearer token.
type Session struct {
	ID        string
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event is a session-change notification.
type Event struct {
	Type    EventType
	Session Session
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider implements the identity provider on top of a Store.
type Provider struct {
	Store  Store
	Secret []byte
	TTL    time.Duration
	Cost   int // bcrypt cost

	Now func() time.Time

	mu      sync.Mutex
	nextSub int
	subs    map[int]func(Event)
}

// NewProvider creates a provider. TTL <= 0 means 72 hours.
func NewProvider(store Store, secret []byte, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Provider{
		Store:  store,
		Secret: secret,
		TTL:    ttl,
		Cost:   bcrypt.DefaultCost,
		Now:    func() time.Time { return time.Now().UTC() },
		subs:   make(map[int]func(Event)),
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// SIGN UP / SIGN IN / SIGN OUT
// =============================================================================

// SignUp registers a new identity. It does not sign the user in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, generic.NewValidationError("email", "Please fill in all fields")
	}
	if len(password) < MinPasswordLength {
		return nil, generic.NewValidationError("password", "Password should be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return nil, generic.NewValidationError("password", "Password should be at most %d characters", MaxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := IdentityRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.Now(),
	}
	if err := p.Store.InsertIdentity(ctx, rec); err != nil {
		if errors.Is(err, generic.ErrEmailTaken) {
			return nil, err
		}
		log.Printf("[auth] sign up %s failed: %v", email, err)
		return nil, fmt.Errorf("sign up: %w", err)
	}

	return &Identity{ID: rec.ID, Email: rec.Email}, nil
}

// SignInWithPassword checks credentials and opens a new session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, generic.NewValidationError("email", "Please fill in all fields")
	}

	rec, err := p.Store.GetIdentityByEmail(ctx, email)
	if err != nil {
		log.Printf("[auth] sign in %s failed: %v", email, err)
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if rec == nil {
		return nil, generic.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, generic.ErrInvalidCredentials
	}

	now := p.Now()
	srec := SessionRecord{
		ID:        uuid.NewString(),
		UserID:    rec.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.TTL),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: rec.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        srec.ID,
			Subject:   rec.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(srec.ExpiresAt),
		},
	}).SignedString(p.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := p.Store.InsertSession(ctx, srec); err != nil {
		log.Printf("[auth] store session for %s failed: %v", rec.ID, err)
		return nil, fmt.Errorf("sign in: %w", err)
	}

	sess := &Session{
		ID:        srec.ID,
		UserID:    rec.ID,
		Email:     rec.Email,
		Token:     token,
		ExpiresAt: srec.ExpiresAt,
	}
	p.publish(Event{Type: EventSignedIn, Session: *sess})
	return sess, nil
}

// SignOut revokes the session behind token. Signing out an invalid or
// already revoked session is a no-op.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	sess, err := p.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := p.Store.RevokeSession(ctx, sess.ID, p.Now()); err != nil {
		log.Printf("[auth] revoke session %s failed: %v", sess.ID, err)
		return fmt.Errorf("sign out: %w", err)
	}
	p.publish(Event{Type: EventSignedOut, Session: *sess})
	return nil
}

// =============================================================================
// SESSION LOOKUP
// =============================================================================

// GetSession resolves a bearer token. It returns (nil, nil) for anything
// that is not a live session of an existing identity; errors are reserved
// for store failures.
func (p *Provider) GetSession(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return p.Secret, nil
	})
	if err != nil || !parsed.Valid || c.ID == "" {
		return nil, nil
	}

	rec, err := p.Store.GetSession(ctx, c.ID)
	if err != nil {
		log.Printf("[auth] load session %s failed: %v", c.ID, err)
		return nil, fmt.Errorf("get session: %w", err)
	}
	if rec == nil || rec.RevokedAt != nil || rec.UserID != c.Subject {
		return nil, nil
	}
	if !p.Now().Before(rec.ExpiresAt) {
		return nil, nil
	}

	identity, err := p.Store.GetIdentity(ctx, rec.UserID)
	if err != nil {
		log.Printf("[auth] load identity %s failed: %v", rec.UserID, err)
		return nil, fmt.Errorf("get session: %w", err)
	}
	if identity == nil {
		return nil, nil
	}

	return &Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Email:     identity.Email,
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for session-change events and returns a func that
// removes it. fn must not call Subscribe or the returned func.
func (p *Provider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs == nil {
		p.subs = make(map[int]func(Event))
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) publish(ev Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
