package vacation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/vacation-desk/auth"
)

// SessionSource is the slice of the identity provider the gate needs.
type SessionSource interface {
	GetSession(ctx context.Context, token string) (*auth.Session, error)
	Subscribe(fn func(auth.Event)) func()
}

// ViewState is what the caller is allowed to reach.
type ViewState string

const (
	// ViewAnonymous: no valid session, only sign-up and sign-in.
	ViewAnonymous ViewState = "anonymous"
	// ViewProfileUnavailable: valid session without a profile row, only sign-out.
	ViewProfileUnavailable ViewState = "profile_unavailable"
	// ViewReady: session and profile loaded.
	ViewReady ViewState = "ready"
)

// Viewer is the explicit per-session context handed to request handlers.
type Viewer struct {
	Session auth.Session
	Profile *Profile // nil unless the view is ready
}

// UserID of the viewer.
func (v *Viewer) UserID() UserID { return UserID(v.Session.UserID) }

// View is the result of passing the gate.
type View struct {
	State  ViewState
	Viewer *Viewer // nil when anonymous
}

// Gate decides what a caller can reach and loads their profile.
//
// Resolved sessions are cached per token until they expire or a
// session-change event names them. The profile is never cached: every
// Enter reads it from the store, so balances changed by the external
// approval process show up on the next request.
type Gate struct {
	Sessions SessionSource
	Profiles ProfileStore

	// Now is replaceable for tests.
	Now func() time.Time

	mu          sync.Mutex
	sessions    map[string]auth.Session // by token
	unsubscribe func()
}

// NewGate creates a gate subscribed to the session source.
func NewGate(sessions SessionSource, profiles ProfileStore) *Gate {
	g := &Gate{
		Sessions: sessions,
		Profiles: profiles,
		Now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]auth.Session),
	}
	g.unsubscribe = sessions.Subscribe(g.onSessionEvent)
	return g
}

// Close stops listening for session events.
func (g *Gate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}

func (g *Gate) onSessionEvent(ev auth.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for token, sess := range g.sessions {
		if sess.ID == ev.Session.ID {
			delete(g.sessions, token)
		}
	}
}

// session resolves token through the cache, falling back to the source.
func (g *Gate) session(ctx context.Context, token string) (*auth.Session, error) {
	g.mu.Lock()
	cached, ok := g.sessions[token]
	if ok && !g.Now().Before(cached.ExpiresAt) {
		delete(g.sessions, token)
		ok = false
	}
	g.mu.Unlock()
	if ok {
		return &cached, nil
	}

	sess, err := g.Sessions.GetSession(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}

	g.mu.Lock()
	g.sessions[token] = *sess
	g.mu.Unlock()
	return sess, nil
}

// Enter resolves a bearer token and loads the caller's profile.
func (g *Gate) Enter(ctx context.Context, token string) (View, error) {
	sess, err := g.session(ctx, token)
	if err != nil {
		return View{}, err
	}
	if sess == nil {
		return View{State: ViewAnonymous}, nil
	}

	profile, err := g.Profiles.GetProfile(ctx, UserID(sess.UserID))
	if err != nil {
		log.Printf("[gate] load profile %s failed: %v", sess.UserID, err)
		return View{}, fmt.Errorf("load profile: %w", err)
	}
	viewer := &Viewer{Session: *sess, Profile: profile}
	if profile == nil {
		return View{State: ViewProfileUnavailable, Viewer: viewer}, nil
	}
	return View{State: ViewReady, Viewer: viewer}, nil
}
