// client/session.go
// Session management for the ReviewFlix SDK: an explicit state machine over
// the auth endpoints with credential persistence, startup restore, and a
// stale-response guard so late-arriving auth results never clobber state the
// caller has since moved past.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/reviewflix/reviewflix-go/internal/model"
)

// State enumerates the session lifecycle states.
type State string

const (
	StateUnauthenticated      State = "unauthenticated"       // No credential; the starting and post-logout state
	StateRestoring            State = "restoring"             // A persisted credential is being validated at startup
	StateAuthenticating       State = "authenticating"        // A login or register attempt is in flight
	StateAuthenticated        State = "authenticated"         // A live session exists
	StateAuthenticationFailed State = "authentication_failed" // A login or register attempt failed; collapses to Unauthenticated once the error is read
)

// ErrAuthInFlight is returned when an auth operation is started while
// another one has not yet resolved. Only one attempt may be in flight.
var ErrAuthInFlight = errors.New("another authentication attempt is in flight")

// Session drives the authentication lifecycle for a Client. All methods are
// safe for concurrent use. The zero value is not usable; construct with
// NewSession.
type Session struct {
	client *Client
	store  TokenStore

	mu         sync.Mutex
	state      State
	user       *model.User
	lastErr    error  // Most recent auth failure; cleared when read
	generation uint64 // Bumped on logout so stale responses are discarded
	inflight   bool
}

// NewSession creates a session manager over the client, persisting the
// credential through the given token store.
func NewSession(client *Client, store TokenStore) *Session {
	return &Session{
		client: client,
		store:  store,
		state:  StateUnauthenticated,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the authenticated user, or nil outside StateAuthenticated.
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Err returns the most recent authentication error and clears it. Only the
// latest failure is retained; earlier ones are overwritten. Reading the
// error also collapses StateAuthenticationFailed back to
// StateUnauthenticated: the failed state is transient and exists only until
// the failure has been surfaced.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	if s.state == StateAuthenticationFailed {
		s.state = StateUnauthenticated
	}
	return err
}

// begin marks an auth attempt as in flight and captures the current
// generation. It fails when another attempt is already running.
func (s *Session) begin(state State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return 0, ErrAuthInFlight
	}
	s.inflight = true
	s.state = state
	return s.generation, nil
}

// resolve applies the outcome of an auth attempt. A response from a
// generation that has since been invalidated (logout) is discarded.
func (s *Session) resolve(gen uint64, user *model.User, token string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false

	if gen != s.generation {
		// The caller logged out while this attempt was in flight; the
		// result no longer describes the current session. Drop whatever
		// credential the transport call installed.
		s.client.SetToken("")
		_ = s.store.Clear()
		return
	}

	if err != nil {
		// A failed startup restore lands straight in the signed-out
		// state; a failed login or register surfaces as transient
		// AuthenticationFailed until the error is read.
		if s.state == StateRestoring {
			s.state = StateUnauthenticated
		} else {
			s.state = StateAuthenticationFailed
		}
		s.user = nil
		s.lastErr = err
		s.client.SetToken("")
		_ = s.store.Clear()
		return
	}

	s.state = StateAuthenticated
	s.user = user
	s.lastErr = nil
	if token != "" {
		s.client.SetToken(token)
		_ = s.store.Save(token)
	}
}

// Restore validates a persisted credential at startup. With no stored
// credential the session goes straight to StateUnauthenticated; an invalid
// or expired one is discarded and the session likewise ends
// StateUnauthenticated, with the failure retained for Err.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil || token == "" {
		s.mu.Lock()
		s.state = StateUnauthenticated
		s.user = nil
		s.mu.Unlock()
		return nil
	}

	gen, err := s.begin(StateRestoring)
	if err != nil {
		return err
	}

	s.client.SetToken(token)
	user, err := s.client.Auth.Me(ctx)
	s.resolve(gen, user, token, err)
	return err
}

// Login authenticates with email and password.
func (s *Session) Login(ctx context.Context, email, password string) error {
	gen, err := s.begin(StateAuthenticating)
	if err != nil {
		return err
	}

	data, err := s.client.Auth.Login(ctx, email, password)
	if err != nil {
		s.resolve(gen, nil, "", err)
		return err
	}
	s.resolve(gen, &data.User, data.Token, nil)
	return nil
}

// Register creates a new account and opens a session for it.
func (s *Session) Register(ctx context.Context, req model.RegisterRequest) error {
	gen, err := s.begin(StateAuthenticating)
	if err != nil {
		return err
	}

	data, err := s.client.Auth.Register(ctx, req)
	if err != nil {
		s.resolve(gen, nil, "", err)
		return err
	}
	s.resolve(gen, &data.User, data.Token, nil)
	return nil
}

// Logout terminates the session, clears the persisted credential, and
// invalidates any in-flight auth attempt so its eventual result is
// discarded.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.state = StateUnauthenticated
	s.user = nil
	s.lastErr = nil
	s.mu.Unlock()

	err := s.client.Auth.Logout(ctx)
	_ = s.store.Clear()
	return err
}
