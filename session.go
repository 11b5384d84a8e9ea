package avanza

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxInactiveMinutes = 60
	defaultSecondFactorWindow = 60 * time.Second
)

// State is the authentication state of a SessionManager.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingSecondFactor
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// session is the credential bundle issued by a successful handshake. It never
// leaves the SessionManager.
type session struct {
	authenticationSession string
	securityToken         string
	cookies               []*http.Cookie
	customerID            string
	pushSubscriptionID    string
	registrationComplete  bool
	createdAt             time.Time
	generation            uint64
}

// SessionManager owns the login handshake and the resulting session. Other
// components only see it through Attach and MarkExpiredIf.
type SessionManager struct {
	transport          Transport
	log                zerolog.Logger
	now                func() time.Time
	maxInactiveMinutes int
	secondFactorWindow time.Duration

	// handshake admits one Authenticate at a time.
	handshake chan struct{}

	mu         sync.RWMutex
	state      State
	current    *session
	generation uint64
}

// NewSessionManager returns a manager in the unauthenticated state.
func NewSessionManager(t Transport, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		transport:          t,
		log:                log.With().Str("component", "session").Logger(),
		now:                time.Now,
		maxInactiveMinutes: defaultMaxInactiveMinutes,
		secondFactorWindow: defaultSecondFactorWindow,
		handshake:          make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *SessionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CustomerID returns the customer id of the live session.
func (m *SessionManager) CustomerID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return "", false
	}
	return m.current.customerID, true
}

// Authenticate runs the full handshake. Any prior session is dropped as soon
// as the handshake starts. On return the manager is either authenticated or
// unauthenticated; a failed or cancelled handshake never commits a session.
func (m *SessionManager) Authenticate(ctx context.Context, creds Credentials, provider SecondFactorProvider) error {
	select {
	case m.handshake <- struct{}{}:
	case <-ctx.Done():
		return &AuthError{Err: ctx.Err()}
	}
	defer func() { <-m.handshake }()

	committed := false
	m.transition(StateUnauthenticated, nil)
	defer func() {
		if !committed {
			m.transition(StateUnauthenticated, nil)
		}
	}()

	if err := creds.Validate(); err != nil {
		return &AuthError{Kind: err}
	}
	if provider == nil {
		return &AuthError{Kind: ErrMissingCredentials, Err: errors.New("no second factor provider")}
	}

	ch, err := m.submitCredentials(ctx, creds)
	if err != nil {
		return err
	}
	m.transition(StateAwaitingSecondFactor, nil)

	code, err := m.awaitSecondFactor(ctx, provider, ch)
	if err != nil {
		return err
	}

	s, err := m.submitSecondFactor(ctx, ch, code)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &AuthError{Err: err}
	}

	m.transition(StateAuthenticated, s)
	committed = true
	return nil
}

// awaitSecondFactor asks the provider for a code within the validity window
// of the challenge.
func (m *SessionManager) awaitSecondFactor(ctx context.Context, provider SecondFactorProvider, ch Challenge) (string, error) {
	deadline := ch.IssuedAt.Add(m.secondFactorWindow)
	pctx, cancel := context.WithTimeout(ctx, m.secondFactorWindow)
	defer cancel()

	code, err := provider.SecondFactor(pctx, ch)
	if err != nil {
		if ctx.Err() != nil {
			return "", &AuthError{Err: ctx.Err()}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &AuthError{Kind: ErrSecondFactorExpired, Err: err}
		}
		return "", &AuthError{Err: fmt.Errorf("second factor provider: %w", err)}
	}
	if m.now().After(deadline) {
		return "", &AuthError{Kind: ErrSecondFactorExpired}
	}
	if err := validateCode(code); err != nil {
		return "", &AuthError{Kind: ErrSecondFactorRejected, Err: err}
	}
	return code, nil
}

// transition moves to next, installing s when next is StateAuthenticated and
// dropping the session otherwise.
func (m *SessionManager) transition(next State, s *session) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	if next == StateAuthenticated {
		m.generation++
		s.generation = m.generation
		m.current = s
	} else {
		m.current = nil
	}
	m.mu.Unlock()

	if prev != next {
		m.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("session state changed")
	}
}

// Attach adds the session headers and cookies to req.
func (m *SessionManager) Attach(req *Request) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.state {
	case StateAuthenticated:
	case StateExpired:
		return ErrSessionExpired
	default:
		return ErrNotAuthenticated
	}

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set(headerAuthenticationSession, m.current.authenticationSession)
	req.Header.Set(headerSecurityToken, m.current.securityToken)
	req.Cookies = append(req.Cookies, m.current.cookies...)
	req.generation = m.current.generation
	return nil
}

// MarkExpiredIf reports whether resp says the session it was sent with is no
// longer valid. If that session is still the current one the manager moves to
// StateExpired. A stale response never expires a newer session.
func (m *SessionManager) MarkExpiredIf(resp *Response) bool {
	if resp == nil || resp.Request == nil || resp.Request.generation == 0 {
		return false
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return false
	}

	m.mu.Lock()
	expire := m.state == StateAuthenticated && m.current.generation == resp.Request.generation
	if expire {
		m.state = StateExpired
		m.current = nil
	}
	m.mu.Unlock()

	if expire {
		m.log.Info().Int("status_code", resp.StatusCode).Str("path", resp.Request.Path).Msg("session expired")
	}
	return true
}

// Logout drops the session locally.
func (m *SessionManager) Logout() {
	m.transition(StateUnauthenticated, nil)
}
