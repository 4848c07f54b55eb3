package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned when no stored user matches the login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate returns the first user whose username matches and whose stored
// password verifies under creds.
func Authenticate(users []User, username, password string, creds Credentials) (User, error) {
	if creds == nil {
		creds = Plaintext{}
	}
	for _, u := range users {
		if u.Username != username {
			continue
		}
		if creds.Verify(u.Password, password) {
			return u.Clone(), nil
		}
	}
	return User{}, ErrInvalidCredentials
}

// Session holds the signed-in user of one client.
type Session struct {
	mu      sync.RWMutex
	creds   Credentials
	user    *User
	id      string
	started time.Time
	now     func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCredentials sets the credential scheme used by Login.
func WithCredentials(c Credentials) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.creds = c
		}
	}
}

// WithSessionClock overrides the clock used to stamp logins.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession returns a signed-out session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{creds: Plaintext{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the scheme in use.
func (s *Session) Credentials() Credentials {
	return s.creds
}

// Login authenticates against users and replaces the current identity on success.
// A failed login leaves the session unchanged.
func (s *Session) Login(users []User, username, password string) (User, error) {
	u, err := Authenticate(users, username, password, s.creds)
	if err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	s.id = uuid.NewString()
	s.started = s.now().UTC()
	return u.Clone(), nil
}

// Logout clears the session.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.id = ""
	s.started = time.Time{}
}

// Current returns the signed-in user, if any.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return s.user.Clone(), true
}

// Refresh replaces the cached identity with the stored version of the same user
// so scope edits by an administrator take effect immediately. A user that no
// longer exists is signed out.
func (s *Session) Refresh(users []User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	for _, u := range users {
		if u.ID == s.user.ID {
			c := u.Clone()
			s.user = &c
			return
		}
	}
	s.user = nil
	s.id = ""
	s.started = time.Time{}
}

// ID returns the identifier of the current login, empty when signed out.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Started returns when the current login happened.
func (s *Session) Started() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
