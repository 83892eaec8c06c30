// Package session persists the backend bearer token under the pabellon home
// and hands it to the API client. A token past its JWT exp is torn down
// locally; a token the backend rejects is torn down by the client.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ankittk/pabellon/pkg/client"
)

// Session is the on-disk record written by login.
type Session struct {
	Token    string    `yaml:"token"`
	Username string    `yaml:"username,omitempty"`
	APIURL   string    `yaml:"api_url,omitempty"`
	IssuedAt time.Time `yaml:"issued_at"`
}

// ExpiresAt returns the JWT exp claim, if the token is a JWT carrying one.
func (s Session) ExpiresAt() (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Subject returns the JWT sub claim (the backend username), if any.
func (s Session) Subject() string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// Store is a file-backed client.TokenSource. Safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time
	log  *zap.Logger

	mu  sync.Mutex
	cur *Session
}

var _ client.TokenSource = (*Store)(nil)

// Path returns <home>/protected/session.yaml.
func Path(home string) string {
	return filepath.Join(home, "protected", "session.yaml")
}

// NewStore returns a store rooted at home.
func NewStore(home string) *Store {
	return &Store{path: Path(home), now: time.Now, log: zap.L().Named("session")}
}

// Save persists s (mode 0600) and makes it current.
func (st *Store) Save(s Session) error {
	if s.Token == "" {
		return errors.New("session: empty token")
	}
	if s.IssuedAt.IsZero() {
		s.IssuedAt = st.now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(st.path, b, 0o600); err != nil {
		return err
	}
	st.mu.Lock()
	st.cur = &s
	st.mu.Unlock()
	return nil
}

// Load returns the current session, reading the file when nothing is cached.
// It returns client.ErrUnauthenticated when no session exists and
// client.ErrSessionExpired (after removing it) when the token is past exp.
func (st *Store) Load() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cur == nil {
		b, err := os.ReadFile(st.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, client.ErrUnauthenticated
		}
		if err != nil {
			return nil, err
		}
		var s Session
		if err := yaml.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", st.path, err)
		}
		if s.Token == "" {
			return nil, client.ErrUnauthenticated
		}
		st.cur = &s
	}
	if exp, ok := st.cur.ExpiresAt(); ok && !st.now().Before(exp) {
		st.log.Info("session token expired; signing out", zap.Time("exp", exp))
		_ = st.clearLocked()
		return nil, client.ErrSessionExpired
	}
	s := *st.cur
	return &s, nil
}

// Token implements client.TokenSource.
func (st *Store) Token() (string, error) {
	s, err := st.Load()
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Invalidate implements client.TokenSource; it removes the session file.
func (st *Store) Invalidate() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.log.Warn("backend rejected session token; signing out")
	_ = st.clearLocked()
}

// Clear removes the session (logout). Missing sessions are not an error.
func (st *Store) Clear() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.clearLocked()
}

func (st *Store) clearLocked() error {
	st.cur = nil
	if err := os.Remove(st.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
