package session

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ankittk/pabellon/pkg/client"
)

func signed(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_noSession(t *testing.T) {
	st := NewStore(t.TempDir())
	if _, err := st.Token(); !errors.Is(err, client.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestStore_saveAndReload(t *testing.T) {
	home := t.TempDir()
	tok := signed(t, "admin", time.Now().Add(time.Hour))
	if err := NewStore(home).Save(Session{Token: tok, Username: "admin"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	fi, err := os.Stat(Path(home))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("session file mode: %v", fi.Mode().Perm())
	}

	st := NewStore(home)
	got, err := st.Token()
	if err != nil || got != tok {
		t.Fatalf("Token: %q %v", got, err)
	}
	s, _ := st.Load()
	if s.Subject() != "admin" {
		t.Errorf("Subject: %q", s.Subject())
	}
}

func TestStore_expiredTokenTornDown(t *testing.T) {
	home := t.TempDir()
	st := NewStore(home)
	if err := st.Save(Session{Token: signed(t, "admin", time.Now().Add(time.Minute))}); err != nil {
		t.Fatal(err)
	}
	st.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := st.Token(); !errors.Is(err, client.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := os.Stat(Path(home)); !os.IsNotExist(err) {
		t.Errorf("session file should be removed, stat err=%v", err)
	}
	if _, err := st.Token(); !errors.Is(err, client.ErrUnauthenticated) {
		t.Errorf("after teardown: %v", err)
	}
}

func TestStore_opaqueTokenAccepted(t *testing.T) {
	st := NewStore(t.TempDir())
	if err := st.Save(Session{Token: "not-a-jwt"}); err != nil {
		t.Fatal(err)
	}
	if got, err := st.Token(); err != nil || got != "not-a-jwt" {
		t.Fatalf("Token: %q %v", got, err)
	}
}

func TestStore_invalidate(t *testing.T) {
	home := t.TempDir()
	st := NewStore(home)
	if err := st.Save(Session{Token: "abc"}); err != nil {
		t.Fatal(err)
	}
	st.Invalidate()
	if _, err := os.Stat(Path(home)); !os.IsNotExist(err) {
		t.Errorf("session file should be removed")
	}
	if err := st.Clear(); err != nil {
		t.Errorf("Clear on missing session: %v", err)
	}
}
