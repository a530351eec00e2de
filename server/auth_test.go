package server

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// stubStore is an in-memory UserStore for gateway tests.
type stubStore struct {
	mu       sync.Mutex
	users    map[string]*User // by username
	creds    map[string]string
	sessions map[int64]SessionRecord
}

func newStubStore() *stubStore {
	return &stubStore{
		users:    make(map[string]*User),
		creds:    make(map[string]string),
		sessions: make(map[int64]SessionRecord),
	}
}

func (s *stubStore) addUser(u User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := u
	s.users[u.Username] = &dup
	s.creds[u.Username] = password
}

func (s *stubStore) ValidateCredentials(username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.creds[username]
	return ok && stored == password, nil
}

func (s *stubStore) GetUserByUsername(username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	dup := *u
	return &dup, nil
}

func (s *stubStore) GetUserByID(id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			dup := *u
			return &dup, nil
		}
	}
	return nil, nil
}

func (s *stubStore) RecordSession(userID int64, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = SessionRecord{UserID: userID, Token: token, LoginTime: at}
	return nil
}

func (s *stubStore) FindSessionByToken(token string) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sessions {
		if rec.Token == token {
			dup := rec
			return &dup, nil
		}
	}
	return nil, nil
}

func (s *stubStore) EvictSession(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func newTestGateway(t *testing.T, store UserStore, ttl time.Duration) *authGateway {
	t.Helper()
	g, err := newAuthGateway(store, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestLoginHappyPath(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.addUser(User{ID: 1, Username: "alice", AccessPath: "/srv/alice"}, "secret")
	g := newTestGateway(t, store, 0)

	token, user, err := g.login("alice", "secret", "10.0.0.1:40001")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Error("empty token")
	}
	if user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}

	got, err := g.validate(token)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 1 {
		t.Errorf("validated user = %+v", got)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.addUser(User{ID: 1, Username: "alice"}, "secret")
	g := newTestGateway(t, store, 0)

	if _, _, err := g.login("alice", "wrong", "10.0.0.1:1"); !errors.Is(err, errInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, _, err := g.login("nobody", "x", "10.0.0.1:1"); !errors.Is(err, errInvalidCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestTokensDifferPerPeer(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.addUser(User{ID: 1, Username: "alice"}, "secret")
	g := newTestGateway(t, store, 0)

	t1, _, err := g.login("alice", "secret", "10.0.0.1:40001")
	if err != nil {
		t.Fatal(err)
	}
	t2, _, err := g.login("alice", "secret", "10.0.0.1:40002")
	if err != nil {
		t.Fatal(err)
	}
	if t1 == t2 {
		t.Error("tokens for different peers are identical")
	}
}

func TestReloginInvalidatesPriorToken(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.addUser(User{ID: 1, Username: "alice"}, "secret")
	g := newTestGateway(t, store, 0)

	old, _, err := g.login("alice", "secret", "10.0.0.1:40001")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.login("alice", "secret", "10.0.0.2:40002"); err != nil {
		t.Fatal(err)
	}

	if _, err := g.validate(old); !errors.Is(err, errTokenInvalid) {
		t.Errorf("stale token validated: err = %v", err)
	}
}

func TestValidateRejectsUnknownAndEmpty(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, newStubStore(), 0)

	if _, err := g.validate(""); !errors.Is(err, errTokenInvalid) {
		t.Errorf("empty token: err = %v", err)
	}
	if _, err := g.validate("deadbeef"); !errors.Is(err, errTokenInvalid) {
		t.Errorf("unknown token: err = %v", err)
	}
}

func TestTokenSlidingExpiry(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.addUser(User{ID: 1, Username: "alice"}, "secret")
	g := newTestGateway(t, store, 15*time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	token, _, err := g.login("alice", "secret", "10.0.0.1:40001")
	if err != nil {
		t.Fatal(err)
	}

	// Each validated use inside the window renews it.
	for i := 0; i < 3; i++ {
		now = now.Add(10 * time.Minute)
		if _, err := g.validate(token); err != nil {
			t.Fatalf("validation %d failed after renewal: %v", i, err)
		}
	}

	// 16 idle minutes exceed the window; the session is evicted.
	now = now.Add(16 * time.Minute)
	if _, err := g.validate(token); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expired token validated: err = %v", err)
	}
	if rec, _ := store.FindSessionByToken(token); rec != nil {
		t.Error("expired session not evicted")
	}

	// A fresh login works again.
	if _, _, err := g.login("alice", "secret", "10.0.0.1:40003"); err != nil {
		t.Errorf("re-login after expiry failed: %v", err)
	}
}
