package sqlstore

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seededStore returns a store with a "staff" permission set and one
// account using it.
func seededStore(t *testing.T) *Store {
	t.Helper()
	s := openStore(t)
	if err := s.AddPermission("staff", true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser("alice", "secret", "user", t.TempDir(), "staff"); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddPermission("p", true, false); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening an existing database must not fail on the schema.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	p, err := s2.GetPermission("p")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || !p.Read || p.Write {
		t.Errorf("permission after reopen = %+v", p)
	}
}

func TestValidateCredentials(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	ok, err := s.ValidateCredentials("alice", "secret")
	if err != nil || !ok {
		t.Errorf("valid credentials = %v, %v", ok, err)
	}

	ok, err = s.ValidateCredentials("alice", "wrong")
	if err != nil || ok {
		t.Errorf("wrong password = %v, %v", ok, err)
	}

	ok, err = s.ValidateCredentials("nobody", "secret")
	if err != nil || ok {
		t.Errorf("unknown user = %v, %v; want clean false", ok, err)
	}
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	u, err := s.GetUserByUsername("alice")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil {
		t.Fatal("alice not found")
	}
	if u.Username != "alice" || u.Role != "user" {
		t.Errorf("user = %+v", u)
	}
	if !u.Perms.Read || !u.Perms.Write {
		t.Errorf("perms = %+v, want read+write from staff", u.Perms)
	}
	if !filepath.IsAbs(u.AccessPath) {
		t.Errorf("access path %q not absolute", u.AccessPath)
	}

	byID, err := s.GetUserByID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID == nil || byID.Username != "alice" {
		t.Errorf("GetUserByID = %+v", byID)
	}

	missing, err := s.GetUserByUsername("nobody")
	if err != nil || missing != nil {
		t.Errorf("unknown user = %+v, %v; want nil, nil", missing, err)
	}
}

func TestUserWithoutPermissionRow(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	// permName references no Permission row; the flags coalesce to off.
	if err := s.AddUser("bob", "pw", "user", t.TempDir(), "ghost"); err != nil {
		// Foreign keys may refuse the insert outright, which is also an
		// acceptable outcome; nothing further to check in that case.
		t.Skipf("insert with dangling permName refused: %v", err)
	}

	u, err := s.GetUserByUsername("bob")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil {
		t.Fatal("bob not found")
	}
	if u.Perms.Read || u.Perms.Write {
		t.Errorf("perms = %+v, want all off", u.Perms)
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	if err := s.AddUser("alice", "other", "user", t.TempDir(), "staff"); err == nil {
		t.Error("duplicate username accepted")
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	u, err := s.GetUserByUsername("alice")
	if err != nil || u == nil {
		t.Fatalf("user lookup: %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.RecordSession(u.ID, "token-one", at); err != nil {
		t.Fatal(err)
	}

	rec, err := s.FindSessionByToken("token-one")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.UserID != u.ID {
		t.Fatalf("session = %+v", rec)
	}
	if !rec.LoginTime.Equal(at) {
		t.Errorf("login time = %v, want %v", rec.LoginTime, at)
	}

	// A second record for the same user replaces the first.
	if err := s.RecordSession(u.ID, "token-two", at.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if old, _ := s.FindSessionByToken("token-one"); old != nil {
		t.Error("replaced session still findable")
	}
	if cur, _ := s.FindSessionByToken("token-two"); cur == nil {
		t.Error("replacement session missing")
	}

	if err := s.EvictSession(u.ID); err != nil {
		t.Fatal(err)
	}
	if rec, _ := s.FindSessionByToken("token-two"); rec != nil {
		t.Error("evicted session still findable")
	}

	// Evicting again is a no-op.
	if err := s.EvictSession(u.ID); err != nil {
		t.Errorf("second evict: %v", err)
	}
}

func TestRemoveUserCascadesSession(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	u, err := s.GetUserByUsername("alice")
	if err != nil || u == nil {
		t.Fatalf("user lookup: %v", err)
	}
	if err := s.RecordSession(u.ID, "tok", time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveUser("alice"); err != nil {
		t.Fatal(err)
	}

	gone, err := s.GetUserByUsername("alice")
	if err != nil || gone != nil {
		t.Errorf("removed user = %+v, %v", gone, err)
	}
	if rec, _ := s.FindSessionByToken("tok"); rec != nil {
		t.Error("session survived user removal")
	}
}

func TestListUsers(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	if err := s.AddUser("bob", "pw", "admin", t.TempDir(), "staff"); err != nil {
		t.Fatal(err)
	}

	users, err := s.ListUsers(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("ListUsers returned %d users, want 2", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "bob" {
		t.Errorf("users = %v, %v", users[0].Username, users[1].Username)
	}

	limited, err := s.ListUsers(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d users", len(limited))
	}
}
