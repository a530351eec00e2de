package server

import "time"

// Permissions are the per-user capability flags. Read gates list and
// download; Write gates upload, mkdir, rmdir, rm and rename.
type Permissions struct {
	Read  bool
	Write bool
}

// User is an account record as the server sees it. AccessPath is the
// sandbox root: every path a session for this user touches must resolve
// to a descendant of it.
type User struct {
	ID         int64
	Username   string
	Role       string
	AccessPath string
	Perms      Permissions
}

// SessionRecord is one active login. At most one record exists per user
// id; a second login replaces the first.
type SessionRecord struct {
	UserID    int64
	Token     string
	LoginTime time.Time
}

// UserStore is the persistent user and session store backing the server.
// The server never compares passwords or touches session rows directly;
// everything goes through this interface.
//
// Implementations must be safe for concurrent use: two sessions logging
// in or validating tokens at the same time must never leave more than
// one live session record for a user. sqlstore.Store is the bundled
// SQLite implementation.
type UserStore interface {
	// ValidateCredentials reports whether the username/password pair is
	// valid. Implementations must use a constant-time comparison (e.g.
	// bcrypt). An unknown username is a clean false, not an error.
	ValidateCredentials(username, password string) (bool, error)

	// GetUserByUsername returns the account record, or nil when the user
	// does not exist.
	GetUserByUsername(username string) (*User, error)

	// GetUserByID returns the account record, or nil when the id does
	// not exist.
	GetUserByID(id int64) (*User, error)

	// RecordSession stores the active session for the user, replacing
	// any prior record for the same user id.
	RecordSession(userID int64, token string, at time.Time) error

	// FindSessionByToken returns the session record for the token, or
	// nil when the token is unknown.
	FindSessionByToken(token string) (*SessionRecord, error)

	// EvictSession removes the active session for the user, if any.
	EvictSession(userID int64) error
}
