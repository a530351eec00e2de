// Package sqlstore provides the SQLite-backed user and session store for
// the ftpx server, including the administrative surface (adding and
// removing accounts and permission sets) used by management tooling.
//
// Passwords are stored as bcrypt hashes; session rows hold the single
// active auth token per user.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/ehsanmg/ftpx/server"
)

const schema = `
CREATE TABLE IF NOT EXISTS Permission(
	name VARCHAR(15) PRIMARY KEY,
	read BOOLEAN DEFAULT 0,
	write BOOLEAN DEFAULT 0
);

CREATE TABLE IF NOT EXISTS Users(
	id INTEGER PRIMARY KEY NOT NULL,
	username VARCHAR(64) UNIQUE NOT NULL,
	password VARCHAR(256) NOT NULL,
	role VARCHAR(8) DEFAULT 'user',
	accessPath VARCHAR(512) NOT NULL,
	permName VARCHAR(15) DEFAULT 'restricted',
	FOREIGN KEY (permName) REFERENCES Permission (name)
		ON DELETE SET DEFAULT
		ON UPDATE CASCADE
);

CREATE TABLE IF NOT EXISTS LoggedIn(
	id INTEGER PRIMARY KEY NOT NULL,
	userID INTEGER NOT NULL UNIQUE,
	authKey VARCHAR(256) NOT NULL UNIQUE,
	login_datetime TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (userID) REFERENCES Users (id)
		ON DELETE CASCADE
		ON UPDATE CASCADE
);
`

// Store implements server.UserStore on a SQLite database. A single
// *sql.DB serializes concurrent access from multiple sessions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidateCredentials checks the password against the stored bcrypt
// hash. Unknown usernames and wrong passwords are both a clean false.
func (s *Store) ValidateCredentials(username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password FROM Users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credential lookup: %w", err)
	}

	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("password compare: %w", err)
	}
}

const userColumns = `u.id, u.username, u.role, u.accessPath,
	COALESCE(p.read, 0), COALESCE(p.write, 0)
	FROM Users u LEFT JOIN Permission p ON u.permName = p.name`

func (s *Store) scanUser(row *sql.Row) (*server.User, error) {
	var u server.User
	err := row.Scan(&u.ID, &u.Username, &u.Role, &u.AccessPath, &u.Perms.Read, &u.Perms.Write)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user scan: %w", err)
	}
	return &u, nil
}

// GetUserByUsername returns the account record, or nil if absent.
func (s *Store) GetUserByUsername(username string) (*server.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` WHERE u.username = ?`, username))
}

// GetUserByID returns the account record, or nil if absent.
func (s *Store) GetUserByID(id int64) (*server.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` WHERE u.id = ?`, id))
}

// RecordSession stores the user's active session, replacing any prior
// one. The UNIQUE constraint on userID makes the replacement atomic.
func (s *Store) RecordSession(userID int64, token string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO LoggedIn (userID, authKey, login_datetime) VALUES (?, ?, ?)
		ON CONFLICT(userID) DO UPDATE SET authKey = excluded.authKey,
			login_datetime = excluded.login_datetime`,
		userID, token, at.UTC())
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// FindSessionByToken returns the session for the token, or nil if the
// token is unknown.
func (s *Store) FindSessionByToken(token string) (*server.SessionRecord, error) {
	var rec server.SessionRecord
	err := s.db.QueryRow(
		`SELECT userID, authKey, login_datetime FROM LoggedIn WHERE authKey = ?`, token).
		Scan(&rec.UserID, &rec.Token, &rec.LoginTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	return &rec, nil
}

// EvictSession removes the user's active session, if any.
func (s *Store) EvictSession(userID int64) error {
	if _, err := s.db.Exec(`DELETE FROM LoggedIn WHERE userID = ?`, userID); err != nil {
		return fmt.Errorf("evict session: %w", err)
	}
	return nil
}

// --- administrative surface ---

// AddPermission creates a named permission set. Adding an existing name
// is an error.
func (s *Store) AddPermission(name string, read, write bool) error {
	if _, err := s.db.Exec(
		`INSERT INTO Permission (name, read, write) VALUES (?, ?, ?)`,
		name, read, write); err != nil {
		return fmt.Errorf("add permission %q: %w", name, err)
	}
	return nil
}

// GetPermission returns a permission set by name, or nil if absent.
func (s *Store) GetPermission(name string) (*server.Permissions, error) {
	var p server.Permissions
	err := s.db.QueryRow(`SELECT read, write FROM Permission WHERE name = ?`, name).
		Scan(&p.Read, &p.Write)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get permission %q: %w", name, err)
	}
	return &p, nil
}

// AddUser creates an account. The password is bcrypt-hashed and the
// access path stored absolute.
func (s *Store) AddUser(username, password, role, accessPath, permName string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	abs, err := filepath.Abs(accessPath)
	if err != nil {
		return fmt.Errorf("resolve access path: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO Users (username, password, role, accessPath, permName)
		 VALUES (?, ?, ?, ?, ?)`,
		username, string(hash), role, abs, permName); err != nil {
		return fmt.Errorf("add user %q: %w", username, err)
	}
	return nil
}

// RemoveUser deletes an account; its session row cascades away.
func (s *Store) RemoveUser(username string) error {
	if _, err := s.db.Exec(`DELETE FROM Users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("remove user %q: %w", username, err)
	}
	return nil
}

// ListUsers returns up to limit accounts.
func (s *Store) ListUsers(limit int) ([]server.User, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+userColumns+` ORDER BY u.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []server.User
	for rows.Next() {
		var u server.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.AccessPath,
			&u.Perms.Read, &u.Perms.Write); err != nil {
			return nil, fmt.Errorf("user scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
