package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTokenTTL is the auth token expiry window.
//
// Policy: sliding renewal. Every successfully validated use refreshes the
// session timestamp, so a token expires only after 15 minutes of
// inactivity, not 15 minutes after login.
const DefaultTokenTTL = 15 * time.Minute

// errInvalidCredentials is returned by login for a bad username/password
// pair. The dispatcher maps it to StatusNotLoggedIn.
var errInvalidCredentials = errors.New("invalid credentials")

// errTokenInvalid is returned by validate for a missing, unknown or
// expired token.
var errTokenInvalid = errors.New("token invalid or expired")

// authGateway issues and validates opaque session tokens, delegating
// credential checks and session persistence to the UserStore.
type authGateway struct {
	store UserStore
	key   []byte // per-process HMAC key; tokens do not survive restarts
	ttl   time.Duration
	now   func() time.Time
}

func newAuthGateway(store UserStore, ttl time.Duration) (*authGateway, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("auth key generation: %w", err)
	}
	return &authGateway{
		store: store,
		key:   key,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// mintToken derives the opaque token for a login. The peer address
// includes the client's ephemeral port, so tokens differ across
// connections even for the same user.
func (g *authGateway) mintToken(username, peerAddr string) string {
	mac := hmac.New(sha256.New, g.key)
	fmt.Fprintf(mac, "%s@%s", username, peerAddr)
	return hex.EncodeToString(mac.Sum(nil))
}

// login validates the credentials and, on success, mints a token and
// records it as the user's single active session. A prior session for
// the same user is replaced, invalidating its token.
func (g *authGateway) login(username, password, peerAddr string) (string, *User, error) {
	ok, err := g.store.ValidateCredentials(username, password)
	if err != nil {
		return "", nil, fmt.Errorf("credential check: %w", err)
	}
	if !ok {
		return "", nil, errInvalidCredentials
	}

	user, err := g.store.GetUserByUsername(username)
	if err != nil {
		return "", nil, fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		return "", nil, errInvalidCredentials
	}

	token := g.mintToken(username, peerAddr)
	if err := g.store.RecordSession(user.ID, token, g.now()); err != nil {
		return "", nil, fmt.Errorf("session record: %w", err)
	}
	return token, user, nil
}

// validate resolves a token to its user. An expired session is evicted
// and rejected; a live one has its timestamp refreshed (sliding window).
func (g *authGateway) validate(token string) (*User, error) {
	if token == "" {
		return nil, errTokenInvalid
	}

	rec, err := g.store.FindSessionByToken(token)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if rec == nil {
		return nil, errTokenInvalid
	}

	if g.now().Sub(rec.LoginTime) > g.ttl {
		if err := g.store.EvictSession(rec.UserID); err != nil {
			return nil, fmt.Errorf("session evict: %w", err)
		}
		return nil, errTokenInvalid
	}

	if err := g.store.RecordSession(rec.UserID, token, g.now()); err != nil {
		return nil, fmt.Errorf("session renew: %w", err)
	}

	user, err := g.store.GetUserByID(rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		return nil, errTokenInvalid
	}
	return user, nil
}
