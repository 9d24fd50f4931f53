package gameserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 16
	tokenBytes     = 32
)

// ErrInvalidUsername is returned for names that do not canonicalise.
var ErrInvalidUsername = errors.New("invalid username")

// CanonicalUsername lowercases and validates a username. The canonical form
// is the session identity: 3 to 16 characters of [a-z0-9_].
func CanonicalUsername(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < minUsernameLen || len(name) > maxUsernameLen {
		return "", fmt.Errorf("%w: length must be %d..%d", ErrInvalidUsername, minUsernameLen, maxUsernameLen)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidUsername, r)
		}
	}
	return name, nil
}

// Identities issues resume tokens. Only the blake2b digest of a token is kept;
// a token is valid until it is revoked or a new one is issued.
type Identities struct {
	mu     sync.Mutex
	tokens map[string][blake2b.Size256]byte
}

// NewIdentities creates an empty token table.
func NewIdentities() *Identities {
	return &Identities{tokens: make(map[string][blake2b.Size256]byte)}
}

// Issue creates a fresh token for identity, replacing the previous one.
func (m *Identities) Issue(identity string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating resume token: %w", err)
	}
	token := hex.EncodeToString(raw)

	m.mu.Lock()
	m.tokens[identity] = blake2b.Sum256([]byte(token))
	m.mu.Unlock()
	return token, nil
}

// Verify reports whether token is the current token of identity.
func (m *Identities) Verify(identity, token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	want, ok := m.tokens[identity]
	m.mu.Unlock()
	if !ok {
		return false
	}
	got := blake2b.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// Revoke forgets the token of identity.
func (m *Identities) Revoke(identity string) {
	m.mu.Lock()
	delete(m.tokens, identity)
	m.mu.Unlock()
}
