// Package id mints prefixed identifiers for scripts, sessions and API
// requests. Script and request IDs are monotonic ULIDs so they sort in
// creation order; session IDs are random UUIDs.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Kind is the prefix naming what an identifier refers to
type Kind string

const (
	Script  Kind = "scr"
	Session Kind = "sess"
	Request Kind = "req"
)

// ScriptID identifies a script within a session
type ScriptID string

// SessionID identifies a session instance
type SessionID string

func (id ScriptID) String() string  { return string(id) }
func (id SessionID) String() string { return string(id) }

// Minter produces ULIDs from one entropy source. Safe for concurrent use.
type Minter struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewMinter returns a minter over monotonic crypto entropy
func NewMinter() *Minter {
	return NewMinterWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewMinterWithEntropy returns a minter reading from entropy, for
// deterministic tests
func NewMinterWithEntropy(entropy io.Reader) *Minter {
	return &Minter{entropy: entropy, now: time.Now}
}

// ULID returns a fresh ULID
func (m *Minter) ULID() ulid.ULID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(m.now()), m.entropy)
}

// New returns a fresh ULID carrying kind as prefix
func (m *Minter) New(kind Kind) string {
	return string(kind) + "_" + m.ULID().String()
}

var shared = NewMinter()

// NewScriptID generates a new script ID
func NewScriptID() ScriptID { return ScriptID(shared.New(Script)) }

// NewRequestID generates an identifier for one API request
func NewRequestID() string { return shared.New(Request) }

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(string(Session) + "_" + uuid.NewString())
}

// Split separates an identifier into its kind and the remainder
func Split(id string) (Kind, string, bool) {
	kind, rest, ok := strings.Cut(id, "_")
	if !ok || kind == "" || rest == "" {
		return "", "", false
	}
	return Kind(kind), rest, true
}

// Is reports whether id is a well-formed identifier of kind
func Is(kind Kind, id string) bool {
	k, rest, ok := Split(id)
	if !ok || k != kind {
		return false
	}
	if kind == Session {
		_, err := uuid.Parse(rest)
		return err == nil
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// Timestamp returns the creation time encoded in a ULID based identifier
func Timestamp(id string) (time.Time, error) {
	if _, rest, ok := Split(id); ok {
		id = rest
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
