// Package session binds server-side state to clients.
//
// A session is identified by an unpredictable token that the client carries
// in the SID cookie. The session holds named attributes; see Attribute for the
// two kinds of values an attribute can hold.
//
// Store is the contract the request layer relies on. MemStore is the
// in-process implementation backed by go-memdb.
package session

import "errors"

// CookieName is the name of the cookie that carries the session token
const CookieName = "SID"

var (
	// ErrNotFound is returned when a session does not exist or has expired
	ErrNotFound = errors.New("session not found")

	// ErrEmptyName is returned when an attribute name is empty
	ErrEmptyName = errors.New("empty session attribute name")
)

// Store is a process-wide session store.
//
// All methods are safe for concurrent use. Each call either takes effect
// atomically or reports that the session was not found.
type Store interface {
	// Create starts a new session and returns its token
	Create() (string, error)

	// Find reports whether the session is live
	Find(id string) bool

	// SetAttribute stores an attribute, replacing any previous one with the
	// same name regardless of kind
	SetAttribute(id, name string, attr Attribute) error

	// Attribute returns an attribute
	Attribute(id, name string) (Attribute, bool)

	// AttributeNames returns the names of all attributes of a session
	AttributeNames(id string) []string

	// RemoveAttribute removes an attribute if it exists
	RemoveAttribute(id, name string)

	// Remove removes the session with all its attributes
	Remove(id string)
}
