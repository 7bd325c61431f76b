package domain

import "errors"

// ErrMalformedResponse marks a completion response without usable assistant
// content. ErrTurnConflict means another cycle wrote to the session first.
var (
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTurnConflict      = errors.New("session changed concurrently")
)

// StoredTurn is a single persisted transcript entry.
type StoredTurn struct {
	PK        string
	SK        string
	SessionID string
	Seq       int
	Role      Role
	Content   string
	TTL       int64
}

// SessionMeta stores aggregate page-session state.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	DisplayName  string
	LastActivity string
	Turns        int
	TTL          int64
}

// Session is a page session rebuilt from storage.
type Session struct {
	ID          string
	DisplayName string
	Turns       []Turn
}
