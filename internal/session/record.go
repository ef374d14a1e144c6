package session

import "time"

// DataLocale is the data key holding the user's preferred locale.
const DataLocale = "locale"

// Record is a server-side session: an opaque client-held token correlated
// with an optionally authenticated user and client metadata. UserID is
// zero until AuthorizeUser binds one; the two states are never mixed.
type Record struct {
	ID        string            `json:"-"`
	UserID    int64             `json:"user_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Agent     string            `json:"agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	LastSeen  time.Time         `json:"last_seen"`

	dirty bool
}

// Authorized reports whether a user has been bound to the session.
func (r *Record) Authorized() bool {
	return r != nil && r.UserID != 0
}

// Locale returns the locale stored at authorization time, if any.
func (r *Record) Locale() string {
	return r.Value(DataLocale)
}

// SessionID returns the opaque session token.
func (r *Record) SessionID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

// Value reads a key from the auxiliary session data.
func (r *Record) Value(key string) string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data[key]
}

// SetValue writes a key into the auxiliary session data. The change stays
// in memory until the store commits the record.
func (r *Record) SetValue(key, value string) {
	if r == nil {
		return
	}
	if r.Data == nil {
		r.Data = make(map[string]string)
	}
	r.Data[key] = value
	r.dirty = true
}

// Dirty reports whether the record carries uncommitted data changes.
func (r *Record) Dirty() bool {
	return r != nil && r.dirty
}
