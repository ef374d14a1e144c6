package account

import "time"

// Status is the lifecycle state of a user account.
type Status string

// Account lifecycle states. Only active users may authenticate.
const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// User represents a platform user account. The password is hashed by the
// time it reaches this struct; plaintext is only ever evaluated once by
// the credential checker and discarded.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Status       Status
	Locale       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
