package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates a missing, unknown or expired session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid session lacking the required privilege.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a duplicate username or email.
	ErrConflict = errors.New("conflict")
	// ErrPolicyRejected indicates a weak or common credential.
	ErrPolicyRejected = errors.New("credential rejected by policy")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationErrors aggregates per-field validation failures. Every field is
// checked and every failure is reported together, never fail-fast.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "validation failed"
}

// Any reports whether at least one field failed.
func (v ValidationErrors) Any() bool {
	return len(v) > 0
}
