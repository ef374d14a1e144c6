// Package credentials holds the security checks applied to passwords at
// registration and reset time. Everything here is a pure function over its
// inputs, which is what keeps it unit-testable without a database.
package credentials

import (
	"strings"
	"unicode"
)

// Policy captures the minimum-strength rules a password must satisfy.
// The policy is configuration; the check is the contract.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy mirrors the platform default: eight characters with full
// character diversity.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Verdict is the outcome of a credential check: pass/fail plus a reason
// suitable for showing to the user.
type Verdict struct {
	OK     bool
	Reason string
}

func pass() Verdict {
	return Verdict{OK: true}
}

func fail(reason string) Verdict {
	return Verdict{Reason: reason}
}

// knownWeak is a short list of passwords that are rejected outright no
// matter what the policy says. Taken from the usual top-leaked lists.
var knownWeak = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"passw0rd":   {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"admin123":   {},
	"letmein":    {},
	"welcome1":   {},
	"sunshine":   {},
	"dragon123":  {},
	"football":   {},
	"monkey123":  {},
	"abc12345":   {},
}

// IsCompliant checks the password against the minimum-strength policy.
// Fixed input, fixed verdict, no hidden state.
func IsCompliant(password string, policy Policy) Verdict {
	if len(password) < policy.MinLength {
		return fail("password is too short")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	switch {
	case policy.RequireUpper && !upper:
		return fail("password needs an uppercase letter")
	case policy.RequireLower && !lower:
		return fail("password needs a lowercase letter")
	case policy.RequireDigit && !digit:
		return fail("password needs a digit")
	case policy.RequireSpecial && !special:
		return fail("password needs a special character")
	}
	return pass()
}

// CredentialsAreCommon rejects passwords that trivially derive from the
// account's own identifiers or appear on the known-weak list. This is the
// anti-credential-stuffing heuristic, not a full strength estimator.
func CredentialsAreCommon(username, email, password string) Verdict {
	lowered := strings.ToLower(password)
	if _, ok := knownWeak[lowered]; ok {
		return fail("password is too common")
	}

	identifiers := []string{
		strings.ToLower(strings.TrimSpace(username)),
		strings.ToLower(strings.TrimSpace(email)),
		emailLocalPart(email),
	}
	for _, id := range identifiers {
		if len(id) < 3 {
			continue
		}
		if strings.Contains(lowered, id) || strings.Contains(id, lowered) {
			return fail("password must not derive from the username or email")
		}
	}
	return pass()
}

// Account is the read-only view of an existing account the duplicate check
// needs. The candidate set is supplied by the caller, never fetched here.
type Account struct {
	Username string
	Email    string
}

// UsernameOrEmailExists reports whether any candidate collides with the
// submitted username or email. Comparison is case-insensitive.
func UsernameOrEmailExists(username, email string, candidates []Account) bool {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	for _, c := range candidates {
		if username != "" && strings.ToLower(c.Username) == username {
			return true
		}
		if email != "" && strings.ToLower(c.Email) == email {
			return true
		}
	}
	return false
}

func emailLocalPart(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return ""
}
