package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCompliant(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"strong", "Xk9#mQ2vL!", true},
		{"too short", "Xk9#m", false},
		{"no uppercase", "xk9#mq2vl!", false},
		{"no lowercase", "XK9#MQ2VL!", false},
		{"no digit", "Xkq#mQvvL!", false},
		{"no special", "Xk9mQ2vLab", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := IsCompliant(tc.password, policy)
			assert.Equal(t, tc.ok, verdict.OK)
			if !tc.ok {
				assert.NotEmpty(t, verdict.Reason)
			}
		})
	}
}

func TestIsCompliantRelaxedPolicy(t *testing.T) {
	policy := Policy{MinLength: 6}

	assert.True(t, IsCompliant("abcdef", policy).OK)
	assert.False(t, IsCompliant("abcde", policy).OK)
}

func TestIsCompliantIsDeterministic(t *testing.T) {
	policy := DefaultPolicy()
	first := IsCompliant("Xk9#mQ2vL!", policy)
	second := IsCompliant("Xk9#mQ2vL!", policy)
	assert.Equal(t, first, second)
}

func TestCredentialsAreCommon(t *testing.T) {
	cases := []struct {
		name     string
		username string
		email    string
		password string
		flagged  bool
	}{
		{"password derived from username", "bob", "bob@example.com", "bob12345", true},
		{"password equals email local part", "lecturer1", "bob@example.com", "bob", true},
		{"password contains email", "someone", "bob@example.com", "xbob@example.comx", true},
		{"known weak", "someone", "someone@example.com", "Password", true},
		{"unrelated strong password", "bob", "bob@example.com", "Xk9#mQ2vL!", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := CredentialsAreCommon(tc.username, tc.email, tc.password)
			assert.Equal(t, !tc.flagged, verdict.OK)
		})
	}
}

func TestUsernameOrEmailExists(t *testing.T) {
	candidates := []Account{
		{Username: "bob", Email: "bob@example.com"},
		{Username: "alice", Email: "alice@example.com"},
	}

	assert.True(t, UsernameOrEmailExists("bob", "fresh@example.com", candidates))
	assert.True(t, UsernameOrEmailExists("fresh", "alice@example.com", candidates))
	assert.True(t, UsernameOrEmailExists("BOB", "", candidates))
	assert.False(t, UsernameOrEmailExists("carol", "carol@example.com", candidates))
	assert.False(t, UsernameOrEmailExists("carol", "carol@example.com", nil))
}
