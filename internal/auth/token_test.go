package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	tokens, err := NewTokens("s3cret", "ledger")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, err := tokens.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	actor, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if actor != "user-1" {
		t.Fatalf("unexpected actor %q", actor)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens, _ := NewTokens("s3cret", "ledger")
	other, _ := NewTokens("different", "ledger")
	foreign, _ := NewTokens("s3cret", "someone-else")

	expired, _ := NewTokens("s3cret", "ledger")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }

	cases := map[string]func() string{
		"garbage": func() string { return "not-a-token" },
		"wrong secret": func() string {
			tok, _ := other.Issue("user-1", time.Minute)
			return tok
		},
		"wrong issuer": func() string {
			tok, _ := foreign.Issue("user-1", time.Minute)
			return tok
		},
		"expired": func() string {
			tok, _ := expired.Issue("user-1", time.Minute)
			return tok
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Verify(mk()); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected missing secret, got %v", err)
	}
}

func TestIssueRequiresActor(t *testing.T) {
	tokens, _ := NewTokens("s3cret", "")
	if _, err := tokens.Issue(" ", time.Minute); err == nil {
		t.Fatal("expected empty actor to fail")
	}
}
