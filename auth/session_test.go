package auth

import (
	"testing"
	"time"
)

func TestVerifierIssueThenVerifyRoundTrips(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"), "contestcore-test")
	if err != nil {
		t.Fatalf("NewVerifier() returned error: %v", err)
	}

	want := Session{UserID: "user-1", Email: "a@example.com", DisplayName: "Alice"}
	token, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}
	if got != want {
		t.Fatalf("Verify() = %+v, want %+v", got, want)
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"), "contestcore-test")
	if err != nil {
		t.Fatalf("NewVerifier() returned error: %v", err)
	}

	token, err := v.Issue(Session{UserID: "user-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatal("Verify() should reject an already-expired token")
	}
}

func TestVerifierRejectsTokenFromDifferentSecret(t *testing.T) {
	v1, _ := NewVerifier([]byte("secret-one"), "contestcore-test")
	v2, _ := NewVerifier([]byte("secret-two"), "contestcore-test")

	token, err := v1.Issue(Session{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}
	if _, err := v2.Verify(token); err == nil {
		t.Fatal("Verify() should reject a token signed with a different secret")
	}
}

func TestNewVerifierRejectsEmptySecret(t *testing.T) {
	if _, err := NewVerifier(nil, "contestcore-test"); err == nil {
		t.Fatal("NewVerifier() should reject an empty secret")
	}
}

func TestBcryptVerifierHashThenVerify(t *testing.T) {
	v := NewBcryptVerifier()

	hash, err := v.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() returned error: %v", err)
	}
	if !v.Verify("correct horse battery staple", hash) {
		t.Fatal("Verify() should accept the password that was hashed")
	}
	if v.Verify("wrong password", hash) {
		t.Fatal("Verify() should reject a non-matching password")
	}
}

func TestAllowAllCheckerAlwaysAllows(t *testing.T) {
	result, err := AllowAllChecker{}.CanUserPerformAction(nil, "user-1", ActionTrade)
	if err != nil {
		t.Fatalf("CanUserPerformAction() returned error: %v", err)
	}
	if !result.Allowed {
		t.Fatal("AllowAllChecker should always allow")
	}
}
