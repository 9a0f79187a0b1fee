package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/datavault/datavault/model"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef")
	user := &model.User{ID: 42, Email: "alice@example.com"}

	token, err := issuer.Issue(user, model.AuthMethodBiometric)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != 42 {
		t.Fatalf("userID = %d, want 42", userID)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.Method != model.AuthMethodBiometric {
		t.Fatalf("method = %q, want %q", claims.Method, model.AuthMethodBiometric)
	}
}

func TestTokenWrongKey(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef")
	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff")
	user := &model.User{ID: 1, Email: "alice@example.com"}

	token, err := issuer.Issue(user, model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, _, err := other.Verify(token); err == nil {
		t.Fatal("token signed with a different key must not verify")
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := &TokenIssuer{
		signingKey: []byte("0123456789abcdef0123456789abcdef"),
		expiresIn:  -time.Minute,
	}
	token, err := issuer.Issue(&model.User{ID: 1, Email: "alice@example.com"}, model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, _, err := issuer.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef")
	if _, _, err := issuer.Verify("not.a.token"); err == nil {
		t.Fatal("garbage input must not verify")
	}
}
