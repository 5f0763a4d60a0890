package auth

import (
	"testing"
	"time"

	"meteor-store/internal/store"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatal("expected correct password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("user-1", []string{"admin", "user"}, "test-secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %s, want user-1", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if exp := claims.ExpiresAt.Time; time.Until(exp) > AccessTokenTTL {
		t.Fatalf("expiry too far out: %v", exp)
	}

	if _, err := ParseAccessToken(token, "other-secret"); err == nil {
		t.Fatal("expected verification to fail with the wrong secret")
	}
	if _, err := ParseAccessToken("not.a.token", "test-secret"); err == nil {
		t.Fatal("expected parse error for garbage token")
	}
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	a := GenerateRefreshToken()
	b := GenerateRefreshToken()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty tokens, got %q and %q", a, b)
	}
}

func TestBootstrap(t *testing.T) {
	st := store.New()
	h := NewAuthHandler(st, "test-secret")

	if err := h.Bootstrap("admin@example.com", "changeme"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	users := st.Model(usersModel)
	if users.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", users.Len())
	}

	admin, ok := h.findUserByEmail("admin@example.com")
	if !ok {
		t.Fatal("expected to find bootstrapped admin by email")
	}
	roles := extractRoles(userField(admin, "roles"))
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	hash, _ := userField(admin, "password_hash").(string)
	if !CheckPassword("changeme", hash) {
		t.Fatal("expected stored hash to verify the bootstrap password")
	}

	// Idempotent once users exist.
	if err := h.Bootstrap("other@example.com", "x"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if users.Len() != 1 {
		t.Fatalf("expected bootstrap to be a no-op, got %d users", users.Len())
	}
}

func TestTokenPairStoresRefreshToken(t *testing.T) {
	st := store.New()
	h := NewAuthHandler(st, "test-secret")

	pair, err := h.generateTokenPair("user-1", []string{"user"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}

	tok, ok := st.Model(tokensModel).Get(pair.RefreshToken)
	if !ok {
		t.Fatal("expected refresh token to be stored")
	}
	if uid, _ := userField(tok, "user_id").(string); uid != "user-1" {
		t.Fatalf("stored user_id = %q, want user-1", uid)
	}
	expiresAt, _ := userField(tok, "expires_at").(time.Time)
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}
}

func TestExtractRoles(t *testing.T) {
	if roles := extractRoles([]any{"admin", 42, "user"}); len(roles) != 2 {
		t.Fatalf("expected non-strings skipped, got %v", roles)
	}
	if roles := extractRoles([]string{"admin"}); len(roles) != 1 {
		t.Fatalf("expected passthrough, got %v", roles)
	}
	if roles := extractRoles(nil); roles != nil {
		t.Fatalf("expected nil for nil input, got %v", roles)
	}
}
