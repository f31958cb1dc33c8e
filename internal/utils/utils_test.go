package utils

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "ADMIN", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	id, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if id.UserID != 42 || id.Role != "ADMIN" {
		t.Fatalf("identity = %+v", id)
	}
	if _, err := ParseAccessToken("other", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err = %v", err)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	expired, _ := NewAccessToken("secret", 1, "USER", -1)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("secret"))
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": 9999999999}).SignedString([]byte("secret"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": 9999999999}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, raw := range map[string]string{
		"expired":    expired.Token,
		"no exp":     noExp,
		"no subject": noSub,
		"alg none":   none,
		"garbage":    "a.b.c",
	} {
		if _, err := ParseAccessToken("secret", raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(1)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRefreshToken(1)
	if len(a.Raw) != 96 || a.Raw == b.Raw {
		t.Fatalf("unexpected raw tokens %q %q", a.Raw, b.Raw)
	}
	if HashRefreshRaw(a.Raw) != HashRefreshRaw(a.Raw) || len(HashRefreshRaw(a.Raw)) != 64 {
		t.Fatal("hash must be stable hex sha256")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if hash == "s3cret-pass" || !VerifyPassword(hash, "s3cret-pass") || VerifyPassword(hash, "wrong") {
		t.Fatal("bcrypt round trip failed")
	}
}

func TestBcryptCost(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, bcrypt.DefaultCost},
		{bcrypt.MinCost - 1, bcrypt.DefaultCost},
		{bcrypt.MinCost, bcrypt.MinCost},
		{12, 12},
		{bcrypt.MaxCost + 1, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := BcryptCost(tt.in); got != tt.want {
			t.Errorf("BcryptCost(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHashPassword_CostAndLength(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if cost, err := bcrypt.Cost([]byte(hash)); err != nil || cost != bcrypt.MinCost {
		t.Fatalf("cost = %d, %v", cost, err)
	}
	if _, err := HashPassword(string(make([]byte, 73)), bcrypt.MinCost); err == nil {
		t.Fatal("passwords over 72 bytes must be rejected")
	}
}
