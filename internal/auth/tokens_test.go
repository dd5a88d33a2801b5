package auth

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	i := NewIssuer("secret", time.Hour)
	token, exp, err := i.Issue("0712345678")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry in the past")
	}
	phone, err := i.Verify(token)
	if err != nil || phone != "0712345678" {
		t.Fatalf("verify: phone=%q err=%v", phone, err)
	}

	other := NewIssuer("other", time.Hour)
	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected forged token rejection, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	i.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, _, err := i.Issue("0712345678")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	i.now = time.Now
	if _, err := i.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	token, err := SignHS256(Claims{Subject: "0712345678", ExpiresAt: time.Now().Add(time.Hour).Unix()}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	parts := strings.Split(token, ".")

	forgedClaims, _ := json.Marshal(Claims{Subject: "0799999999", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	noneHeader := b64.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	cases := map[string]string{
		"swapped claims": parts[0] + "." + b64.EncodeToString(forgedClaims) + "." + parts[2],
		"alg none":       noneHeader + "." + parts[1] + "." + parts[2],
		"two segments":   parts[0] + "." + parts[1],
		"garbage":        "a.b.c",
	}
	for name, tok := range cases {
		if _, err := ParseAndVerifyHS256(tok, secret); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected invalid token, got %v", name, err)
		}
	}
	claims, err := ParseAndVerifyHS256(token, secret)
	if err != nil || claims.Subject != "0712345678" {
		t.Fatalf("valid token: %+v %v", claims, err)
	}
}
