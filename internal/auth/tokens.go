// Package auth issues and verifies the HS256 access tokens carried by
// account holders.
package auth

import (
	"errors"
	"time"
)

// ErrInvalidToken covers malformed, forged and expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs access tokens whose subject is the account phone.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. A zero ttl defaults to 24 hours.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for phone and its expiry.
func (i *Issuer) Issue(phone string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	token, err := SignHS256(Claims{
		Subject:   phone,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	}, i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Verify checks signature and expiry and returns the subject phone.
func (i *Issuer) Verify(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(token, i.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt <= i.now().Unix() {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
