// Package auth issues and verifies the bearer tokens used by the HTTP API
// and hashes account passwords.
package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the identity carried by a token.
type Principal struct {
	UserID     uint
	Role       string
	EmployeeID *uint
	ClientID   *uint
}

type claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	EmployeeID *uint  `json:"employee_id,omitempty"`
	ClientID   *uint  `json:"client_id,omitempty"`
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Clock  clock.Clock
}

// NewTokens constructs a token manager. A nil clk uses the wall clock.
func NewTokens(secret, issuer string, ttl time.Duration, clk clock.Clock) *Tokens {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Tokens{Secret: []byte(secret), Issuer: issuer, TTL: ttl, Clock: clk}
}

// Issue returns a signed token for p and its expiry.
func (t *Tokens) Issue(p Principal) (string, time.Time, error) {
	now := t.Clock.Now().UTC()
	exp := now.Add(t.TTL)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.Issuer,
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:       p.Role,
		EmployeeID: p.EmployeeID,
		ClientID:   p.ClientID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses raw and returns its principal.
func (t *Tokens) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrInvalidToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.Clock.Now),
	)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || uid == 0 {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		UserID:     uint(uid),
		Role:       c.Role,
		EmployeeID: c.EmployeeID,
		ClientID:   c.ClientID,
	}, nil
}
