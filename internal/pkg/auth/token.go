// Package auth issues and verifies the bearer tokens that identify a
// principal (customer, admin, or service account) across the fleet.
//
// Verification is deliberately only the structural half of authentication:
// it proves the token was signed by us and has not expired. Whether the
// embedded principal still exists is a separate check against the owning
// service, kept out of this package so the two stages stay independently
// testable.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential means no Authorization header was supplied.
	ErrNoCredential = errors.New("auth: no credential")
	// ErrInvalidCredential means the token is malformed, badly signed, or expired.
	ErrInvalidCredential = errors.New("auth: invalid credential")
)

// Kind distinguishes the classes of principal a token can carry.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindAdmin    Kind = "admin"
	KindService  Kind = "service"
)

// Principal is the identity decoded from a structurally valid token.
type Principal struct {
	ID   int64
	Kind Kind
}

type claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer. Tokens expire after ttl; a zero ttl means
// tokens never expire (used for service accounts minted at startup).
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the given principal.
func (i *Issuer) Issue(principal Principal) (string, error) {
	now := time.Now()
	c := claims{
		Kind: string(principal.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  fmt.Sprintf("%d", principal.ID),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded principal.
// It never consults another service; existence of the principal is the
// caller's second-stage check.
func (i *Issuer) Verify(tokenString string) (Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidCredential
	}

	var id int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &id); err != nil {
		return Principal{}, ErrInvalidCredential
	}
	kind := Kind(c.Kind)
	switch kind {
	case KindCustomer, KindAdmin, KindService:
	default:
		return Principal{}, ErrInvalidCredential
	}
	return Principal{ID: id, Kind: kind}, nil
}

// FromRequest extracts the bearer token from the Authorization header.
func FromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidCredential
	}
	return parts[1], nil
}
