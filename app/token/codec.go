// Package token implements the shared signed-token codec and the typed
// claim wrappers for the four token purposes (email verification, password
// reset, access, refresh). All purposes share one wire format and secret;
// they are kept apart purely by claim shape, so each purpose gets its own
// mint/parse pair and a parse for one purpose never accepts a token minted
// for another.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired          = errors.New("token has expired")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")

	// ErrEmailMissing is returned by the verification and reset parsers when a
	// cryptographically valid token carries no email claim.
	ErrEmailMissing = errors.New("token has no email claim")

	// ErrClaimsInvalid is returned when a valid token does not match the
	// claim shape the parser expects, e.g. a verification token presented
	// where a refresh token is required.
	ErrClaimsInvalid = errors.New("token claims do not match the expected shape")
)

// DefaultTTL applies when Sign is called with a zero ttl.
const DefaultTTL = time.Hour

type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

type Option func(*Codec)

// WithTimeFunc overrides the clock used for expiry stamping and validation.
func WithTimeFunc(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec for the given shared secret and HMAC algorithm
// name (HS256, HS384 or HS512).
func NewCodec(secret, algorithm string, opts ...Option) (*Codec, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q: only HMAC methods are allowed", algorithm)
	}

	c := &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign merges the caller's claims with an absolute expiry of now+ttl and
// returns the signed compact form. A zero ttl falls back to DefaultTTL;
// negative ttls are honored as-is so expiry behavior stays testable.
func (c *Codec) Sign(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["exp"] = jwt.NewNumericDate(c.now().Add(ttl))

	return jwt.NewWithClaims(c.method, mc).SignedString(c.secret)
}

// Verify checks signature and expiry and returns the raw claims. Failures
// collapse to exactly three kinds so callers can branch: ErrExpired,
// ErrSignatureInvalid, ErrMalformed.
func (c *Codec) Verify(tokenString string) (jwt.MapClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, key string) (string, bool) {
	v, ok := claims[key].(string)
	return v, ok && v != ""
}

func idClaim(claims jwt.MapClaims) (uint64, bool) {
	// MapClaims decodes JSON numbers as float64.
	v, ok := claims["id"].(float64)
	if !ok || v < 0 {
		return 0, false
	}
	return uint64(v), true
}
