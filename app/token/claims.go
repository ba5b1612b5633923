package token

import "time"

type VerificationClaims struct {
	Email string
}

type ResetClaims struct {
	Email string
}

type AccessClaims struct {
	UserID uint64
	Email  string
}

type RefreshClaims struct {
	UserID    uint64
	Email     string
	CSRFToken string
}

func (c *Codec) MintVerification(email string, ttl time.Duration) (string, error) {
	return c.Sign(map[string]any{"email": email}, ttl)
}

// ParseVerification accepts any valid token and requires only an email claim;
// the caller compares the compact form against the stored value, which is what
// actually scopes the token to the verification flow.
func (c *Codec) ParseVerification(tokenString string) (*VerificationClaims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	email, ok := stringClaim(claims, "email")
	if !ok {
		return nil, ErrEmailMissing
	}
	return &VerificationClaims{Email: email}, nil
}

func (c *Codec) MintReset(email string, ttl time.Duration) (string, error) {
	return c.Sign(map[string]any{"email": email}, ttl)
}

func (c *Codec) ParseReset(tokenString string) (*ResetClaims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	email, ok := stringClaim(claims, "email")
	if !ok {
		return nil, ErrEmailMissing
	}
	return &ResetClaims{Email: email}, nil
}

func (c *Codec) MintAccess(userID uint64, email string, ttl time.Duration) (string, error) {
	return c.Sign(map[string]any{"id": userID, "email": email}, ttl)
}

func (c *Codec) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	id, okID := idClaim(claims)
	email, okEmail := stringClaim(claims, "email")
	if !okID || !okEmail {
		return nil, ErrClaimsInvalid
	}
	return &AccessClaims{UserID: id, Email: email}, nil
}

func (c *Codec) MintRefresh(userID uint64, email, csrfToken string, ttl time.Duration) (string, error) {
	return c.Sign(map[string]any{"id": userID, "email": email, "csrfToken": csrfToken}, ttl)
}

func (c *Codec) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	id, okID := idClaim(claims)
	email, okEmail := stringClaim(claims, "email")
	csrf, okCSRF := stringClaim(claims, "csrfToken")
	if !okID || !okEmail || !okCSRF {
		return nil, ErrClaimsInvalid
	}
	return &RefreshClaims{UserID: id, Email: email, CSRFToken: csrf}, nil
}
