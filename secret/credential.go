package secret

import (
	"fmt"
	"maps"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/opalsecrets/observe"
)

// DefaultTokenTTL is the lifetime of a self-signed JWT when none is given.
const DefaultTokenTTL = time.Hour

// ServiceAccountCredential is a decoded service-account JSON document.
// It is independent of the backend that produced the raw value.
type ServiceAccountCredential map[string]any

// DecodeServiceAccount parses raw as a JSON object.
// Invalid JSON, or JSON that is not an object, returns an error matching ErrParse.
func DecodeServiceAccount(raw string) (ServiceAccountCredential, error) {
	var cred ServiceAccountCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrParse)
	}
	return cred, nil
}

func (c ServiceAccountCredential) field(key string) string {
	s, _ := c[key].(string)
	return s
}

// Type returns the "type" field, normally "service_account".
func (c ServiceAccountCredential) Type() string { return c.field("type") }

// ProjectID returns the "project_id" field.
func (c ServiceAccountCredential) ProjectID() string { return c.field("project_id") }

// ClientEmail returns the "client_email" field.
func (c ServiceAccountCredential) ClientEmail() string { return c.field("client_email") }

// PrivateKeyID returns the "private_key_id" field.
func (c ServiceAccountCredential) PrivateKeyID() string { return c.field("private_key_id") }

// Redacted returns a copy safe for display, with key material masked.
func (c ServiceAccountCredential) Redacted() ServiceAccountCredential {
	out := maps.Clone(c)
	for _, key := range []string{"private_key", "private_key_id"} {
		if _, ok := out[key]; ok {
			out[key] = observe.RedactedPlaceholder
		}
	}
	return out
}

// SignedJWT returns an RS256 self-signed JWT asserting the service account's
// identity to audience, valid from now for ttl.
func (c ServiceAccountCredential) SignedJWT(audience string, ttl time.Duration, now time.Time) (string, error) {
	email := c.ClientEmail()
	if email == "" {
		return "", fmt.Errorf("%w: client_email is missing", ErrParse)
	}
	pemKey := c.field("private_key")
	if pemKey == "" {
		return "", fmt.Errorf("%w: private_key is missing", ErrParse)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return "", fmt.Errorf("%w: private_key: %w", ErrParse, err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := jwt.RegisteredClaims{
		Issuer:    email,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid := c.PrivateKeyID(); kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(key)
}
