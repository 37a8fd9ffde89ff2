package secret

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/opalsecrets/observe"
)

func TestDecodeServiceAccount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "object", raw: `{"type":"service_account","client_email":"svc@demo.iam"}`},
		{name: "empty object", raw: `{}`},
		{name: "invalid json", raw: `{"type":`, wantErr: true},
		{name: "array", raw: `["a"]`, wantErr: true},
		{name: "string", raw: `"abc123"`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "plain text", raw: `abc123`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := DecodeServiceAccount(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil || cred == nil {
				t.Fatalf("DecodeServiceAccount() = %v, %v", cred, err)
			}
		})
	}
}

func TestServiceAccountCredential_Accessors(t *testing.T) {
	cred, err := DecodeServiceAccount(`{
		"type": "service_account",
		"project_id": "demo",
		"client_email": "svc@demo.iam.gserviceaccount.com",
		"private_key_id": "kid-1",
		"private_key": "secret-material",
		"extra": 3
	}`)
	if err != nil {
		t.Fatalf("DecodeServiceAccount() error = %v", err)
	}

	if cred.Type() != "service_account" || cred.ProjectID() != "demo" ||
		cred.ClientEmail() != "svc@demo.iam.gserviceaccount.com" || cred.PrivateKeyID() != "kid-1" {
		t.Fatalf("unexpected accessors: %v", cred.Redacted())
	}

	redacted := cred.Redacted()
	if redacted["private_key"] != observe.RedactedPlaceholder || redacted["private_key_id"] != observe.RedactedPlaceholder {
		t.Fatalf("key material not masked: %v", redacted)
	}
	if cred["private_key"] != "secret-material" {
		t.Fatalf("Redacted() modified the original")
	}
	if redacted["extra"] != cred["extra"] {
		t.Fatalf("Redacted() dropped unrelated fields")
	}
}

func testServiceAccount(t *testing.T) (ServiceAccountCredential, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	doc, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "demo",
		"client_email":   "svc@demo.iam.gserviceaccount.com",
		"private_key_id": "kid-1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})
	if err != nil {
		t.Fatalf("marshal credential: %v", err)
	}
	cred, err := DecodeServiceAccount(string(doc))
	if err != nil {
		t.Fatalf("DecodeServiceAccount() error = %v", err)
	}
	return cred, key
}

func TestServiceAccountCredential_SignedJWT(t *testing.T) {
	cred, key := testServiceAccount(t)
	now := time.Now()

	signed, err := cred.SignedJWT("https://secretmanager.googleapis.com/", 10*time.Minute, now)
	if err != nil {
		t.Fatalf("SignedJWT() error = %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience("https://secretmanager.googleapis.com/"))
	if err != nil {
		t.Fatalf("parse signed token: %v", err)
	}
	if token.Header["kid"] != "kid-1" {
		t.Errorf("kid = %v, want kid-1", token.Header["kid"])
	}
	if claims.Issuer != cred.ClientEmail() || claims.Subject != cred.ClientEmail() {
		t.Errorf("iss/sub = %q/%q", claims.Issuer, claims.Subject)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 10*time.Minute {
		t.Errorf("token lifetime = %v, want 10m", got)
	}
}

func TestServiceAccountCredential_SignedJWTDefaultTTL(t *testing.T) {
	cred, key := testServiceAccount(t)
	now := time.Now()

	signed, err := cred.SignedJWT("", 0, now)
	if err != nil {
		t.Fatalf("SignedJWT() error = %v", err)
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}); err != nil {
		t.Fatalf("parse signed token: %v", err)
	}
	if len(claims.Audience) != 0 {
		t.Errorf("audience = %v, want none", claims.Audience)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTokenTTL {
		t.Errorf("token lifetime = %v, want %v", got, DefaultTokenTTL)
	}
}

func TestServiceAccountCredential_SignedJWTErrors(t *testing.T) {
	tests := []struct {
		name string
		cred ServiceAccountCredential
	}{
		{name: "missing email", cred: ServiceAccountCredential{"private_key": "x"}},
		{name: "missing key", cred: ServiceAccountCredential{"client_email": "svc@demo"}},
		{name: "bad key", cred: ServiceAccountCredential{"client_email": "svc@demo", "private_key": "not pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cred.SignedJWT("", time.Minute, time.Now()); !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}
