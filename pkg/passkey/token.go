// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package passkey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenValidity is how long session tokens remain valid.
const DefaultTokenValidity = 30 * 24 * time.Hour

// SessionClaims are the claims carried by a session token. UserID is the
// subject claim; CredentialID records which passkey authenticated the session.
type SessionClaims struct {
	CredentialID string `json:"cid"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user's identifier.
func (c *SessionClaims) UserID() string {
	return c.Subject
}

// CredentialIDBytes decodes the credential identifier claim.
func (c *SessionClaims) CredentialIDBytes() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(c.CredentialID)
}

// TokenConfig configures the session token issuer.
type TokenConfig struct {
	// Issuer is the JWT issuer claim. Default: "go-passkey".
	Issuer string `yaml:"issuer" json:"issuer"`

	// Audience is the JWT audience claim. Default: "go-passkey".
	Audience string `yaml:"audience" json:"audience"`

	// Validity is how long issued tokens remain valid. Default: 30 days.
	Validity time.Duration `yaml:"validity" json:"validity"`
}

// JWTIssuer issues and verifies ES256-signed session tokens.
type JWTIssuer struct {
	key      *ecdsa.PrivateKey
	issuer   string
	audience string
	validity time.Duration
	keyID    string

	// now is replaceable in tests to exercise expiry boundaries.
	now func() time.Time
}

// GenerateSigningKey creates a fresh P-256 signing key. Production
// deployments load a persisted key instead so tokens survive restarts.
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// NewJWTIssuer creates a token issuer signing with the given key.
func NewJWTIssuer(key *ecdsa.PrivateKey, cfg TokenConfig) (*JWTIssuer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "go-passkey"
	}
	if cfg.Audience == "" {
		cfg.Audience = "go-passkey"
	}
	if cfg.Validity == 0 {
		cfg.Validity = DefaultTokenValidity
	}

	jwk := jose.JSONWebKey{Key: key.Public()}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to compute key thumbprint: %w", err)
	}

	return &JWTIssuer{
		key:      key,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		validity: cfg.Validity,
		keyID:    base64.RawURLEncoding.EncodeToString(thumb),
		now:      time.Now,
	}, nil
}

// Issue creates a signed session token for the user and credential.
func (i *JWTIssuer) Issue(userID string, credentialID []byte) (string, error) {
	now := i.now()

	claims := &SessionClaims{
		CredentialID: base64.RawURLEncoding.EncodeToString(credentialID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = i.keyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", NewError("token.issue", err)
	}
	return signed, nil
}

// Verify validates a session token and returns its claims. Any failure, a
// bad signature, a lapsed or not-yet-valid window, a wrong issuer or
// audience, collapses to ErrTokenInvalid with no partial claims.
func (i *JWTIssuer) Verify(tokenString string) (*SessionClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &SessionClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.key.Public(), nil
	})
	if err != nil || !token.Valid {
		return nil, NewError("token.verify", ErrTokenInvalid)
	}
	if claims.Subject == "" || claims.CredentialID == "" {
		return nil, NewError("token.verify", ErrTokenInvalid)
	}
	return claims, nil
}

// JWKS returns the public signing key as a JSON Web Key Set so other
// services can verify session tokens statelessly.
func (i *JWTIssuer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       i.key.Public(),
				KeyID:     i.keyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}

// Validity returns the configured token validity window.
func (i *JWTIssuer) Validity() time.Duration {
	return i.validity
}
