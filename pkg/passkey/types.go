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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ChallengeKind identifies the ceremony a challenge was issued for.
type ChallengeKind string

const (
	// ChallengeKindUnified permits either a registration or a login response.
	// This is what lets both flows share a single start operation.
	ChallengeKindUnified ChallengeKind = "unified"

	// ChallengeKindRegistration permits only an attestation response.
	ChallengeKindRegistration ChallengeKind = "registration"

	// ChallengeKindLogin permits only an assertion response.
	ChallengeKindLogin ChallengeKind = "login"
)

// DeviceInfo carries opaque client device metadata. It is echoed onto
// challenges and credentials for operator visibility and never interpreted.
type DeviceInfo struct {
	Name      string `json:"name,omitempty"`
	Platform  string `json:"platform,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Challenge is a pending single-use authentication challenge. It holds the
// ceremony sessions for both possible responses so a unified challenge can
// complete as either a login or a registration.
type Challenge struct {
	// ID is the opaque handle returned to the client.
	ID string

	// Kind restricts which response types may complete this challenge.
	Kind ChallengeKind

	// UserHandle is the provisional WebAuthn user handle minted at start
	// time. It becomes the user ID if the challenge completes as a
	// registration.
	UserHandle []byte

	// Device is the client metadata supplied at start time.
	Device DeviceInfo

	CreatedAt time.Time
	ExpiresAt time.Time

	// Registration is the ceremony session for an attestation response.
	Registration *webauthn.SessionData

	// Login is the ceremony session for an assertion response.
	Login *webauthn.SessionData
}

// Expired reports whether the challenge lapsed at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Credential is a passkey credential record stored by the relying party.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator. It is
	// globally unique and is the sole key used to distinguish a returning
	// identity from a new one.
	ID []byte `json:"id"`

	// UserID is the identifier of the user this credential belongs to.
	UserID string `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used at registration.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// SignCount is the signature counter for clone detection. It must be
	// monotonically non-decreasing across successful verifications.
	SignCount uint32 `json:"sign_count"`

	// BackupEligible and BackupState mirror the authenticator flags.
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`

	// DeviceType is the device metadata recorded at registration.
	DeviceType string `json:"device_type,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`

	// Active is false for deactivated credentials. Credentials are never
	// hard-deleted.
	Active bool `json:"active"`
}

// ToWebAuthn converts the record to the go-webauthn library's type for use
// during assertion validation.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: c.SignCount,
		},
	}
}

// User is the identity record referenced by credentials. The core creates it
// on first registration and only touches last-login bookkeeping afterwards.
type User struct {
	// ID is the user identifier; its bytes double as the WebAuthn user handle.
	ID string `json:"id"`

	// DID is the decentralized identifier minted at registration.
	DID string `json:"did"`

	// DisplayName is a generated human-readable name.
	DisplayName string `json:"display_name"`

	// TrustScore starts at zero and is managed outside the core.
	TrustScore int `json:"trust_score"`

	// CueTokens is the CUE token balance. The core never mutates it
	// directly; the reward ledger does.
	CueTokens int64 `json:"cue_tokens"`

	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
}

// RewardGrant is the outcome of a registration bonus request. Failures are
// non-fatal and surface as a warning rather than failing the registration.
type RewardGrant struct {
	Granted bool   `json:"granted"`
	Amount  int64  `json:"amount,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// AuthAction distinguishes how a completed authentication resolved.
type AuthAction string

const (
	ActionLogin    AuthAction = "login"
	ActionRegister AuthAction = "register"
)

// AuthResult is the outcome of a successful completeAuthentication call.
type AuthResult struct {
	Action       AuthAction   `json:"action"`
	User         *User        `json:"user"`
	SessionToken string       `json:"session_token"`
	Rewards      *RewardGrant `json:"rewards,omitempty"`
}

// AuthenticationOptions is returned by startAuthentication. It carries both
// ceremony option sets bound to one single-use challenge; the client responds
// with whichever ceremony its authenticator supports for this origin.
type AuthenticationOptions struct {
	ChallengeID string                        `json:"challenge_id"`
	Creation    *protocol.CredentialCreation  `json:"creation_options"`
	Request     *protocol.CredentialAssertion `json:"request_options"`
	ExpiresAt   time.Time                     `json:"expires_at"`
}

// relyingUser adapts a user record (or a provisional handle during
// registration) to the webauthn.User interface for ceremony validation.
type relyingUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *relyingUser) WebAuthnID() []byte {
	return u.id
}

func (u *relyingUser) WebAuthnName() string {
	return u.name
}

func (u *relyingUser) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.name
	}
	return u.displayName
}

func (u *relyingUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// newRelyingUser wraps a stored user and one credential for assertion
// validation.
func newRelyingUser(user *User, cred *Credential) *relyingUser {
	return &relyingUser{
		id:          []byte(user.ID),
		name:        user.DisplayName,
		displayName: user.DisplayName,
		credentials: []webauthn.Credential{cred.ToWebAuthn()},
	}
}

// provisionalUser wraps the handle minted at start time. Registration
// ceremonies require a user entity before any user record exists.
func provisionalUser(handle []byte) *relyingUser {
	name := fmt.Sprintf("user-%x", handle[:min(4, len(handle))])
	return &relyingUser{id: handle, name: name}
}
