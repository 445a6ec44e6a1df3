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
	"bytes"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Verifier wraps the go-webauthn library. It owns ceremony option generation
// and response verification; all cryptographic checks are delegated to the
// library. The verifier never mutates stored state.
type Verifier struct {
	wa *webauthn.WebAuthn
}

// VerificationResult reports a successful verification.
type VerificationResult struct {
	// Credential is populated for attestation results with the credential
	// the library extracted from the response.
	Credential *webauthn.Credential

	// NewCounter is the signature counter the authenticator reported.
	NewCounter uint32

	// UserVerified reports whether the authenticator performed user
	// verification (biometric, PIN).
	UserVerified bool

	// CloneWarning is set on assertion results when the library's own
	// counter comparison flagged a possible clone.
	CloneWarning bool
}

// NewVerifier creates a verifier for the given relying-party configuration.
func NewVerifier(cfg *Config) (*Verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid passkey config: %w", err)
	}

	wa, err := webauthn.New(cfg.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webauthn: %w", err)
	}
	return &Verifier{wa: wa}, nil
}

// BeginRegistration generates credential-creation options for the given
// provisional user handle. The exclude list is left empty: the caller does
// not yet know who the user is.
func (v *Verifier) BeginRegistration(handle []byte) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	options, session, err := v.wa.BeginRegistration(provisionalUser(handle))
	if err != nil {
		return nil, nil, WrapError("verifier.begin_registration", err)
	}
	return options, session, nil
}

// BeginLogin generates credential-request options with an empty allow list,
// letting any discoverable credential for this relying party respond.
func (v *Verifier) BeginLogin() (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	options, session, err := v.wa.BeginDiscoverableLogin()
	if err != nil {
		return nil, nil, WrapError("verifier.begin_login", err)
	}
	return options, session, nil
}

// VerifyAttestation checks an attestation response against the challenge's
// registration session. On success the result carries the new credential and
// its initial signature counter.
func (v *Verifier) VerifyAttestation(ch *Challenge, response *protocol.ParsedCredentialCreationData) (*VerificationResult, error) {
	if ch.Registration == nil {
		return nil, NewError("verifier.attestation",
			fmt.Errorf("%w: challenge does not permit registration", ErrVerificationFailed))
	}
	if err := v.precheckClientData(&response.Response.CollectedClientData, ch.Registration.Challenge); err != nil {
		return nil, NewError("verifier.attestation", err)
	}

	cred, err := v.wa.CreateCredential(provisionalUser(ch.UserHandle), *ch.Registration, response)
	if err != nil {
		return nil, NewError("verifier.attestation",
			fmt.Errorf("%w: attestation invalid: %v", ErrVerificationFailed, err))
	}

	return &VerificationResult{
		Credential:   cred,
		NewCounter:   cred.Authenticator.SignCount,
		UserVerified: response.Response.AttestationObject.AuthData.Flags.UserVerified(),
	}, nil
}

// VerifyAssertion checks an assertion response against the challenge's login
// session using the stored credential's public key. The result carries the
// authenticator's new counter; the caller enforces monotonicity against the
// stored value.
func (v *Verifier) VerifyAssertion(ch *Challenge, response *protocol.ParsedCredentialAssertionData, cred *Credential, user *User) (*VerificationResult, error) {
	if ch.Login == nil {
		return nil, NewError("verifier.assertion",
			fmt.Errorf("%w: challenge does not permit login", ErrVerificationFailed))
	}
	if err := v.precheckClientData(&response.Response.CollectedClientData, ch.Login.Challenge); err != nil {
		return nil, NewError("verifier.assertion", err)
	}

	relUser := newRelyingUser(user, cred)
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		if !bytes.Equal(rawID, cred.ID) {
			return nil, fmt.Errorf("credential id mismatch")
		}
		return relUser, nil
	}

	validated, err := v.wa.ValidateDiscoverableLogin(handler, *ch.Login, response)
	if err != nil {
		return nil, NewError("verifier.assertion",
			fmt.Errorf("%w: assertion invalid: %v", ErrVerificationFailed, err))
	}

	return &VerificationResult{
		NewCounter:   validated.Authenticator.SignCount,
		UserVerified: response.Response.AuthenticatorData.Flags.UserVerified(),
		CloneWarning: validated.Authenticator.CloneWarning,
	}, nil
}

// precheckClientData rejects challenge and origin mismatches with precise
// reasons before handing the response to the library's cryptographic checks.
func (v *Verifier) precheckClientData(clientData *protocol.CollectedClientData, wantChallenge string) error {
	if clientData.Challenge != wantChallenge {
		return fmt.Errorf("%w: challenge mismatch", ErrVerificationFailed)
	}
	originOK := false
	for _, origin := range v.wa.Config.RPOrigins {
		if clientData.Origin == origin {
			originOK = true
			break
		}
	}
	if !originOK {
		return fmt.Errorf("%w: origin %q not allowed", ErrVerificationFailed, clientData.Origin)
	}
	return nil
}
