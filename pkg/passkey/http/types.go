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

package http

import (
	"encoding/json"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/cueprotocol/go-passkey/pkg/passkey"
)

// StartRequest is the request body for POST /start. The body is optional;
// device metadata is recorded verbatim when present.
type StartRequest struct {
	Device passkey.DeviceInfo `json:"device,omitempty"`
}

// StartResponse is the response body for POST /start. Both option sets are
// bound to the same single-use challenge.
type StartResponse struct {
	ChallengeID     string                        `json:"challenge_id"`
	CreationOptions *protocol.CredentialCreation  `json:"creation_options"`
	RequestOptions  *protocol.CredentialAssertion `json:"request_options"`
	ExpiresAt       time.Time                     `json:"expires_at"`
}

// CompleteRequest is the request body for POST /complete. Credential is the
// browser's PublicKeyCredential JSON, passed through untouched; the handler
// decides attestation versus assertion by its shape.
type CompleteRequest struct {
	ChallengeID string          `json:"challenge_id"`
	Credential  json.RawMessage `json:"credential"`
}

// CompleteResponse is the response body for POST /complete.
type CompleteResponse struct {
	Action       passkey.AuthAction   `json:"action"`
	User         *passkey.User        `json:"user"`
	SessionToken string               `json:"session_token"`
	Rewards      *passkey.RewardGrant `json:"rewards,omitempty"`
}

// RestoreRequest is the request body for POST /restore.
type RestoreRequest struct {
	SessionToken string `json:"session_token"`
}

// RestoreResponse is the response body for POST /restore.
type RestoreResponse struct {
	User *passkey.User `json:"user"`
}

// ErrorResponse is the body of all error responses. Error is the stable
// machine-readable kind; Message is human-readable and never carries
// internal store detail.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// credentialProbe inspects the credential payload just deeply enough to tell
// an attestation response from an assertion response.
type credentialProbe struct {
	Response struct {
		AttestationObject string `json:"attestationObject"`
		Signature         string `json:"signature"`
	} `json:"response"`
}
