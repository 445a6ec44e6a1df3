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

// Package passkey implements unified passkey (WebAuthn) authentication.
//
// A single start operation issues a challenge usable either for login or for
// registration: the client answers with an assertion from a registered
// passkey or an attestation from a brand-new one, and the service branches on
// whether the responding credential ID is already known. Challenges are
// single-use and expire after a short validity window. Successful
// authentication yields a signed 30-day session token; first registration
// creates the user record and grants a one-time CUE token bonus through an
// external reward ledger.
//
// The Service is constructed explicitly via ServiceParams; user, credential,
// and reward persistence are interfaces so callers can bring their own
// stores. In-memory reference implementations are included for development
// and tests. All WebAuthn cryptography is delegated to
// github.com/go-webauthn/webauthn.
package passkey
