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
	"context"
)

// UserStore persists user records. Implementations may return
// ErrStoreUnavailable to signal a retryable backend failure.
type UserStore interface {
	// GetByID retrieves a user by their identifier. Returns ErrUserNotFound
	// if no such user exists.
	GetByID(ctx context.Context, userID string) (*User, error)

	// Create inserts a new user record. Returns an error if the identifier
	// is already taken.
	Create(ctx context.Context, user *User) error

	// Save updates an existing user record. The core only uses this for
	// last-login bookkeeping.
	Save(ctx context.Context, user *User) error
}

// CredentialStore persists credential records. Uniqueness of credential IDs
// is the store's responsibility: Save must reject an existing ID atomically.
type CredentialStore interface {
	// GetByCredentialID retrieves a credential by its authenticator-assigned
	// identifier. Returns ErrCredentialNotFound if no such credential exists.
	GetByCredentialID(ctx context.Context, credentialID []byte) (*Credential, error)

	// Save inserts a new credential with compare-and-insert semantics.
	// Returns ErrDuplicateCredential if the ID already exists.
	Save(ctx context.Context, credential *Credential) error

	// Update overwrites an existing credential record. Returns
	// ErrCredentialNotFound if it does not exist.
	Update(ctx context.Context, credential *Credential) error

	// Delete removes a credential record. The core only calls this to roll
	// back a registration whose user record could not be created. Returns
	// ErrCredentialNotFound if it does not exist.
	Delete(ctx context.Context, credentialID []byte) error
}

// RewardLedger grants the one-time registration bonus. A failed grant never
// fails the registration; the orchestrator surfaces it as a warning.
type RewardLedger interface {
	GrantRegistrationBonus(ctx context.Context, userID string) (*RewardGrant, error)
}

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	// Issue creates a signed session token for the user and credential.
	Issue(userID string, credentialID []byte) (string, error)

	// Verify validates a session token and returns its claims. It fails
	// closed: any malformed, expired, or mis-signed token yields
	// ErrTokenInvalid and no claims.
	Verify(token string) (*SessionClaims, error)
}
