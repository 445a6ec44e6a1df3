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
	"errors"
	"time"
)

// Registry fronts the credential store with the domain rules the raw store
// does not know about: lookup-miss as a normal outcome, signature counter
// monotonicity, and deactivate-over-delete.
type Registry struct {
	store CredentialStore
	now   func() time.Time
}

// NewRegistry creates a credential registry over the given store.
func NewRegistry(store CredentialStore) *Registry {
	return &Registry{
		store: store,
		now:   time.Now,
	}
}

// FindByCredentialID looks up a credential. A missing or deactivated
// credential returns (nil, nil): absence is the signal that a response should
// be treated as a registration, not an error.
func (r *Registry) FindByCredentialID(ctx context.Context, credentialID []byte) (*Credential, error) {
	cred, err := r.store.GetByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, nil
		}
		return nil, WrapError("registry.find", err)
	}
	if !cred.Active {
		return nil, nil
	}
	return cred, nil
}

// Save persists a newly registered credential. The backing store's
// compare-and-insert guarantees ErrDuplicateCredential when the ID is taken,
// regardless of how many callers race.
func (r *Registry) Save(ctx context.Context, cred *Credential) error {
	now := r.now()
	cred.CreatedAt = now
	cred.Active = true
	if err := r.store.Save(ctx, cred); err != nil {
		return WrapError("registry.save", err)
	}
	return nil
}

// TouchCounter advances the signature counter after a verified assertion.
// A counter that failed to advance past a non-zero stored value means the
// private key signed elsewhere: the credential is suspect and the caller must
// not issue a token. Authenticators that never count report zero on both
// sides, which is allowed.
func (r *Registry) TouchCounter(ctx context.Context, credentialID []byte, newCounter uint32) error {
	cred, err := r.store.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return WrapError("registry.touch", err)
	}

	if cred.SignCount > 0 && newCounter <= cred.SignCount {
		return NewError("registry.touch", ErrClonedCredential)
	}

	cred.SignCount = newCounter
	cred.LastUsedAt = r.now()
	if err := r.store.Update(ctx, cred); err != nil {
		return WrapError("registry.touch", err)
	}
	return nil
}

// Remove hard-deletes a credential record. It exists only to unwind a
// registration whose user record could not be created; without it the
// credential ID would stay claimed and the authenticator could never register
// again. Established credentials are deactivated instead.
func (r *Registry) Remove(ctx context.Context, credentialID []byte) error {
	if err := r.store.Delete(ctx, credentialID); err != nil {
		return WrapError("registry.remove", err)
	}
	return nil
}

// Deactivate marks a credential inactive. Records are kept for audit; they
// are never hard-deleted.
func (r *Registry) Deactivate(ctx context.Context, credentialID []byte) error {
	cred, err := r.store.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return WrapError("registry.deactivate", err)
	}
	cred.Active = false
	if err := r.store.Update(ctx, cred); err != nil {
		return WrapError("registry.deactivate", err)
	}
	return nil
}
