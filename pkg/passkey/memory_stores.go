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
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// InMemoryUserStore is a mutex-guarded in-memory UserStore for development
// and tests.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryUserStore creates an empty in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users: make(map[string]*User),
	}
}

// GetByID retrieves a user by identifier.
func (s *InMemoryUserStore) GetByID(ctx context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, NewError("userstore.get", ErrUserNotFound)
	}
	cp := *user
	return &cp, nil
}

// Create inserts a new user record.
func (s *InMemoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return NewError("userstore.create", fmt.Errorf("user %s already exists", user.ID))
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// Save updates an existing user record.
func (s *InMemoryUserStore) Save(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return NewError("userstore.save", ErrUserNotFound)
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// InMemoryCredentialStore is a mutex-guarded in-memory CredentialStore for
// development and tests. Credential IDs are keyed by their raw-URL base64
// encoding.
type InMemoryCredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential
}

// NewInMemoryCredentialStore creates an empty in-memory credential store.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{
		credentials: make(map[string]*Credential),
	}
}

func credentialKey(credentialID []byte) string {
	return base64.RawURLEncoding.EncodeToString(credentialID)
}

// GetByCredentialID retrieves a credential by its identifier.
func (s *InMemoryCredentialStore) GetByCredentialID(ctx context.Context, credentialID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[credentialKey(credentialID)]
	if !ok {
		return nil, NewError("credstore.get", ErrCredentialNotFound)
	}
	cp := *cred
	return &cp, nil
}

// Save inserts a new credential. The existence check and the insert happen
// under one lock hold, so concurrent saves of the same ID admit exactly one
// winner.
func (s *InMemoryCredentialStore) Save(ctx context.Context, credential *Credential) error {
	key := credentialKey(credential.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[key]; ok {
		return NewError("credstore.save", ErrDuplicateCredential)
	}
	cp := *credential
	s.credentials[key] = &cp
	return nil
}

// Update overwrites an existing credential record.
func (s *InMemoryCredentialStore) Update(ctx context.Context, credential *Credential) error {
	key := credentialKey(credential.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[key]; !ok {
		return NewError("credstore.update", ErrCredentialNotFound)
	}
	cp := *credential
	s.credentials[key] = &cp
	return nil
}

// Delete removes a credential record.
func (s *InMemoryCredentialStore) Delete(ctx context.Context, credentialID []byte) error {
	key := credentialKey(credentialID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[key]; !ok {
		return NewError("credstore.delete", ErrCredentialNotFound)
	}
	delete(s.credentials, key)
	return nil
}

// InMemoryRewardLedger grants a fixed registration bonus once per user. It is
// the reference RewardLedger for development and tests.
type InMemoryRewardLedger struct {
	mu      sync.Mutex
	granted map[string]time.Time
	amount  int64
}

// NewInMemoryRewardLedger creates a ledger granting the given bonus amount.
func NewInMemoryRewardLedger(amount int64) *InMemoryRewardLedger {
	return &InMemoryRewardLedger{
		granted: make(map[string]time.Time),
		amount:  amount,
	}
}

// GrantRegistrationBonus grants the bonus if the user has not received one.
func (l *InMemoryRewardLedger) GrantRegistrationBonus(ctx context.Context, userID string) (*RewardGrant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.granted[userID]; ok {
		return &RewardGrant{Granted: false, Warning: "bonus already granted"}, nil
	}
	l.granted[userID] = time.Now()
	return &RewardGrant{Granted: true, Amount: l.amount}, nil
}
