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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(NewInMemoryCredentialStore())
}

func TestRegistry_FindMissIsNotAnError(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	cred, err := reg.FindByCredentialID(ctx, []byte("unknown"))
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestRegistry_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	err := reg.Save(ctx, &Credential{
		ID:        []byte("cred-1"),
		UserID:    "user-1",
		PublicKey: []byte("pk"),
	})
	require.NoError(t, err)

	cred, err := reg.FindByCredentialID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "user-1", cred.UserID)
	assert.True(t, cred.Active)
	assert.False(t, cred.CreatedAt.IsZero())
}

func TestRegistry_SaveDuplicate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	require.NoError(t, reg.Save(ctx, &Credential{ID: []byte("cred-1"), UserID: "user-1"}))

	err := reg.Save(ctx, &Credential{ID: []byte("cred-1"), UserID: "user-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestRegistry_TouchCounter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		stored     uint32
		newCounter uint32
		wantCloned bool
	}{
		{"advancing counter", 5, 6, false},
		{"large jump", 5, 100, false},
		{"stale counter", 5, 5, true},
		{"regressed counter", 5, 3, true},
		{"both zero, counter not supported", 0, 0, false},
		{"first advance from zero", 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			require.NoError(t, reg.Save(ctx, &Credential{ID: []byte("cred"), UserID: "u", SignCount: tt.stored}))

			// Save resets SignCount bookkeeping through the store, so write
			// the stored counter explicitly.
			cred, err := reg.store.GetByCredentialID(ctx, []byte("cred"))
			require.NoError(t, err)
			cred.SignCount = tt.stored
			require.NoError(t, reg.store.Update(ctx, cred))

			err = reg.TouchCounter(ctx, []byte("cred"), tt.newCounter)
			if tt.wantCloned {
				require.Error(t, err)
				assert.True(t, IsClonedCredential(err))
				return
			}
			require.NoError(t, err)

			got, err := reg.store.GetByCredentialID(ctx, []byte("cred"))
			require.NoError(t, err)
			assert.Equal(t, tt.newCounter, got.SignCount)
			assert.False(t, got.LastUsedAt.IsZero())
		})
	}
}

func TestRegistry_TouchCounterUnknownCredential(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	err := reg.TouchCounter(ctx, []byte("unknown"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestRegistry_RemoveFreesCredentialID(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	require.NoError(t, reg.Save(ctx, &Credential{ID: []byte("cred-1"), UserID: "user-1"}))
	require.NoError(t, reg.Remove(ctx, []byte("cred-1")))

	// Unlike Deactivate, Remove gives the ID back: a fresh Save succeeds.
	err := reg.Save(ctx, &Credential{ID: []byte("cred-1"), UserID: "user-2"})
	require.NoError(t, err)

	cred, err := reg.FindByCredentialID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "user-2", cred.UserID)
}

func TestRegistry_RemoveUnknownCredential(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	err := reg.Remove(ctx, []byte("unknown"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestRegistry_DeactivateHidesCredential(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	require.NoError(t, reg.Save(ctx, &Credential{ID: []byte("cred-1"), UserID: "user-1"}))
	require.NoError(t, reg.Deactivate(ctx, []byte("cred-1")))

	// A deactivated credential looks like a miss to the unified flow.
	cred, err := reg.FindByCredentialID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	assert.Nil(t, cred)

	// The record itself survives.
	raw, err := reg.store.GetByCredentialID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	assert.False(t, raw.Active)
}
