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
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations. Each sentinel maps to a
// stable machine-readable kind surfaced at the transport boundary.
var (
	// ErrChallengeNotFound is returned when a challenge does not exist, has
	// expired, or was already consumed. The client must restart the flow.
	ErrChallengeNotFound = errors.New("challenge not found or expired")

	// ErrVerificationFailed is returned when an authenticator response does
	// not verify against the stored challenge.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedCredential is returned when an assertion carries a signature
	// counter that did not advance, indicating a cloned authenticator.
	ErrClonedCredential = errors.New("cloned credential suspected")

	// ErrDuplicateCredential is returned when registering a credential ID
	// that already exists.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrStoreUnavailable is returned when a backing store cannot be
	// reached. Callers may retry a bounded number of times.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTokenInvalid is returned when a session token is malformed,
	// expired, or mis-signed. Verification fails closed.
	ErrTokenInvalid = errors.New("session token invalid")

	// ErrInvalidRequest is returned when a request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error kinds reported to the transport boundary. These strings are part of
// the public API and must remain stable.
const (
	KindChallengeNotFound   = "challenge_not_found_or_expired"
	KindVerificationFailed  = "verification_failed"
	KindClonedCredential    = "cloned_credential"
	KindDuplicateCredential = "duplicate_credential"
	KindCredentialNotFound  = "credential_not_found"
	KindUserNotFound        = "user_not_found"
	KindStoreUnavailable    = "store_unavailable"
	KindTokenInvalid        = "token_invalid"
	KindInvalidRequest      = "invalid_request"
	KindInternal            = "internal_error"
)

// AuthError wraps an error with the operation that failed.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *AuthError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new AuthError with the given operation and error.
func NewError(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// ErrorKind returns the stable machine-readable kind for an error. Unknown
// errors map to KindInternal so internal detail never leaks to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrChallengeNotFound):
		return KindChallengeNotFound
	case errors.Is(err, ErrClonedCredential):
		return KindClonedCredential
	case errors.Is(err, ErrVerificationFailed):
		return KindVerificationFailed
	case errors.Is(err, ErrDuplicateCredential):
		return KindDuplicateCredential
	case errors.Is(err, ErrCredentialNotFound):
		return KindCredentialNotFound
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}

// IsChallengeNotFound returns true if the error indicates a missing,
// expired, or already-consumed challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsClonedCredential returns true if the error indicates clone detection fired.
func IsClonedCredential(err error) bool {
	return errors.Is(err, ErrClonedCredential)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsStoreUnavailable returns true if the error indicates a retryable store failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
