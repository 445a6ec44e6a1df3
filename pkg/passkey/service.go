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
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
)

// defaultStoreRetries is how many extra attempts an external-store call gets
// when the store reports ErrStoreUnavailable.
const defaultStoreRetries = 2

// ServiceParams contains the dependencies for creating a Service. Config,
// Users, Credentials, Rewards, and Tokens are required; the rest default.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// Users persists user records (required).
	Users UserStore

	// Credentials persists credential records (required).
	Credentials CredentialStore

	// Rewards grants registration bonuses (required).
	Rewards RewardLedger

	// Tokens issues session tokens (required).
	Tokens TokenIssuer

	// Challenges holds pending challenges. Defaults to an in-memory store
	// using the config's challenge TTL.
	Challenges *ChallengeStore

	// Verifier wraps the WebAuthn library. Defaults to one built from Config.
	Verifier *Verifier

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// StoreRetries is how many extra attempts retryable store failures get.
	StoreRetries int
}

// Service orchestrates the unified authentication flow: one challenge serves
// both login and registration, and the branch is decided by whether the
// responding credential is already registered.
type Service struct {
	config     *Config
	challenges *ChallengeStore
	registry   *Registry
	verifier   *Verifier
	users      UserStore
	rewards    RewardLedger
	tokens     TokenIssuer
	logger     *slog.Logger
	retries    int
	now        func() time.Time
}

// NewService creates an authentication service from the given parameters.
// The challenge sweeper is started; call Close to stop it.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.Rewards == nil {
		return nil, fmt.Errorf("reward ledger is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid passkey config: %w", err)
	}

	verifier := params.Verifier
	if verifier == nil {
		var err error
		verifier, err = NewVerifier(params.Config)
		if err != nil {
			return nil, err
		}
	}

	challenges := params.Challenges
	if challenges == nil {
		challenges = NewChallengeStore(params.Config.ChallengeTTL, 0)
	}
	challenges.Start()

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retries := params.StoreRetries
	if retries <= 0 {
		retries = defaultStoreRetries
	}

	return &Service{
		config:     params.Config,
		challenges: challenges,
		registry:   NewRegistry(params.Credentials),
		verifier:   verifier,
		users:      params.Users,
		rewards:    params.Rewards,
		tokens:     params.Tokens,
		logger:     logger,
		retries:    retries,
		now:        time.Now,
	}, nil
}

// Close stops background work. The service must not be used afterwards.
func (s *Service) Close() {
	s.challenges.Stop()
}

// StartAuthentication creates a single-use unified challenge and returns
// both ceremony option sets bound to it. The creation options carry an empty
// exclude list and the request options an empty allow list; the client
// answers with whichever ceremony applies, and the server branches on the
// responding credential.
func (s *Service) StartAuthentication(ctx context.Context, device DeviceInfo) (*AuthenticationOptions, error) {
	handle := []byte(uuid.NewString())

	creation, regSession, err := s.verifier.BeginRegistration(handle)
	if err != nil {
		return nil, err
	}
	request, loginSession, err := s.verifier.BeginLogin()
	if err != nil {
		return nil, err
	}

	// Both option sets must carry the same challenge bytes so a single
	// stored challenge covers either response.
	loginSession.Challenge = regSession.Challenge
	request.Response.Challenge = creation.Response.Challenge

	ch := s.challenges.Create(&Challenge{
		Kind:         ChallengeKindUnified,
		UserHandle:   handle,
		Device:       device,
		Registration: regSession,
		Login:        loginSession,
	})

	s.logger.Debug("authentication started",
		"challenge_id", ch.ID,
		"expires_at", ch.ExpiresAt)

	return &AuthenticationOptions{
		ChallengeID: ch.ID,
		Creation:    creation,
		Request:     request,
		ExpiresAt:   ch.ExpiresAt,
	}, nil
}

// CompleteAuthentication consumes the challenge and verifies the
// authenticator response. Exactly one of creation or assertion must be
// non-nil; the transport decides which by payload shape. The challenge is
// invalidated before verification, so a resubmitted challenge id always
// fails with ErrChallengeNotFound regardless of the first attempt's outcome.
func (s *Service) CompleteAuthentication(ctx context.Context, challengeID string, creation *protocol.ParsedCredentialCreationData, assertion *protocol.ParsedCredentialAssertionData) (*AuthResult, error) {
	if (creation == nil) == (assertion == nil) {
		return nil, NewError("service.complete",
			fmt.Errorf("%w: exactly one response type is required", ErrInvalidRequest))
	}

	ch, err := s.challenges.Consume(challengeID)
	if err != nil {
		return nil, err
	}

	if assertion != nil {
		return s.completeLogin(ctx, ch, assertion)
	}
	return s.completeRegistration(ctx, ch, creation)
}

func (s *Service) completeLogin(ctx context.Context, ch *Challenge, assertion *protocol.ParsedCredentialAssertionData) (*AuthResult, error) {
	if ch.Kind == ChallengeKindRegistration {
		return nil, NewError("service.login",
			fmt.Errorf("%w: challenge does not permit login", ErrVerificationFailed))
	}

	credID := assertion.RawID

	var cred *Credential
	err := s.withRetry(ctx, func() error {
		var findErr error
		cred, findErr = s.registry.FindByCredentialID(ctx, credID)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	if cred == nil {
		// Without a stored public key the assertion cannot be verified.
		return nil, NewError("service.login",
			fmt.Errorf("%w: unknown credential", ErrVerificationFailed))
	}

	var user *User
	err = s.withRetry(ctx, func() error {
		var getErr error
		user, getErr = s.users.GetByID(ctx, cred.UserID)
		return getErr
	})
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.VerifyAssertion(ch, assertion, cred, user)
	if err != nil {
		return nil, err
	}
	if result.CloneWarning {
		return nil, NewError("service.login", ErrClonedCredential)
	}

	if err := s.withRetry(ctx, func() error {
		return s.registry.TouchCounter(ctx, cred.ID, result.NewCounter)
	}); err != nil {
		return nil, err
	}

	user.LastLoginAt = s.now()
	if err := s.withRetry(ctx, func() error {
		return s.users.Save(ctx, user)
	}); err != nil {
		s.logger.Warn("failed to record last login",
			"user_id", user.ID,
			slog.Any("error", err))
	}

	token, err := s.tokens.Issue(user.ID, cred.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login completed",
		"user_id", user.ID,
		"challenge_id", ch.ID)

	return &AuthResult{
		Action:       ActionLogin,
		User:         user,
		SessionToken: token,
	}, nil
}

func (s *Service) completeRegistration(ctx context.Context, ch *Challenge, creation *protocol.ParsedCredentialCreationData) (*AuthResult, error) {
	if ch.Kind == ChallengeKindLogin {
		return nil, NewError("service.register",
			fmt.Errorf("%w: challenge does not permit registration", ErrVerificationFailed))
	}

	result, err := s.verifier.VerifyAttestation(ch, creation)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &User{
		ID:          string(ch.UserHandle),
		DID:         s.mintDID(string(ch.UserHandle)),
		DisplayName: fmt.Sprintf("cue-user-%x", result.Credential.ID[:min(4, len(result.Credential.ID))]),
		CreatedAt:   now,
		LastLoginAt: now,
	}

	cred := &Credential{
		ID:              result.Credential.ID,
		UserID:          user.ID,
		PublicKey:       result.Credential.PublicKey,
		AttestationType: result.Credential.AttestationType,
		Transport:       result.Credential.Transport,
		SignCount:       result.NewCounter,
		BackupEligible:  result.Credential.Flags.BackupEligible,
		BackupState:     result.Credential.Flags.BackupState,
		DeviceType:      ch.Device.Platform,
	}

	// Compare-and-insert on the credential ID settles any concurrent
	// registration of the same authenticator.
	if err := s.withRetry(ctx, func() error {
		return s.registry.Save(ctx, cred)
	}); err != nil {
		return nil, err
	}

	if err := s.withRetry(ctx, func() error {
		return s.users.Create(ctx, user)
	}); err != nil {
		// The credential is already stored but its user never will be. Roll
		// it back so the authenticator can register again on a fresh
		// challenge instead of hitting ErrDuplicateCredential forever.
		if rbErr := s.withRetry(ctx, func() error {
			return s.registry.Remove(ctx, cred.ID)
		}); rbErr != nil {
			s.logger.Error("failed to roll back credential after user create failure",
				"user_id", user.ID,
				slog.Any("error", rbErr))
		}
		return nil, err
	}

	rewards := s.grantBonus(ctx, user.ID)

	token, err := s.tokens.Issue(user.ID, cred.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration completed",
		"user_id", user.ID,
		"did", user.DID,
		"challenge_id", ch.ID)

	return &AuthResult{
		Action:       ActionRegister,
		User:         user,
		SessionToken: token,
		Rewards:      rewards,
	}, nil
}

// grantBonus requests the one-time registration bonus. A ledger failure is
// never fatal; it degrades to a warning on the result.
func (s *Service) grantBonus(ctx context.Context, userID string) *RewardGrant {
	var grant *RewardGrant
	err := s.withRetry(ctx, func() error {
		var grantErr error
		grant, grantErr = s.rewards.GrantRegistrationBonus(ctx, userID)
		return grantErr
	})
	if err != nil {
		s.logger.Warn("registration bonus grant failed",
			"user_id", userID,
			slog.Any("error", err))
		return &RewardGrant{
			Granted: false,
			Warning: "registration bonus could not be granted",
		}
	}
	return grant
}

// RestoreSession verifies a session token and returns the user it belongs
// to. Invalid or expired tokens yield ErrTokenInvalid.
func (s *Service) RestoreSession(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	var user *User
	err = s.withRetry(ctx, func() error {
		var getErr error
		user, getErr = s.users.GetByID(ctx, claims.UserID())
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// withRetry re-runs fn on ErrStoreUnavailable up to the configured number of
// extra attempts, backing off briefly between tries.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsStoreUnavailable(err) || attempt >= s.retries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
}

func (s *Service) mintDID(userID string) string {
	return fmt.Sprintf("did:web:%s:u:%s", s.config.RPID, userID)
}
