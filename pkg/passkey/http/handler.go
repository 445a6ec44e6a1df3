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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/cueprotocol/go-passkey/pkg/metrics"
	"github.com/cueprotocol/go-passkey/pkg/passkey"
)

// JWKSProvider exposes the token issuer's public key set.
type JWKSProvider interface {
	JWKS() jose.JSONWebKeySet
}

// Handler provides HTTP handlers for the unified authentication flow.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *passkey.Service
	keys    JWKSProvider
	logger  *slog.Logger
}

// NewHandler creates a new authentication HTTP handler. keys may be nil if
// the JWKS endpoint is not mounted.
func NewHandler(service *passkey.Service, keys JWKSProvider) *Handler {
	return &Handler{
		service: service,
		keys:    keys,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// Start handles POST /start
//
// Request body (optional):
//
//	{
//	    "device": {"name": "...", "platform": "...", "user_agent": "..."}
//	}
//
// Response: StartResponse with both option sets and the challenge id.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid request body")
		return
	}
	if req.Device.UserAgent == "" {
		req.Device.UserAgent = r.UserAgent()
	}

	start := time.Now()
	options, err := h.service.StartAuthentication(r.Context(), req.Device)
	if err != nil {
		metrics.RecordAuthOperation(metrics.ActionStart, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordAuthError(metrics.ActionStart, passkey.ErrorKind(err))
		h.handleServiceError(w, err)
		return
	}
	metrics.RecordAuthOperation(metrics.ActionStart, metrics.StatusSuccess, time.Since(start).Seconds())

	h.writeJSON(w, http.StatusOK, StartResponse{
		ChallengeID:     options.ChallengeID,
		CreationOptions: options.Creation,
		RequestOptions:  options.Request,
		ExpiresAt:       options.ExpiresAt,
	})
}

// Complete handles POST /complete
//
// Request body:
//
//	{
//	    "challenge_id": "...",
//	    "credential": { ...PublicKeyCredential JSON... }
//	}
//
// The credential is classified by shape: an attestationObject means a
// registration, a signature means a login.
// Response: CompleteResponse or a typed error.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid request body")
		return
	}
	if req.ChallengeID == "" {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "challenge_id is required")
		return
	}
	if len(req.Credential) == 0 {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "credential is required")
		return
	}

	var probe credentialProbe
	if err := json.Unmarshal(req.Credential, &probe); err != nil {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid credential payload")
		return
	}

	var creation *protocol.ParsedCredentialCreationData
	var assertion *protocol.ParsedCredentialAssertionData

	switch {
	case probe.Response.AttestationObject != "":
		parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid attestation response")
			return
		}
		creation = parsed
	case probe.Response.Signature != "":
		parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid assertion response")
			return
		}
		assertion = parsed
	default:
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "credential is neither an attestation nor an assertion")
		return
	}

	action := metrics.ActionLogin
	if creation != nil {
		action = metrics.ActionRegister
	}

	start := time.Now()
	result, err := h.service.CompleteAuthentication(r.Context(), req.ChallengeID, creation, assertion)
	if err != nil {
		metrics.RecordAuthOperation(action, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordAuthError(action, passkey.ErrorKind(err))
		h.handleServiceError(w, err)
		return
	}
	metrics.RecordAuthOperation(string(result.Action), metrics.StatusSuccess, time.Since(start).Seconds())
	if result.Rewards != nil {
		metrics.RecordRewardGrant(result.Rewards.Granted)
	}

	h.writeJSON(w, http.StatusOK, CompleteResponse{
		Action:       result.Action,
		User:         result.User,
		SessionToken: result.SessionToken,
		Rewards:      result.Rewards,
	})
}

// Restore handles POST /restore
//
// Request body: {"session_token": "..."}
// Response: RestoreResponse with the user, or a typed error.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "invalid request body")
		return
	}
	if req.SessionToken == "" {
		h.writeError(w, http.StatusBadRequest, passkey.KindInvalidRequest, "session_token is required")
		return
	}

	start := time.Now()
	user, err := h.service.RestoreSession(r.Context(), req.SessionToken)
	if err != nil {
		metrics.RecordAuthOperation(metrics.ActionRestore, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordAuthError(metrics.ActionRestore, passkey.ErrorKind(err))
		h.handleServiceError(w, err)
		return
	}
	metrics.RecordAuthOperation(metrics.ActionRestore, metrics.StatusSuccess, time.Since(start).Seconds())

	h.writeJSON(w, http.StatusOK, RestoreResponse{User: user})
}

// JWKS handles GET /.well-known/jwks.json
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		http.NotFound(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, h.keys.JWKS())
}

// handleServiceError maps service errors to HTTP responses using the stable
// error kinds. Unknown errors collapse to a generic 500.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	kind := passkey.ErrorKind(err)
	switch kind {
	case passkey.KindChallengeNotFound:
		h.writeError(w, http.StatusBadRequest, kind, "challenge not found or expired, restart the flow")
	case passkey.KindVerificationFailed:
		h.writeError(w, http.StatusUnauthorized, kind, "verification failed")
	case passkey.KindClonedCredential:
		h.writeError(w, http.StatusForbidden, kind, "credential rejected")
	case passkey.KindDuplicateCredential:
		h.writeError(w, http.StatusConflict, kind, "credential already registered")
	case passkey.KindUserNotFound:
		h.writeError(w, http.StatusNotFound, kind, "user not found")
	case passkey.KindCredentialNotFound:
		h.writeError(w, http.StatusNotFound, kind, "credential not found")
	case passkey.KindStoreUnavailable:
		h.writeError(w, http.StatusServiceUnavailable, kind, "service temporarily unavailable")
	case passkey.KindTokenInvalid:
		h.writeError(w, http.StatusUnauthorized, kind, "session token invalid")
	case passkey.KindInvalidRequest:
		h.writeError(w, http.StatusBadRequest, kind, "invalid request")
	default:
		h.logger.Error("unhandled service error", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, passkey.KindInternal, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
