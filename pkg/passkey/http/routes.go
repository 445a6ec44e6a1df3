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
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the authentication routes on a chi router.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc, issuer)
//	r.Route("/api/v1/auth", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/start", h.Start)
	r.Post("/complete", h.Complete)
	r.Post("/restore", h.Restore)
}

// MountStdlib mounts the authentication routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash.
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc("POST "+prefix+"/start", h.Start)
	mux.HandleFunc("POST "+prefix+"/complete", h.Complete)
	mux.HandleFunc("POST "+prefix+"/restore", h.Restore)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the route table for manual mounting on other routers.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/start", Handler: h.Start},
		{Method: "POST", Path: "/complete", Handler: h.Complete},
		{Method: "POST", Path: "/restore", Handler: h.Restore},
	}
}
