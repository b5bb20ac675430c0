package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/models"
	"github.com/atinyakov/linkgate/internal/storage"
)

const requestTimeout = 3 * time.Second

// LinksHandler serves the public resolution endpoints.
type LinksHandler struct {
	service  service.LinkServiceIface
	logger   *zap.Logger
	baseURL  string
	siteURL  string
	validate *validator.Validate
}

// NewLinks builds the public handlers. baseURL is where this service is
// reachable, siteURL the site serving asset paths and collection pages.
func NewLinks(s service.LinkServiceIface, l *zap.Logger, baseURL, siteURL string) *LinksHandler {
	return &LinksHandler{
		service:  s,
		logger:   l,
		baseURL:  baseURL,
		siteURL:  strings.TrimRight(siteURL, "/"),
		validate: newValidator(),
	}
}

// location makes a relative target absolute against siteURL.
func (h *LinksHandler) location(target string) string {
	if h.siteURL == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return target
	}
	return h.siteURL + target
}

func linkResponse(rec *storage.LinkRecord) models.LinkResponse {
	return models.LinkResponse{
		ID:                rec.ID,
		Slug:              rec.Slug,
		IsActive:          rec.IsActive,
		ExpiresAt:         rec.ExpiresAt,
		MaxViews:          rec.MaxViews,
		ViewCount:         rec.ViewCount,
		PasswordProtected: rec.HasPassword(),
	}
}

// Get describes a link. It never redirects and never records a view.
func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.Inspect(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		internalError(w, h.logger, "cannot inspect link", err)
		return
	}

	switch d := res.Decision.(type) {
	case gate.Resolved:
		body := linkResponse(res.Record)
		body.TargetURL = d.Target.URL
		body.TargetName = d.Target.DisplayName
		body.TargetType = string(d.Target.Kind)
		writeJSON(w, http.StatusOK, body)
	case gate.Denied:
		if d.Reason == gate.PasswordRequired {
			writeJSON(w, http.StatusOK, linkResponse(res.Record))
			return
		}
		writeDenial(w, d.Reason)
	}
}

// Verify checks a password and returns the target on success.
func (h *LinksHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.Verify(ctx, chi.URLParam(r, "slug"), req.Password, visitFrom(r))
	if err != nil {
		internalError(w, h.logger, "cannot verify link password", err)
		return
	}

	switch d := res.Decision.(type) {
	case gate.Resolved:
		writeJSON(w, http.StatusOK, models.VerifyResponse{
			Success:    true,
			TargetURL:  d.Target.URL,
			TargetName: d.Target.DisplayName,
			TargetType: string(d.Target.Kind),
		})
	case gate.Denied:
		writeDenial(w, d.Reason)
	}
}

// View records an access to a link that needs no password.
func (h *LinksHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.service.View(ctx, chi.URLParam(r, "slug"), storage.EventView, visitFrom(r))
	if err != nil {
		internalError(w, h.logger, "cannot view link", err)
		return
	}

	switch d := res.Decision.(type) {
	case gate.Resolved:
		writeJSON(w, http.StatusOK, models.ViewResponse{
			Success:    true,
			TargetURL:  d.Target.URL,
			TargetName: d.Target.DisplayName,
			TargetType: string(d.Target.Kind),
		})
	case gate.Denied:
		if d.Reason == gate.PasswordRequired {
			writeJSON(w, http.StatusOK, models.ViewResponse{PasswordRequired: true})
			return
		}
		writeDenial(w, d.Reason)
	}
}

// Redirect follows a short link from a browser: 307 to the target, a JSON
// prompt for password-gated links, the mapped status otherwise.
// ?download=1 records a download instead of a view.
func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	kind := storage.EventView
	if r.URL.Query().Get("download") == "1" {
		kind = storage.EventDownload
	}

	slug := chi.URLParam(r, "slug")
	res, err := h.service.View(ctx, slug, kind, visitFrom(r))
	if err != nil {
		internalError(w, h.logger, "cannot resolve link", err)
		return
	}

	switch d := res.Decision.(type) {
	case gate.Resolved:
		http.Redirect(w, r, h.location(d.Target.URL), http.StatusTemporaryRedirect)
	case gate.Denied:
		if d.Reason == gate.PasswordRequired {
			writeJSON(w, http.StatusOK, models.PasswordPrompt{
				PasswordRequired: true,
				VerifyURL:        "/links/" + slug + "/verify",
			})
			return
		}
		writeDenial(w, d.Reason)
	}
}

// Meta returns Open Graph fields for link previews. A gated or denied link
// never exposes its target name.
func (h *LinksHandler) Meta(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	slug := chi.URLParam(r, "slug")
	res, err := h.service.Inspect(ctx, slug)
	if err != nil {
		internalError(w, h.logger, "cannot inspect link", err)
		return
	}

	meta := models.MetaResponse{
		Image: h.baseURL + "/static/og-default.png",
		URL:   h.baseURL + "/s/" + slug,
	}

	switch d := res.Decision.(type) {
	case gate.Resolved:
		meta.Title = d.Target.DisplayName
		meta.Description = "Shared " + string(d.Target.Kind)
	case gate.Denied:
		switch d.Reason {
		case gate.NotFound:
			writeDenial(w, d.Reason)
			return
		case gate.PasswordRequired:
			meta.Title = "Protected link"
			meta.Description = "This link requires a password"
		default:
			meta.Title = "Link unavailable"
			meta.Description = denialMessages[d.Reason]
		}
	}

	writeJSON(w, http.StatusOK, meta)
}
