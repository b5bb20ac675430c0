package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/middleware"
	"github.com/atinyakov/linkgate/internal/models"
	"github.com/atinyakov/linkgate/internal/storage"
)

// ManageHandler serves the owner endpoints under /api.
type ManageHandler struct {
	service  service.LinkServiceIface
	logger   *zap.Logger
	baseURL  string
	validate *validator.Validate
}

func NewManage(s service.LinkServiceIface, l *zap.Logger, baseURL string) *ManageHandler {
	return &ManageHandler{
		service:  s,
		logger:   l,
		baseURL:  baseURL,
		validate: newValidator(),
	}
}

func (h *ManageHandler) ownerLink(rec *storage.LinkRecord) models.OwnerLinkResponse {
	out := models.OwnerLinkResponse{
		ID:                rec.ID,
		Slug:              rec.Slug,
		ShortURL:          h.baseURL + "/s/" + rec.Slug,
		IsActive:          rec.IsActive,
		PasswordProtected: rec.HasPassword(),
		ExpiresAt:         rec.ExpiresAt,
		MaxViews:          rec.MaxViews,
		ViewCount:         rec.ViewCount,
		AllowedEmails:     rec.AllowedEmails,
		LastViewedAt:      rec.LastViewedAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	if rec.Target != nil {
		out.TargetID = rec.Target.TargetID()
		out.TargetType = string(rec.Target.Kind())
	}
	return out
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || id == "" {
		writeJSON(w, http.StatusUnauthorized, models.DenialResponse{Error: http.StatusText(http.StatusUnauthorized)})
		return "", false
	}
	return id, true
}

func (h *ManageHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, models.DenialResponse{Error: "slug already taken"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.DenialResponse{Error: "link not found"})
	case errors.Is(err, storage.ErrTargetNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, models.DenialResponse{Error: "target not found"})
	case errors.Is(err, service.ErrInvalidTarget):
		writeJSON(w, http.StatusBadRequest, models.DenialResponse{Error: err.Error()})
	case errors.Is(err, gate.ErrPasswordTooLong):
		writeJSON(w, http.StatusBadRequest, models.DenialResponse{Error: err.Error()})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.DenialResponse{Error: "not the owner of this link"})
	default:
		internalError(w, h.logger, "link management failed", err)
	}
}

func (h *ManageHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}

	var req models.CreateLinkRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rec, err := h.service.CreateLink(ctx, owner, service.LinkInput{
		Slug:          req.Slug,
		TargetKind:    storage.TargetKind(req.TargetType),
		TargetID:      req.TargetID,
		Password:      req.Password,
		ExpiresAt:     req.ExpiresAt,
		MaxViews:      req.MaxViews,
		IsActive:      req.IsActive,
		AllowedEmails: req.AllowedEmails,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.ownerLink(rec))
}

func (h *ManageHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	links, err := h.service.ListLinks(ctx, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(links) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := make([]models.OwnerLinkResponse, 0, len(links))
	for i := range links {
		out = append(out, h.ownerLink(&links[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ManageHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}

	var req models.UpdateLinkRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rec, err := h.service.UpdateLink(ctx, owner, chi.URLParam(r, "id"), service.LinkPatch{
		Slug:          req.Slug,
		Password:      req.Password,
		ExpiresAt:     req.ExpiresAt,
		ClearExpiry:   req.ClearExpiry,
		MaxViews:      req.MaxViews,
		ClearMaxViews: req.ClearMaxViews,
		IsActive:      req.IsActive,
		AllowedEmails: req.AllowedEmails,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.ownerLink(rec))
}

func (h *ManageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.service.LinkStats(ctx, owner, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StatsResponse{
		LinkID:       stats.Link.ID,
		Slug:         stats.Link.Slug,
		ViewCount:    stats.ViewCount,
		LastViewedAt: stats.LastViewedAt,
		RecentEvents: stats.RecentEvents,
	})
}
