package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/service"
)

type HealthHandler struct {
	service service.LinkServiceIface
	logger  *zap.Logger
}

func NewHealth(s service.LinkServiceIface, l *zap.Logger) *HealthHandler {
	return &HealthHandler{
		service: s,
		logger:  l,
	}
}

// Ping reports whether the link registry is reachable.
func (h *HealthHandler) Ping(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	if err := h.service.PingContext(ctx); err != nil {
		h.logger.Warn("registry ping failed", zap.Error(err))
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}
