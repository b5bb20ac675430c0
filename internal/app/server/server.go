// Package server assembles the HTTP router of the link service.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/handler"
	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/middleware"
)

// DefaultVerifyLimit is the number of password attempts allowed per client
// and slug each minute.
const DefaultVerifyLimit = 10

type Options struct {
	BaseURL       string
	// SiteURL prefixes relative redirect targets.
	SiteURL       string
	TrustedSubnet string
	// VerifyLimit <= 0 falls back to DefaultVerifyLimit.
	VerifyLimit   int
	EnablePprof   bool
}

func slugKey(r *http.Request) (string, error) {
	return chi.URLParam(r, "slug"), nil
}

func tooManyAttempts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"too many password attempts, try again later"}`))
}

func Init(svc service.LinkServiceIface, auth service.AuthIface, opts Options, logger *zap.Logger) *chi.Mux {
	links := handler.NewLinks(svc, logger, opts.BaseURL, opts.SiteURL)
	manage := handler.NewManage(svc, logger, opts.BaseURL)
	health := handler.NewHealth(svc, logger)

	verifyLimit := opts.VerifyLimit
	if verifyLimit <= 0 {
		verifyLimit = DefaultVerifyLimit
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5, "application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithMetrics)

	r.Get("/ping", health.Ping)
	r.Get("/s/{slug}", links.Redirect)

	r.Route("/links/{slug}", func(r chi.Router) {
		r.Get("/", links.Get)
		r.Get("/meta", links.Meta)
		r.Post("/view", links.View)
		r.With(httprate.Limit(
			verifyLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, slugKey),
			httprate.WithLimitHandler(tooManyAttempts),
		)).Post("/verify", links.Verify)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithJWT(auth))
		r.Post("/links", manage.Create)
		r.Get("/links", manage.List)
		r.Patch("/links/{id}", manage.Update)
		r.Get("/links/{id}/stats", manage.Stats)
	})

	r.With(middleware.WithSubnet(opts.TrustedSubnet)).Handle("/metrics", promhttp.Handler())

	if opts.EnablePprof {
		r.Route("/debug", func(r chi.Router) {
			r.Use(middleware.WithSubnet(opts.TrustedSubnet))
			r.Mount("/", chimw.Profiler())
		})
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
