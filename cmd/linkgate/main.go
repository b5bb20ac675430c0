package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/atinyakov/linkgate/internal/config"
	"github.com/atinyakov/linkgate/internal/logger"
)

var buildVersion string
var buildDate string
var buildCommit string

const shutdownTimeout = 10 * time.Second

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func main() {
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))

	options, err := config.Parse()
	if err != nil {
		panic(err)
	}

	log := logger.New()
	if err := log.Init(options.LogLevel, options.LogDevelopment); err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Log.Sync()
	}()
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := build(ctx, options, log)
	if err != nil {
		zapLogger.Fatal("cannot start", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              options.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)

	if a.grpc != nil {
		go func() {
			errc <- a.grpc.Start()
		}()
	}

	go func() {
		if options.EnableHTTPS {
			host := "localhost"
			if u, err := url.Parse(options.ResultHostname); err == nil && u.Hostname() != "" {
				host = u.Hostname()
			}
			manager := &autocert.Manager{
				Cache:      autocert.DirCache("cache-dir"),
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(host),
			}
			srv.Addr = ":443"
			srv.TLSConfig = manager.TLSConfig()
			zapLogger.Info("Server is running with TLS", zap.String("host", host))
			errc <- srv.ListenAndServeTLS("", "")
			return
		}

		zapLogger.Info("Server is running", zap.String("address", options.Port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("shutting down")
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("http shutdown", zap.Error(err))
	}
	if err := a.shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown", zap.Error(err))
	}
}
