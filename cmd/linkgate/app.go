package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/server"
	grpcserver "github.com/atinyakov/linkgate/internal/app/server/grpc"
	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/config"
	"github.com/atinyakov/linkgate/internal/geo"
	"github.com/atinyakov/linkgate/internal/logger"
	"github.com/atinyakov/linkgate/internal/recorder"
	"github.com/atinyakov/linkgate/internal/repository"
	"github.com/atinyakov/linkgate/internal/storage"
	"github.com/atinyakov/linkgate/internal/worker"
)

// registry is what both link stores provide.
type registry interface {
	service.Registry
	recorder.Counter
}

// eventStore receives flushed access events and serves them back for stats.
type eventStore interface {
	worker.Sink
	service.EventLog
}

type app struct {
	handler  http.Handler
	service  *service.LinkService
	auth     *service.Auth
	recorder *recorder.Recorder
	grpc     *grpcserver.Server
	closers  []func() error
	logger   *zap.Logger
}

func build(ctx context.Context, opts *config.Options, log *logger.Logger) (*app, error) {
	a := &app{logger: log.Log}

	var (
		links  registry
		events eventStore
	)

	if opts.DatabaseDSN != "" {
		repo, err := repository.Open(ctx, opts.DatabaseDSN, log.Named("repository"))
		if err != nil {
			return nil, fmt.Errorf("open link registry: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		links, events = repo, repo
		a.logger.Info("using database registry")
	} else {
		mem := storage.CreateMemoryStorage()
		if opts.DemoMode {
			if err := mem.SeedDemo(ctx, time.Now()); err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
		links, events = mem, mem
		a.logger.Info("using in memory registry", zap.Bool("demo", opts.DemoMode))
	}

	if opts.FilePath != "" {
		fs, err := storage.NewFileStorage(opts.FilePath, log.Named("events"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open access event file: %w", err)
		}
		a.closers = append(a.closers, fs.Close)
		events = fs
		a.logger.Info("writing access events to file", zap.String("path", opts.FilePath))
	}

	flusher := worker.NewEventFlushWorker(log.Named("flusher"), events, opts.FlushInterval, opts.FlushBatchSize)
	a.recorder = recorder.New(links, geo.New(opts.GeoEndpoint, log.Named("geo")), flusher, recorder.Options{
		Workers:   opts.RecorderWorkers,
		QueueSize: opts.RecorderQueueSize,
		Timeout:   opts.RecorderTimeout,
	}, log.Named("recorder"))

	a.service = service.NewLinkService(links, events, a.recorder, time.Now, log.Named("service"))
	a.auth = service.NewAuth(opts.JWTSecret)

	a.handler = server.Init(a.service, a.auth, server.Options{
		BaseURL:       opts.ResultHostname,
		SiteURL:       opts.SiteURL,
		TrustedSubnet: opts.TrustedSubnet,
		VerifyLimit:   opts.VerifyRateLimit,
		EnablePprof:   opts.EnablePprof,
	}, log.Named("http"))

	if opts.GRPCAddress != "" {
		g, err := grpcserver.New(opts.GRPCAddress, opts.TrustedSubnet, opts.VerifyRateLimit, a.service, log.Named("grpc"))
		if err != nil {
			_ = a.shutdown(context.Background())
			return nil, fmt.Errorf("init gRPC server: %w", err)
		}
		a.grpc = g
	}

	if opts.DemoMode && opts.DatabaseDSN == "" {
		token, err := a.auth.BuildJWTString(storage.DemoOwnerID)
		if err == nil {
			a.logger.Info("demo owner token", zap.String("owner", storage.DemoOwnerID), zap.String("token", token))
		}
	}

	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// shutdown drains the recorder so queued views reach the stores, then closes them.
func (a *app) shutdown(ctx context.Context) error {
	if a.grpc != nil {
		a.grpc.GracefulStop()
	}

	var err error
	if a.recorder != nil {
		if stopErr := a.recorder.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("stop recorder: %w", stopErr)
		}
	}

	a.close()
	return err
}
