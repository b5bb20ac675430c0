// Package grpc exposes link resolution to internal callers over gRPC.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/intercepters"
	"github.com/atinyakov/linkgate/internal/recorder"
	"github.com/atinyakov/linkgate/internal/storage"
)

// Server wraps the gRPC server and dependencies.
type Server struct {
	grpcServer *grpc.Server
	address    string
	logger     *zap.Logger
}

// DefaultVerifyLimit is the number of Verify calls allowed per caller and
// slug each minute.
const DefaultVerifyLimit = 10

// New creates a gRPC server for svc. Calls from outside trustedSubnet are
// rejected when it is set. verifyLimit <= 0 falls back to DefaultVerifyLimit.
func New(address, trustedSubnet string, verifyLimit int, svc service.LinkServiceIface, logger *zap.Logger) (*Server, error) {
	guard, err := intercepters.WithTrustedSubnet(trustedSubnet)
	if err != nil {
		return nil, err
	}
	if verifyLimit <= 0 {
		verifyLimit = DefaultVerifyLimit
	}
	limiter := intercepters.NewRateLimiter(verifyLimit, time.Minute, "/"+serviceName+"/Verify")

	s := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(intercepters.InterceptorLogger(logger)),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(func(p any) error {
				logger.Error("panic in gRPC handler", zap.Any("panic", p))
				return status.Error(codes.Internal, "internal error")
			})),
			intercepters.SubnetIPInterceptor,
			guard,
			limiter.Unary,
		),
	)

	s.RegisterService(&LinkGateServiceDesc, &LinkGate{Service: svc, Logger: logger})

	return &Server{
		grpcServer: s,
		address:    address,
		logger:     logger,
	}, nil
}

// Start listens on the configured address and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error("gRPC server failed to listen", zap.Error(err))
		return err
	}

	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop shuts down the server gracefully.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// LinkGate implements LinkGateServer on top of the link service.
type LinkGate struct {
	Service service.LinkServiceIface
	Logger  *zap.Logger
}

var denialCodes = map[gate.Reason]codes.Code{
	gate.NotFound:          codes.NotFound,
	gate.Disabled:          codes.PermissionDenied,
	gate.Expired:           codes.FailedPrecondition,
	gate.ViewLimitReached:  codes.FailedPrecondition,
	gate.PasswordIncorrect: codes.Unauthenticated,
}

func reply(slug string, res *service.Resolution) (*LinkReply, error) {
	switch d := res.Decision.(type) {
	case gate.Resolved:
		return &LinkReply{
			Slug:       slug,
			TargetID:   d.Target.ID,
			TargetURL:  d.Target.URL,
			TargetName: d.Target.DisplayName,
			TargetType: string(d.Target.Kind),
		}, nil
	case gate.Denied:
		if d.Reason == gate.PasswordRequired {
			return &LinkReply{Slug: slug, PasswordRequired: true}, nil
		}
		code, ok := denialCodes[d.Reason]
		if !ok {
			code = codes.Unknown
		}
		return nil, status.Error(code, d.Reason.String())
	}
	return nil, status.Error(codes.Internal, "unexpected decision")
}

func visitFrom(ctx context.Context, referrer string) recorder.Visit {
	v := recorder.Visit{
		ClientIP: intercepters.RealIP(ctx),
		Referrer: referrer,
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			v.UserAgent = ua[0]
		}
	}
	return v
}

func (g *LinkGate) internal(msg, slug string, err error) error {
	g.Logger.Error(msg, zap.String("slug", slug), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func (g *LinkGate) Resolve(ctx context.Context, req *ResolveRequest) (*LinkReply, error) {
	res, err := g.Service.Inspect(ctx, req.Slug)
	if err != nil {
		return nil, g.internal("cannot resolve link", req.Slug, err)
	}
	return reply(req.Slug, res)
}

func (g *LinkGate) Verify(ctx context.Context, req *VerifyRequest) (*LinkReply, error) {
	if req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "password is required")
	}

	res, err := g.Service.Verify(ctx, req.Slug, req.Password, visitFrom(ctx, ""))
	if err != nil {
		return nil, g.internal("cannot verify link password", req.Slug, err)
	}
	return reply(req.Slug, res)
}

func (g *LinkGate) View(ctx context.Context, req *ViewRequest) (*LinkReply, error) {
	kind := storage.EventView
	if req.Download {
		kind = storage.EventDownload
	}

	res, err := g.Service.View(ctx, req.Slug, kind, visitFrom(ctx, req.Referrer))
	if err != nil {
		return nil, g.internal("cannot view link", req.Slug, err)
	}
	return reply(req.Slug, res)
}
