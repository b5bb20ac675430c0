package intercepters

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type contextKey string

const RealIPKey contextKey = "real-ip"

// SubnetIPInterceptor stores the caller address in the context: the
// x-real-ip metadata when present, otherwise the peer address.
func SubnetIPInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if ips := md.Get("x-real-ip"); len(ips) > 0 && ips[0] != "" {
			return handler(context.WithValue(ctx, RealIPKey, ips[0]), req)
		}
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		host, _, err := net.SplitHostPort(p.Addr.String())
		if err == nil {
			ctx = context.WithValue(ctx, RealIPKey, host)
		}
	}
	return handler(ctx, req)
}

// RealIP returns the address stored by SubnetIPInterceptor.
func RealIP(ctx context.Context) string {
	ip, _ := ctx.Value(RealIPKey).(string)
	return ip
}

// WithTrustedSubnet rejects callers outside the CIDR with PermissionDenied.
// An empty subnet disables the check. It must run after SubnetIPInterceptor.
func WithTrustedSubnet(subnet string) (grpc.UnaryServerInterceptor, error) {
	if subnet == "" {
		return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}, nil
	}

	_, trusted, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ip := net.ParseIP(RealIP(ctx))
		if ip == nil || !trusted.Contains(ip) {
			return nil, status.Error(codes.PermissionDenied, "caller is outside the trusted subnet")
		}
		return handler(ctx, req)
	}, nil
}
