package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "linkgate.v1.LinkGate"

type ResolveRequest struct {
	Slug string `json:"slug"`
}

type VerifyRequest struct {
	Slug     string `json:"slug"`
	Password string `json:"password"`
}

type ViewRequest struct {
	Slug     string `json:"slug"`
	Download bool   `json:"download,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

func (r *ResolveRequest) GetSlug() string { return r.Slug }
func (r *VerifyRequest) GetSlug() string  { return r.Slug }
func (r *ViewRequest) GetSlug() string    { return r.Slug }

// LinkReply carries either the resolved target or PasswordRequired.
type LinkReply struct {
	Slug             string `json:"slug"`
	PasswordRequired bool   `json:"password_required,omitempty"`
	TargetID         string `json:"target_id,omitempty"`
	TargetURL        string `json:"target_url,omitempty"`
	TargetName       string `json:"target_name,omitempty"`
	TargetType       string `json:"target_type,omitempty"`
}

// LinkGateServer is the server API of linkgate.v1.LinkGate.
type LinkGateServer interface {
	Resolve(context.Context, *ResolveRequest) (*LinkReply, error)
	Verify(context.Context, *VerifyRequest) (*LinkReply, error)
	View(context.Context, *ViewRequest) (*LinkReply, error)
}

func unaryHandler[Req any](method string, call func(LinkGateServer, context.Context, *Req) (*LinkReply, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkGateServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LinkGateServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LinkGateServiceDesc describes linkgate.v1.LinkGate for grpc.Server.RegisterService.
var LinkGateServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LinkGateServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    unaryHandler("Resolve", LinkGateServer.Resolve),
		},
		{
			MethodName: "Verify",
			Handler:    unaryHandler("Verify", LinkGateServer.Verify),
		},
		{
			MethodName: "View",
			Handler:    unaryHandler("View", LinkGateServer.View),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkgate/v1/linkgate.json",
}

// Client calls linkgate.v1.LinkGate with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in any, opts []grpc.CallOption) (*LinkReply, error) {
	out := new(LinkReply)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*LinkReply, error) {
	return c.invoke(ctx, "Resolve", in, opts)
}

func (c *Client) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*LinkReply, error) {
	return c.invoke(ctx, "Verify", in, opts)
}

func (c *Client) View(ctx context.Context, in *ViewRequest, opts ...grpc.CallOption) (*LinkReply, error) {
	return c.invoke(ctx, "View", in, opts)
}
