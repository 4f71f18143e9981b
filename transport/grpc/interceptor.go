package grpc

import (
	"context"
	"time"

	"github.com/go-upf/upf/middleware"
	utils "github.com/go-upf/upf/pkg"
	"github.com/go-upf/upf/transport"
	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// server

func (s *Server) unaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			md = metadata.MD{}
		}
		trans := &Transport{
			Operation: info.FullMethod,
			Req:       Carrier(md),
			Rsp:       Carrier{},
		}
		ctx = transport.NewServerContext(ctx, trans)
		return middleware.HandleMiddleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return handler(ctx, req)
		}, s.mws...)(ctx, req)
	}
}

func (s *Server) streamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			md = metadata.MD{}
		}
		trans := &Transport{
			Operation: info.FullMethod,
			Req:       Carrier(md),
			Rsp:       Carrier{},
		}
		ctx := transport.NewServerContext(ss.Context(), trans)
		_, err := middleware.HandleMiddleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
		}, s.mws...)(ctx, ss)
		return err
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func UnaryServerTimeout(timeout time.Duration) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var (
				rsp interface{}
				err error
			)
			done := make(chan struct{})
			ch := make(chan interface{}, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						ch <- p
					}
				}()
				rsp, err = handler(ctx, req)
				close(done)
			}()

			select {
			case p := <-ch:
				panic(p)
			case <-done:
				return rsp, err
			case <-ctx.Done():
				err = ctx.Err()
				if err == context.Canceled {
					err = status.Error(codes.Canceled, err.Error())
				} else if err == context.DeadlineExceeded {
					err = status.Error(codes.DeadlineExceeded, err.Error())
				}
				return nil, err
			}
		}
	}
}

func UnaryServerTraceID() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			md, ok := metadata.FromIncomingContext(ctx)
			if !ok {
				md = metadata.Pairs()
			}

			requestID := md[utils.TraceID]
			if len(requestID) > 0 {
				ctx = context.WithValue(ctx, utils.TraceID, requestID[0])
				return handler(ctx, req)
			}

			ctx = context.WithValue(ctx, utils.TraceID, utils.BuildRequestID())
			return handler(ctx, req)
		}
	}
}

// client

func UnaryClientTimeout(defaultTime time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var cancel context.CancelFunc
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, defaultTime)
		}
		if cancel != nil {
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func UnaryClientTraceID() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, rsp interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		value := ctx.Value(utils.TraceID)
		requestID, ok := value.(string)
		if !ok || len(requestID) == 0 {
			requestID = utils.BuildRequestID()
		}

		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			md = metadata.Pairs()
		}
		md[utils.TraceID] = []string{requestID}
		return invoker(metadata.NewOutgoingContext(ctx, md), method, req, rsp, cc, opts...)
	}
}

func DialOpts() []grpc.DialOption {
	retryOps := []grpc_retry.CallOption{
		grpc_retry.WithMax(3),
		grpc_retry.WithPerRetryTimeout(time.Second * 2),
		grpc_retry.WithBackoff(grpc_retry.BackoffLinearWithJitter(time.Second/2, 0.2)),
	}
	retry := grpc_retry.UnaryClientInterceptor(retryOps...)
	opts := []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(retry, UnaryClientTimeout(3*time.Second), UnaryClientTraceID()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
	}
	return opts
}
