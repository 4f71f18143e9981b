package health

import (
	"context"
	"sync"

	transportgrpc "github.com/go-upf/upf/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCProber issues standard grpc health checks against plugin endpoints.
// Connections are dialed lazily and cached per endpoint; gRPC reconnects
// under the hood, so a cached conn survives plugin restarts.
type GRPCProber struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
	opts  []grpc.DialOption
}

func NewGRPCProber(opts ...grpc.DialOption) *GRPCProber {
	if len(opts) == 0 {
		opts = transportgrpc.DialOpts()
	}
	return &GRPCProber{
		conns: make(map[string]*grpc.ClientConn),
		opts:  opts,
	}
}

func (p *GRPCProber) conn(endpoint string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[endpoint]
	if ok {
		return conn, nil
	}
	conn, err := grpc.Dial(endpoint, p.opts...)
	if err != nil {
		return nil, err
	}
	p.conns[endpoint] = conn
	return conn, nil
}

func (p *GRPCProber) Probe(ctx context.Context, pluginID, endpoint string) Signal {
	conn, err := p.conn(endpoint)
	if err != nil {
		return SignalError
	}
	rsp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return SignalTimeout
		}
		return SignalError
	}
	if rsp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
		return SignalServing
	}
	return SignalNotServing
}

func (p *GRPCProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for endpoint, conn := range p.conns {
		if e := conn.Close(); e != nil {
			err = e
		}
		delete(p.conns, endpoint)
	}
	return err
}
