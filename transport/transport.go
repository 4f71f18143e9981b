package transport

import (
	"context"

	_ "github.com/go-upf/upf/encoding/form"
	_ "github.com/go-upf/upf/encoding/json"
	_ "github.com/go-upf/upf/encoding/msgpack"
	_ "github.com/go-upf/upf/encoding/yaml"
)

const (
	HTTP = "http"
	GRPC = "grpc"
	WS   = "websocket"
)

type Server interface {
	Start() error
	Stop(ctx context.Context) error
}

type Carrier interface {
	Set(k, v string)
	Add(k, v string)
	Get(k string) string
}

type Transporter interface {
	Kind() string
	Operate() string
	ReqCarrier() Carrier
	RspCarrier() Carrier
}

type serverTransportKey struct{}

func NewServerContext(ctx context.Context, trans Transporter) context.Context {
	return context.WithValue(ctx, serverTransportKey{}, trans)
}

func FromServerContext(ctx context.Context) (Transporter, bool) {
	trans, ok := ctx.Value(serverTransportKey{}).(Transporter)
	return trans, ok
}

type clientTransportKey struct{}

func NewClientContext(ctx context.Context, trans Transporter) context.Context {
	return context.WithValue(ctx, clientTransportKey{}, trans)
}

func FromClientContext(ctx context.Context) (Transporter, bool) {
	trans, ok := ctx.Value(clientTransportKey{}).(Transporter)
	return trans, ok
}
