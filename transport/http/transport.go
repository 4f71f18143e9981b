package http

import (
	"net/http"

	"github.com/go-upf/upf/transport"
)

type Carrier http.Header

func (c Carrier) Set(k string, v string) {
	http.Header(c).Set(k, v)
}

func (c Carrier) Add(k string, v string) {
	http.Header(c).Add(k, v)
}

func (c Carrier) Get(k string) string {
	return http.Header(c).Get(k)
}

type Transport struct {
	Operation string
	Req       Carrier
	Rsp       Carrier
}

func (t *Transport) Kind() string {
	return transport.HTTP
}

func (t *Transport) Operate() string {
	return t.Operation
}

func (t *Transport) ReqCarrier() transport.Carrier {
	return t.Req
}

func (t *Transport) RspCarrier() transport.Carrier {
	return t.Rsp
}
