package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/middleware"
	"github.com/go-upf/upf/middleware/cors"
	"github.com/go-upf/upf/middleware/recovery"
	"github.com/go-upf/upf/pkg/endpoint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	*http.Server
	listener net.Listener
	handlers []middleware.HTTPMiddleware
	mws      []middleware.Middleware
	headers  []string
	err      error
	network  string
	address  string
	basePath string
	Engine   *gin.Engine
	logger   logger.Logger
	codecs   *Codecs
}

type ServerOption func(server *Server)

func Network(network string) ServerOption {
	return func(s *Server) {
		s.network = network
	}
}

func Address(addr string) ServerOption {
	return func(s *Server) {
		s.address = addr
	}
}

func Handlers(handlers ...middleware.HTTPMiddleware) ServerOption {
	return func(server *Server) {
		server.handlers = handlers
	}
}

func Middlewares(mws ...middleware.Middleware) ServerOption {
	return func(server *Server) {
		server.mws = mws
	}
}

func Headers(headers ...string) ServerOption {
	return func(server *Server) {
		server.headers = headers
	}
}

func Logger(l logger.Logger) ServerOption {
	return func(server *Server) {
		server.logger = l
	}
}

func BasePath(basePath string) ServerOption {
	return func(server *Server) {
		server.basePath = basePath
	}
}

func NewServer(opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	srv := &Server{
		network:  "tcp",
		address:  "0.0.0.0:0",
		Server:   &http.Server{},
		Engine:   engine,
		logger:   logger.GetLogger(),
		handlers: []middleware.HTTPMiddleware{cors.CORS()},
		codecs: &Codecs{
			bodyDecoder:  RequestBodyDecoder,
			varsDecoder:  RequestVarsDecoder,
			queryDecoder: RequestQueryDecoder,
			rspEncoder:   ResponseEncoder,
			errorEncoder: ErrorEncoder,
		},
	}
	srv.Handler = srv.Engine
	for _, o := range opts {
		o(srv)
	}
	srv.Engine.Use(BuildRequestId())
	srv.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv.handlers = append(srv.handlers, middleware.WrapMiddleware(recovery.Recovery(srv.logger)))
	srv.Handler = middleware.ComposeHTTPMiddleware(srv.Handler, srv.handlers...)
	srv.err = srv.listen()
	return srv
}

func (s *Server) listen() error {
	l, err := net.Listen(s.network, s.address)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

func (s *Server) Start() error {
	if s.err != nil {
		return s.err
	}
	err := s.Serve(s.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}

func (s *Server) Endpoint() (*url.URL, error) {
	host, err := endpoint.ParseAddr(s.listener, s.address)
	if err != nil {
		return nil, err
	}
	u := &url.URL{
		Scheme: endpoint.Scheme("http", s.TLSConfig == nil),
		Host:   host,
	}
	return u, nil
}
