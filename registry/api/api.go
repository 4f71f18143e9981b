// Package api exposes the registry operations over HTTP, with websocket
// streams for the health and resolution watches.
package api

import (
	"context"
	"net/http"

	"github.com/go-upf/upf/encoding"
	"github.com/go-upf/upf/encoding/json"
	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/pkg/routine"
	"github.com/go-upf/upf/registry"
	"github.com/go-upf/upf/resolver"
	thttp "github.com/go-upf/upf/transport/http"
	"github.com/go-upf/upf/transport/ws"
)

type Handler struct {
	registry *registry.Registry
	upgrader *ws.Upgrader
	logger   logger.Logger
	codec    encoding.Codec
}

type Option func(*Handler)

func WithUpgrader(u *ws.Upgrader) Option {
	return func(h *Handler) {
		h.upgrader = u
	}
}

func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func New(r *registry.Registry, opts ...Option) *Handler {
	h := &Handler{
		registry: r,
		upgrader: ws.NewUpgrader(),
		logger:   logger.GetLogger(),
		codec:    encoding.GetCodec(json.Name),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Route(r *thttp.Router) {
	r.Handle(http.MethodPost, "/v1/plugins", h.register)
	r.Handle(http.MethodGet, "/v1/plugins", h.list)
	r.Handle(http.MethodGet, "/v1/plugins/:id", h.get)
	r.Handle(http.MethodPut, "/v1/plugins/:id", h.update)
	r.Handle(http.MethodDelete, "/v1/plugins/:id", h.unregister)
	r.Handle(http.MethodPost, "/v1/plugins/:id/resolve", h.resolveDependencies)
	r.Handle(http.MethodPost, "/v1/resolve", h.resolve)
	r.Handle(http.MethodPost, "/v1/manifests/validate", h.validate)
	r.Handle(http.MethodGet, "/v1/watch/health", h.watchHealth)
	r.Handle(http.MethodGet, "/v1/watch/resolution", h.watchResolution)
}

type idVars struct {
	ID string `json:"id"`
}

type forceQuery struct {
	Force bool `json:"force"`
}

type resolveQuery struct {
	BestEffort bool `json:"best_effort"`
}

type watchQuery struct {
	Plugin   string `json:"plugin"`
	Consumer string `json:"consumer"`
}

func (h *Handler) register(c *thttp.Context) error {
	m := &manifest.Manifest{}
	if err := c.ShouldBind(m); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.registry.Register(ctx, m)
	})(c.Context(), m)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) list(c *thttp.Context) error {
	filter := registry.ListFilter{}
	if err := c.ShouldBindQuery(&filter); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.registry.ListPlugins(ctx, filter), nil
	})(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) get(c *thttp.Context) error {
	vars := idVars{}
	if err := c.ShouldBindURI(&vars); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.registry.GetPlugin(ctx, vars.ID)
	})(c.Context(), vars)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) update(c *thttp.Context) error {
	vars := idVars{}
	if err := c.ShouldBindURI(&vars); err != nil {
		return err
	}
	q := forceQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		return err
	}
	m := &manifest.Manifest{}
	if err := c.ShouldBind(m); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.registry.UpdateManifest(ctx, vars.ID, m, q.Force)
	})(c.Context(), m)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) unregister(c *thttp.Context) error {
	vars := idVars{}
	if err := c.ShouldBindURI(&vars); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, h.registry.Unregister(ctx, vars.ID)
	})(c.Context(), vars)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) resolveDependencies(c *thttp.Context) error {
	vars := idVars{}
	if err := c.ShouldBindURI(&vars); err != nil {
		return err
	}
	q := resolveQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		var opts []resolver.Option
		if q.BestEffort {
			opts = append(opts, resolver.BestEffort())
		}
		return h.registry.ResolveDependencies(ctx, vars.ID, opts...)
	})(c.Context(), vars)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) resolve(c *thttp.Context) error {
	req := manifest.Requirement{}
	if err := c.ShouldBind(&req); err != nil {
		return err
	}
	q := resolveQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, r interface{}) (interface{}, error) {
		var opts []resolver.Option
		if q.BestEffort {
			opts = append(opts, resolver.BestEffort())
		}
		return h.registry.Resolve(ctx, req, opts...)
	})(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) validate(c *thttp.Context) error {
	m := &manifest.Manifest{}
	if err := c.ShouldBind(m); err != nil {
		return err
	}
	rsp, err := c.Handle(func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.registry.ValidateManifest(ctx, m), nil
	})(c.Context(), m)
	if err != nil {
		return err
	}
	return c.Result(rsp)
}

func (h *Handler) watchHealth(c *thttp.Context) error {
	q := watchQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		return err
	}
	session, err := h.upgrader.Upgrade(c.Writer(), c.Request())
	if err != nil {
		return nil
	}
	sub := h.registry.WatchHealth(q.Plugin)
	// the request context dies with the handler return; the session owns
	// the watch lifetime
	ctx, cancel := context.WithCancel(context.Background())
	h.reapOnClose(session, cancel)
	routine.GoSafe(ctx, func() {
		defer sub.Cancel()
		defer session.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if !h.push(ctx, session, e) {
					return
				}
			}
		}
	})
	return nil
}

func (h *Handler) watchResolution(c *thttp.Context) error {
	q := watchQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	updates, err := h.registry.WatchResolution(ctx, q.Consumer)
	if err != nil {
		cancel()
		return err
	}
	session, err := h.upgrader.Upgrade(c.Writer(), c.Request())
	if err != nil {
		cancel()
		return nil
	}
	h.reapOnClose(session, cancel)
	routine.GoSafe(ctx, func() {
		defer cancel()
		defer session.Close()
		for u := range updates {
			if !h.push(ctx, session, u) {
				return
			}
		}
	})
	return nil
}

// reapOnClose drains the client side of the socket so a disconnect tears
// the watch down instead of leaking it.
func (h *Handler) reapOnClose(session *ws.Session, cancel context.CancelFunc) {
	routine.GoSafe(context.TODO(), func() {
		defer cancel()
		for {
			m, err := session.Receive()
			if err != nil || m == nil {
				return
			}
		}
	})
}

func (h *Handler) push(ctx context.Context, session *ws.Session, v interface{}) bool {
	payload, err := h.codec.Marshal(v)
	if err != nil {
		h.logger.Log(ctx, logger.ErrorLevel, map[string]interface{}{"error": err.Error()}, "watch frame marshal")
		return false
	}
	if err = session.Send(&ws.Msg{Type: ws.TextMessage, Payload: payload}); err != nil {
		return false
	}
	return true
}
