package metrics

import (
	"context"
	"time"

	"github.com/go-upf/upf/middleware"
	"github.com/go-upf/upf/transport"
)

type VecOptions struct {
	name      string
	help      string
	namespace string
	subSystem string
	labels    []string
	buckets   []float64
}

func newVecOptions() *VecOptions {
	return &VecOptions{
		name:      "vec",
		help:      "help",
		namespace: "registry",
		subSystem: "request",
		labels:    []string{"kind", "operation"},
		buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.250, 0.5, 1},
	}
}

type VecOpts func(options *VecOptions)

func Name(name string) VecOpts {
	return func(o *VecOptions) {
		o.name = name
	}
}

func Namespace(ns string) VecOpts {
	return func(o *VecOptions) {
		o.namespace = ns
	}
}

func Help(h string) VecOpts {
	return func(o *VecOptions) {
		o.help = h
	}
}

func SubSystem(s string) VecOpts {
	return func(o *VecOptions) {
		o.subSystem = s
	}
}

func Labels(labels []string) VecOpts {
	return func(o *VecOptions) {
		o.labels = labels
	}
}

func Buckets(buckets []float64) VecOpts {
	return func(o *VecOptions) {
		o.buckets = buckets
	}
}

type Option struct {
	counter   Counter
	histogram Histogram
}

type Options func(*Option)

func WithCounter(c Counter) Options {
	return func(o *Option) {
		o.counter = c
	}
}

func WithHistogram(h Histogram) Options {
	return func(o *Option) {
		o.histogram = h
	}
}

func Metrics(opts ...Options) middleware.Middleware {
	o := &Option{
		counter:   NewCounter(Name("total"), Help("request count")),
		histogram: NewHistogram(Name("duration_ms"), Help("request latency")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			var kind, operation string
			trans, ok := transport.FromServerContext(ctx)
			if ok {
				kind = trans.Kind()
				operation = trans.Operate()
			}
			start := time.Now()
			rsp, err := handler(ctx, req)
			if o.histogram != nil {
				o.histogram.Values(kind, operation).Observe(float64(time.Since(start).Milliseconds()))
			}
			if o.counter != nil {
				o.counter.Values(kind, operation).Inc()
			}
			return rsp, err
		}
	}
}
