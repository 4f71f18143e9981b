package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-upf/upf"
	"github.com/go-upf/upf/config"
	"github.com/go-upf/upf/config/source/file"
	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/middleware"
	"github.com/go-upf/upf/middleware/logging"
	"github.com/go-upf/upf/middleware/metrics"
	utils "github.com/go-upf/upf/pkg"
	"github.com/go-upf/upf/pkg/routine"
	"github.com/go-upf/upf/registry"
	"github.com/go-upf/upf/registry/api"
	"github.com/go-upf/upf/registry/etcd"
	tgrpc "github.com/go-upf/upf/transport/grpc"
	thttp "github.com/go-upf/upf/transport/http"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var conf = flag.String("conf", "configs/upf.yaml", "config file path")

func main() {
	flag.Parse()
	cfg := config.New()
	if _, err := os.Stat(*conf); err == nil {
		cfg = config.New(config.WithSource(file.NewFile(*conf)))
		if err = cfg.Load(); err != nil {
			panic(err)
		}
	}

	level := cfg.GetString("log.level")
	if len(level) == 0 {
		level = "info"
	}
	l := logger.NewLog(logger.WithSrvName("upf-registry"), logger.WithLevel(level))
	logger.SetLogger(l)

	ctx := context.Background()
	opts := []registry.Option{
		registry.WithLogger(l),
		registry.WithTrackerOptions(trackerOptions(cfg)...),
	}
	if wait := cfg.GetDuration("registry.lock_wait"); wait > 0 {
		opts = append(opts, registry.WithStoreOptions(manifest.LockWait(wait)))
	}

	var backend *etcd.Backend
	endpoints := cfg.GetStringSlice("etcd.endpoints")
	if len(endpoints) > 0 {
		var err error
		backend, err = etcd.New(clientv3.Config{
			Endpoints:   endpoints,
			DialTimeout: 5 * time.Second,
		}, etcd.Context(ctx))
		if err != nil {
			panic(err)
		}
		opts = append(opts, registry.WithBackend(backend))
	}

	prober := health.NewGRPCProber()
	reg := registry.New(prober, opts...)
	if err := reg.Restore(ctx); err != nil {
		panic(err)
	}

	httpAddr := cfg.GetString("server.http.address")
	if len(httpAddr) == 0 {
		httpAddr = "0.0.0.0:8080"
	}
	grpcAddr := cfg.GetString("server.grpc.address")
	if len(grpcAddr) == 0 {
		grpcAddr = "0.0.0.0:9090"
	}

	hs := thttp.NewServer(
		thttp.Address(httpAddr),
		thttp.Logger(l),
		thttp.Middlewares(logging.Log(middleware.Server, l), metrics.Metrics()),
	)
	api.New(reg, api.WithLogger(l)).Route(thttp.NewRouter(hs))

	gs := tgrpc.NewServer(tgrpc.Address(grpcAddr), tgrpc.Logger(l))
	mirrorHealth(ctx, reg, gs)

	if backend != nil {
		if err := backend.Announce(ctx, utils.BuildRequestID(), httpAddr); err != nil {
			l.Log(ctx, logger.WarnLevel, map[string]interface{}{"error": err.Error()}, "instance announce failed")
		}
	}

	if err := upf.NewApp(hs, gs).Run(); err != nil {
		l.Log(ctx, logger.ErrorLevel, map[string]interface{}{"error": err.Error()}, "registry exit")
	}
	reg.Close()
	_ = prober.Close()
	if backend != nil {
		_ = backend.Close()
	}
}

func trackerOptions(cfg *config.Config) []health.TrackerOption {
	var opts []health.TrackerOption
	if d := cfg.GetDuration("health.probe_interval"); d > 0 {
		opts = append(opts, health.Interval(d))
	}
	if d := cfg.GetDuration("health.probe_timeout"); d > 0 {
		opts = append(opts, health.ProbeTimeout(d))
	}
	if d := cfg.GetDuration("health.grace"); d > 0 {
		opts = append(opts, health.Grace(d))
	}
	if n := cfg.GetInt("health.failure_threshold"); n > 0 {
		opts = append(opts, health.FailureThreshold(n))
	}
	return opts
}

// mirrorHealth reflects per-plugin state into the standard grpc health
// service, so grpc clients can Watch a plugin id instead of polling the
// HTTP API.
func mirrorHealth(ctx context.Context, reg *registry.Registry, gs *tgrpc.Server) {
	sub := reg.WatchHealth("")
	routine.GoSafe(ctx, func() {
		defer sub.Cancel()
		for e := range sub.C {
			switch e.Type {
			case registry.EventHealth:
				status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
				if e.Health != nil && (e.Health.State == health.StateHealthy || e.Health.State == health.StateDegraded) {
					status = grpc_health_v1.HealthCheckResponse_SERVING
				}
				gs.Health().SetServingStatus(e.PluginID, status)
			case registry.EventUnregistered:
				gs.Health().SetServingStatus(e.PluginID, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			}
		}
	})
}
