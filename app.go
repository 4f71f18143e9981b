package upf

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-upf/upf/transport"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Server []transport.Server
}

func NewApp(srv ...transport.Server) *App {
	return &App{
		Server: srv,
	}
}

func (a *App) Run() error {
	c := make(chan os.Signal, 1)
	eg, ctx := errgroup.WithContext(context.TODO())
	for _, server := range a.Server {
		s := server
		eg.Go(func() error {
			return s.Start()
		})

		eg.Go(func() error {
			<-c
			cx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return s.Stop(cx)
		})
	}

	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	<-c
	close(c)
	return eg.Wait()
}
