package ws

import (
	"time"

	"github.com/go-upf/upf/logger"
)

type Option func(*Upgrader)

func WithLogger(l logger.Logger) Option {
	return func(u *Upgrader) {
		u.logger = l
	}
}

func WithIn(in int) Option {
	return func(u *Upgrader) {
		u.opt.in = in
	}
}

func WithOut(out int) Option {
	return func(u *Upgrader) {
		u.opt.out = out
	}
}

func WithHBInterval(hbInterval time.Duration) Option {
	return func(u *Upgrader) {
		u.opt.hbInterval = hbInterval
	}
}

func WithReadBuffer(rb int) Option {
	return func(u *Upgrader) {
		u.opt.rBuffer = rb
	}
}

func WithWriteBuffer(wb int) Option {
	return func(u *Upgrader) {
		u.opt.wBuffer = wb
	}
}

func WithWriteTime(wt time.Duration) Option {
	return func(u *Upgrader) {
		u.opt.wTime = wt
	}
}

func WithHandShakeTime(hst time.Duration) Option {
	return func(u *Upgrader) {
		u.opt.hsTime = hst
	}
}

func WithReadLimit(rLimit int64) Option {
	return func(u *Upgrader) {
		u.opt.rLimit = rLimit
	}
}

func WithCloseWait(cw time.Duration) Option {
	return func(u *Upgrader) {
		u.opt.closeWait = cw
	}
}
