package logger

import (
	"context"
	"sync"
)

const (
	PanicLevel uint = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

type Logger interface {
	Log(ctx context.Context, level uint, fields map[string]interface{}, v ...interface{})
}

var (
	std  Logger
	once sync.Once
	l    sync.RWMutex
)

func GetLogger() Logger {
	once.Do(func() {
		if std == nil {
			std = NewLog()
		}
	})
	l.RLock()
	defer l.RUnlock()
	return std
}

func SetLogger(logger Logger) {
	l.Lock()
	std = logger
	l.Unlock()
}

func Log(ctx context.Context, level uint, fields map[string]interface{}, v ...interface{}) {
	GetLogger().Log(ctx, level, fields, v...)
}
