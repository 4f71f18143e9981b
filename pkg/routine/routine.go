package routine

import (
	"context"
	"fmt"

	"github.com/go-upf/upf/logger"
)

func Go(ctx context.Context, fn func()) {
	defer func(ctx context.Context) {
		if r := recover(); r != nil {
			logger.Log(ctx, logger.ErrorLevel, map[string]interface{}{"error": fmt.Sprintf("%+v", r)}, "routine recover")
		}
	}(ctx)
	fn()
}

func GoSafe(ctx context.Context, fn func()) {
	go Go(ctx, fn)
}
