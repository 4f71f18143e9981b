package http

import (
	"context"

	"github.com/gin-gonic/gin"
	utils "github.com/go-upf/upf/pkg"
)

func BuildRequestId(opts ...utils.Option) gin.HandlerFunc {
	cfg := &utils.Config{
		Builder: func() string {
			return utils.BuildRequestID()
		},
		RequestId: utils.TraceID,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx *gin.Context) {
		rid := ctx.GetHeader(cfg.RequestId)
		if len(rid) == 0 {
			rid = cfg.Builder()
		}
		ctx.Header(cfg.RequestId, rid)
		ctx.Request = ctx.Request.WithContext(context.WithValue(ctx.Request.Context(), cfg.RequestId, rid))
	}
}

func GetRequestId(ctx *gin.Context) string {
	return ctx.Writer.Header().Get(utils.TraceID)
}
