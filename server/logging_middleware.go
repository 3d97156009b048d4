package server

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/flintfs/flint"
)

// NewLoggingMiddleware returns a new logging middleware.
func NewLoggingMiddleware(l log.Logger) Middleware {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &loggingMiddleware{l: l}
}

type loggingMiddleware struct {
	l log.Logger
}

func (lm *loggingMiddleware) HandleRequest(ctx context.Context, hdr *flint.RequestHeader, req flint.Request, invoker Invoker) (flint.Response, error) {
	level.Debug(lm.l).Log("msg", "starting request", "op", hdr.Op, "id", hdr.RequestID, "node", hdr.Node)
	start := time.Now()
	resp, err := invoker(ctx, hdr, req)
	level.Debug(lm.l).Log("msg", "finished request", "op", hdr.Op, "id", hdr.RequestID, "duration", time.Since(start), "err", err)
	return resp, err
}
