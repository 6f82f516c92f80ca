package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// loggerMiddleware logs every request once it completed, along
// with the status, latency and request id.
// bluntly stolen from https://github.com/treastech/logger/blob/master/logger.go
func loggerMiddleware(l *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()
			defer func() {
				l.Info(fmt.Sprintf("[%s] %s", r.Method, r.URL.Path),
					zap.String("proto", r.Proto),
					zap.String("path", r.URL.Path),
					zap.String("accept", r.Header.Get("Accept")),
					zap.Duration("latency", time.Since(t1)),
					zap.Int("status", ww.Status()),
					zap.Int("size", ww.BytesWritten()),
					zap.String("requestID", middleware.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
