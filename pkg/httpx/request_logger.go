package httpx

import (
	"net/http"
	"time"

	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/pkg/ctxmeta"
	"github.com/gin-gonic/gin"
)

// DefaultQuietPaths — служебные пробы, которые не пишутся в лог.
var DefaultQuietPaths = []string{"/metrics", "/ping", "/healthz"}

// RequestLogger — middleware для логирования HTTP-запросов.
// Уровень зависит от статуса: 5xx — Errorf, 4xx — Warnf, остальное — Infof.
func RequestLogger(log ports.Logger, quiet ...string) gin.HandlerFunc {
	if len(quiet) == 0 {
		quiet = DefaultQuietPaths
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := skip[route]; ok {
			return
		}
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		rid, _ := ctxmeta.RequestIDFromContext(ctx)
		tr, _ := ctxmeta.TraceIDFromContext(ctx)
		sp, _ := ctxmeta.SpanIDFromContext(ctx)

		logf := log.Infof
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logf = log.Errorf
		case status >= http.StatusBadRequest:
			logf = log.Warnf
		}

		logf(ctx,
			"http %s %s status=%d dur=%s bytes=%d ip=%s request_id=%s trace=%s span=%s",
			c.Request.Method, route, c.Writer.Status(), time.Since(start),
			c.Writer.Size(), c.ClientIP(), rid, tr, sp,
		)
	}
}
