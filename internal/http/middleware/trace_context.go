package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/forfeit-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := ctxutil.WithRunData(c.Request.Context(), &ctxutil.RunData{RequestID: reqID})
		c.Request = c.Request.WithContext(ctx)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerRequestID, reqID)
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			c.Set("trace_id", sc.TraceID().String())
			c.Writer.Header().Set(headerTraceID, sc.TraceID().String())
		}
		c.Next()
	}
}
