package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/workdesk/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Keys handlers set on the gin context to tag the request span.
const (
	WorkOrderIDKey = "work_order_id"
	InvoiceIDKey   = "invoice_id"
)

// GinMiddleware opens a server span per request and tags it with the route, the
// authenticated actor and the work order or invoice the handler touched.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("workdesk/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)
		span.SetAttributes(domainAttributes(c)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

func domainAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if kind, id := obscontext.ActorFromContext(c.Request.Context()); kind != "" {
		attrs = append(attrs,
			attribute.String("workdesk.actor_kind", kind),
			attribute.String("workdesk.actor_id", id),
		)
	}
	if id := c.GetString(WorkOrderIDKey); id != "" {
		attrs = append(attrs, attribute.String("workdesk.work_order_id", id))
	}
	if id := c.GetString(InvoiceIDKey); id != "" {
		attrs = append(attrs, attribute.String("workdesk.invoice_id", id))
	}
	return attrs
}
