package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"usdtinr.com/pkg/common"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/metrics"
	"usdtinr.com/pkg/ratelimit"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestReqId(t *testing.T) {
	r := newEngine(ReqId())
	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(common.HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-1", w.Header().Get(common.HeaderRequestID))
	assert.Equal(t, "rid-1", fromCtx)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(common.HeaderRequestID), "没有就生成一个")
}

func TestReqId_RejectsBadHeader(t *testing.T) {
	r := newEngine(ReqId())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
	}{
		{"换行注入", "abc\nlevel=error"},
		{"太长", strings.Repeat("a", 65)},
		{"空格", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header[common.HeaderRequestID] = []string{tt.header}
			r.ServeHTTP(w, req)
			got := w.Header().Get(common.HeaderRequestID)
			assert.NotEqual(t, tt.header, got)
			assert.Len(t, got, 36, "换成新生成的 uuid")
		})
	}
}

func TestReqId_SpanAttribute(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	startSpan := func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "GET /ping")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	}
	r := newEngine(startSpan, ReqId())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(common.HeaderRequestID, "rid-span")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String("request.id", "rid-span"))
}

func TestRecover(t *testing.T) {
	r := newEngine(ReqId(), Recover())
	r.GET("/boom", func(c *gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PanicRecoveredTotal.WithLabelValues("/boom")))
}

func TestRecover_AfterWrite(t *testing.T) {
	r := newEngine(Recover())
	r.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/half", nil))
	assert.Equal(t, http.StatusOK, w.Code, "已写出的状态码不变")
	assert.Equal(t, "partial", w.Body.String())
}

func TestRecover_AbortHandlerPassesThrough(t *testing.T) {
	r := newEngine(Recover())
	r.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestRateLimit(t *testing.T) {
	store := ratelimit.NewStore(0.001, 2, time.Minute)
	r := newEngine(RateLimit(store))
	r.GET("/wallet", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
