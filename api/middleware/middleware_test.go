package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyerfyer/quiz-gen-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	log.SetOutput(io.Discard)
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(SetTraceID(), ErrorMiddleware())
	r.GET("/test", handlers...)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) model.Response {
	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestErrorMiddleware_AppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", NewValidationError("bad input", "topic too long"), http.StatusBadRequest, "bad input"},
		{"not found", NewNotFoundError("quiz not found"), http.StatusNotFound, "quiz not found"},
		{"upstream", NewUpstreamError("model unavailable"), http.StatusBadGateway, "model unavailable"},
		{"unprocessable", NewUnprocessableError("no questions"), http.StatusUnprocessableEntity, "no questions"},
		{"pointer", &AppError{Type: ErrorTypeBusiness, Message: "not ready", Code: http.StatusConflict}, http.StatusConflict, "not ready"},
		{"wrapped", fmt.Errorf("handler: %w", NewUnavailableError("disabled")), http.StatusServiceUnavailable, "disabled"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(func(c *gin.Context) { HandleError(c, tt.err) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(TraceIDHeader, "trace-1")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.msg, resp.Message)
			assert.Equal(t, "trace-1", resp.TraceID)
		})
	}
}

func TestErrorMiddleware_Panic(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) { panic("unexpected") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Message)
	assert.NotEmpty(t, resp.TraceID)
}

func TestSetTraceID(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		c.String(http.StatusOK, TraceID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(TraceIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(TraceIDHeader, "client-trace")
	r.ServeHTTP(w, req)
	assert.Equal(t, "client-trace", w.Header().Get(TraceIDHeader))
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(RateLimit(60, 2), func(c *gin.Context) {
		c.JSON(http.StatusOK, model.NewSuccessResponse(nil))
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 不同客户端互不影响
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 关闭限流
	unlimited := newTestRouter(RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		unlimited.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
