package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/http/middleware"
)

// responseRouter installs a request id and a logger writing to buf, and
// records the error code left for the metrics middleware.
func responseRouter(buf *bytes.Buffer, code *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(buf).Level(zerolog.DebugLevel)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-7")
		c.Set("logger", &lg)
		c.Next()
		if v, ok := c.Get(middleware.CtxErrorCode); ok {
			*code, _ = v.(string)
		}
	})
	return r
}

func TestFail_EnvelopeAndLogLevel(t *testing.T) {
	cases := []struct {
		status    int
		code, msg string
		level     string
	}{
		{http.StatusInternalServerError, ErrCodeInternal, "internal error", "error"},
		{http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store temporarily unavailable", "error"},
		{http.StatusNotFound, ErrCodeNotFound, "service not found", "debug"},
		{http.StatusConflict, ErrCodeTransitionConflict, "service must be CREATED", "debug"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			var buf bytes.Buffer
			var gotCode string
			r := responseRouter(&buf, &gotCode)
			r.GET("/x", func(c *gin.Context) {
				fail(c, tc.status, tc.code, tc.msg)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tc.status {
				t.Fatalf("status = %d", w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json: %v", err)
			}
			if resp != (ErrorResponse{RequestID: "rid-7", Code: tc.code, Message: tc.msg}) {
				t.Fatalf("body = %+v", resp)
			}
			if gotCode != tc.code {
				t.Fatalf("context code = %q", gotCode)
			}
			if !strings.Contains(buf.String(), `"level":"`+tc.level+`"`) {
				t.Fatalf("want %s log, got %s", tc.level, buf.String())
			}
		})
	}
}

func TestFail_ExportedForFallbacks(t *testing.T) {
	var buf bytes.Buffer
	var code string
	r := responseRouter(&buf, &code)
	r.NoRoute(func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if w.Code != http.StatusNotFound || code != ErrCodeNotFound {
		t.Fatalf("status=%d code=%q", w.Code, code)
	}
}

func TestSuccessHelpers(t *testing.T) {
	var buf bytes.Buffer
	var code string
	r := responseRouter(&buf, &code)
	r.POST("/api/v1/clients", func(c *gin.Context) {
		created(c, 42, domain.Client{ID: 42, UserID: 7})
	})
	r.GET("/api/v1/clients/42", func(c *gin.Context) { ok(c, http.StatusOK, gin.H{"id": 42}) })
	r.DELETE("/api/v1/clients/42", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/clients", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("created status = %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/api/v1/clients/42" {
		t.Fatalf("Location = %q", got)
	}
	var cl domain.Client
	if err := json.Unmarshal(w.Body.Bytes(), &cl); err != nil || cl.ID != 42 || cl.UserID != 7 {
		t.Fatalf("created body: %v %s", err, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/clients/42", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"id":42`) {
		t.Fatalf("ok: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/clients/42", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", w.Code, w.Body.String())
	}
	if code != "" {
		t.Fatalf("success path left error code %q", code)
	}
}
