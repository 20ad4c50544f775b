package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestGinLogrusRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		panicWith   any
		wantStatus  int
		wantRepanic bool
	}{
		{name: "regular panic", panicWith: "boom", wantStatus: http.StatusInternalServerError},
		{name: "abort handler", panicWith: http.ErrAbortHandler, wantRepanic: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(GinLogrusRecovery())
			engine.GET("/", func(c *gin.Context) { panic(tt.panicWith) })

			recorder := httptest.NewRecorder()
			recovered := serveRecovering(engine, recorder, httptest.NewRequest(http.MethodGet, "/", nil))

			if !tt.wantRepanic {
				if recovered != nil {
					t.Fatalf("unexpected panic %v", recovered)
				}
				if recorder.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d", recorder.Code, tt.wantStatus)
				}
				return
			}
			err, ok := recovered.(error)
			if !ok || err != http.ErrAbortHandler {
				t.Fatalf("recovered %v, want http.ErrAbortHandler", recovered)
			}
		})
	}
}

func serveRecovering(h http.Handler, w http.ResponseWriter, r *http.Request) (recovered any) {
	defer func() { recovered = recover() }()
	h.ServeHTTP(w, r)
	return nil
}

func TestGinLogrusLoggerMasksOAuthParameters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	previous := log.StandardLogger().Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(previous) })

	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusFound) })
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?code=secretcode1234&state=statevalue99", nil))

	line := buf.String()
	if strings.Contains(line, "secretcode1234") || strings.Contains(line, "statevalue99") {
		t.Fatalf("access log leaks OAuth parameters: %q", line)
	}
	if !strings.Contains(line, "302") {
		t.Fatalf("access log = %q, want status 302", line)
	}
}

func TestAccessLevel(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]log.Level{
		http.StatusOK:                  log.InfoLevel,
		http.StatusFound:               log.InfoLevel,
		http.StatusUnauthorized:        log.WarnLevel,
		http.StatusBadGateway:          log.ErrorLevel,
		http.StatusInternalServerError: log.ErrorLevel,
	} {
		if got := accessLevel(status); got != want {
			t.Errorf("accessLevel(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestGinLogrusLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		if GetGinRequestID(c) != seen {
			t.Errorf("gin request id %q differs from context id %q", GetGinRequestID(c), seen)
		}
		c.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/?code=secret-code&state=abc", nil))

	if len(seen) != 8 {
		t.Fatalf("request id = %q, want 8 characters", seen)
	}
	if got := recorder.Header().Get("X-Request-Id"); got != seen {
		t.Fatalf("X-Request-Id = %q, want %q", got, seen)
	}
}

func TestSkipGinRequestLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if shouldSkipGinRequestLogging(c) {
		t.Fatal("fresh context should be logged")
	}
	SkipGinRequestLogging(c)
	if !shouldSkipGinRequestLogging(c) {
		t.Fatal("marked context should be skipped")
	}
}

func TestGinLogrusLoggerReusesInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		inbound string
		reused  bool
	}{
		{name: "well formed", inbound: "edge-42.a_b", reused: true},
		{name: "header injection", inbound: "abc\r\nSet-Cookie: x", reused: false},
		{name: "too long", inbound: strings.Repeat("a", 65), reused: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.inbound)
			recorder := httptest.NewRecorder()
			engine.ServeHTTP(recorder, req)

			got := recorder.Header().Get(RequestIDHeader)
			if tt.reused && got != tt.inbound {
				t.Fatalf("request id = %q, want inbound %q", got, tt.inbound)
			}
			if !tt.reused && (got == tt.inbound || len(got) != 8) {
				t.Fatalf("request id = %q, want a generated id", got)
			}
		})
	}
}
