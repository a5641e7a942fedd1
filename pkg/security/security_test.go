package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterAllowAndSweep(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should allow two requests")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are limited independently")
	}

	now = now.Add(10 * time.Minute)
	l.Allow("b")
	if n := l.Sweep(); n != 1 {
		t.Fatalf("visitors after sweep = %d, want 1", n)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		method, origin string
		status         int
		allowed        bool
	}{
		{http.MethodGet, "https://app.example", http.StatusOK, true},
		{http.MethodGet, "https://evil.example", http.StatusOK, false},
		{http.MethodOptions, "https://app.example", http.StatusNoContent, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/x", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.status {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.origin, w.Code, tt.status)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin") != ""; got != tt.allowed {
			t.Errorf("%s %s: allow-origin set = %v, want %v", tt.method, tt.origin, got, tt.allowed)
		}
	}
}
