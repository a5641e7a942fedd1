package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		expired, abandoned bool
		want               string
	}{
		{false, false, "submitted"},
		{true, false, "expired"},
		{false, true, "abandoned"},
		{true, true, "abandoned"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.expired, tt.abandoned); got != tt.want {
			t.Errorf("Outcome(%v,%v) = %q, want %q", tt.expired, tt.abandoned, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	Init()
	Init()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	if got := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204")); got != before+1 {
		t.Fatalf("request counter = %v, want %v", got, before+1)
	}

	SessionsStarted.WithLabelValues("quiz").Inc()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "activity_sessions_started_total") {
		t.Fatal("engine metrics not exported")
	}
}
