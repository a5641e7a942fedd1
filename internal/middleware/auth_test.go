package middleware

import (
	"activity_engine/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).LearnerID)
	})
	r.GET("/teach", AuthMiddleware(testSecret), RoleMiddleware(util.RoleInstructor), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	learner, _ := util.GenerateJWT("u1", util.RoleLearner, testSecret, time.Hour)
	instructor, _ := util.GenerateJWT("t1", util.RoleInstructor, testSecret, time.Hour)
	admin, _ := util.GenerateJWT("a1", util.RoleAdmin, testSecret, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"header token", "/me", "Bearer " + learner, http.StatusOK},
		{"query token", "/me?token=" + learner, "", http.StatusOK},
		{"learner on instructor route", "/teach", "Bearer " + learner, http.StatusForbidden},
		{"instructor", "/teach", "Bearer " + instructor, http.StatusOK},
		{"admin passes role check", "/teach", "Bearer " + admin, http.StatusOK},
	}
	r := newRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
