package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

func newRBACRouter(claims *models.JWTClaims, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teachers/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, guard, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		guard  gin.HandlerFunc
		target string
		status int
	}{
		{"no claims", nil, RequireRoles(models.RoleAdmin), "/teachers/t-1", http.StatusUnauthorized},
		{"role allowed", &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin}, RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), "/teachers/t-1", http.StatusOK},
		{"role forbidden", &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher}, RequireRoles(models.RoleAdmin), "/teachers/t-1", http.StatusForbidden},
		{"self allowed", &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher}, RBAC(string(models.RoleAdmin), "SELF"), "/teachers/t-1", http.StatusOK},
		{"self mismatch", &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher}, RBAC(string(models.RoleAdmin), "SELF"), "/teachers/t-2", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRBACRouter(tc.claims, tc.guard)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
