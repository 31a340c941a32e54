package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/middlewares"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/gin-gonic/gin"
)

// identityStub injects a resolved session the way SessionMiddleware does,
// without needing redis or a database.
func identityStub(username string, isAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if username != "" {
			ctx = utils.SetUsernameInContext(ctx, username)
			ctx = utils.SetIsAdminInContext(ctx, isAdmin)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func TestRequireSessionAndRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		username string
		isAdmin  bool
		want     int
	}{
		{name: "anonymous is rejected", username: "", want: http.StatusUnauthorized},
		{name: "agency user is forbidden", username: "agency-user", isAdmin: false, want: http.StatusForbidden},
		{name: "admin passes", username: "platform-admin", isAdmin: true, want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/guarded",
				identityStub(tc.username, tc.isAdmin),
				middlewares.RequireSession(),
				middlewares.RequireAdmin(),
				func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
