package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"propdial/internal/auth"
)

func serveAs(orgID, role string, handlers ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	chain := append([]gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", orgID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", chain...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs("o", RoleSuperAdmin, RequireOrganization(), RequireAnyRole(RoleOwner)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	if code := serveAs("o", RoleAnalyst, RequireOrganization(), RequireAnyRole(CampaignOperators...)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs("o", RoleAgent, RequireOrganization(), RequireAnyRole(CampaignOperators...)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireOrganization(t *testing.T) {
	if code := serveAs("", RoleOwner, RequireOrganization(), RequireAnyRole(RoleOwner)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestHasAnyRole(t *testing.T) {
	if HasAnyRole("", RoleOwner) {
		t.Fatalf("empty role must be denied")
	}
	if !HasAnyRole(RoleSuperAdmin) {
		t.Fatalf("super_admin must be allowed")
	}
	if HasAnyRole(RoleAnalyst, CampaignOperators...) {
		t.Fatalf("analyst must not operate campaigns")
	}
}
