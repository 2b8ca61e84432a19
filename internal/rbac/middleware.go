package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"propdial/internal/auth"
)

// RequireOrganization enforces the multi-tenant invariant: organization_id must exist in context.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := auth.OrganizationID(c.Request.Context())
		if err != nil || oid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole rejects callers without one of the allowed roles with 403.
// Handlers that report missing permission in-band use HasAnyRole instead.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !HasAnyRole(role, allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
