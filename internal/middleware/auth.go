package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"eduadvise-backend/pkg/jwt"
	"eduadvise-backend/pkg/response"
)

// RevocationChecker reports whether a token ID (JTI) has been revoked.
// Satisfied by the auth service.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth validates the bearer token and puts user_id, email and user_type
// into the Gin context. WebSocket clients cannot set headers from the
// browser, so a ?token= query parameter is accepted as a fallback.
//
// Revocation lookups fail open: the signature already validated, and a
// Redis blip should not take down every authenticated route.
func Auth(jwtManager *jwt.JWTManager, revocation RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		if revocation != nil && claims.ID != "" {
			revoked, err := revocation.IsTokenRevoked(c.Request.Context(), claims.ID)
			if err == nil && revoked {
				response.Unauthorized(c, "token revoked")
				c.Abort()
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("user_type", claims.UserType)
		c.Next()
	}
}

// RequireUserType restricts a route to the given user types. Must run
// after Auth.
func RequireUserType(types ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		userType, _ := c.Get("user_type")
		if s, ok := userType.(string); ok {
			if _, ok := allowed[s]; ok {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
