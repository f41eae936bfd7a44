package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/truecosmic/calbook-api/internal/service"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
	"github.com/truecosmic/calbook-api/pkg/response"
)

// ContextHostKey is the gin context key storing verified host claims.
const ContextHostKey = "currentHost"

// JWT protects host routes by requiring a valid bearer token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextHostKey, claims)
		c.Next()
	}
}
