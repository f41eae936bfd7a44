package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/truecosmic/calbook-api/internal/middleware"
	"github.com/truecosmic/calbook-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.HostClaims {
	value, exists := c.Get(middleware.ContextHostKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.HostClaims)
	if !ok {
		return nil
	}
	return claims
}
