package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

type AuthController struct {
	Tokens *service.TokenService
}

// TokenAuthMiddleware rejects requests without a valid bearer token and
// stores the caller in "UserId".
func (a AuthController) TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenAuth, err := a.Tokens.ExtractTokenMetadata(c.Request)
		if err != nil {
			//Token either expired or not valid
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please login first"})
			return
		}
		c.Set("UserId", tokenAuth.UserID)
		c.Next()
	}
}

// Refresh trades a still valid token for a fresh one.
func (a AuthController) Refresh(c *gin.Context) {
	ts, err := a.Tokens.Refresh(c.Request)
	if err != nil {
		logger.Warnf("[%s] Token refresh rejected: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization, please login again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": ts.AccessToken})
}

// userID is set by TokenAuthMiddleware.
func userID(c *gin.Context) string {
	return c.GetString("UserId")
}
