package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"componentlab/api/logger"
	"componentlab/api/models"
	"componentlab/api/store"
	"componentlab/api/utils"
)

const userContextKey = "user"

// UserLookup loads the account behind a verified token.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired rejects requests without a valid bearer token for an existing user.
func AuthRequired(tokens *utils.JWTManager, users UserLookup, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := utils.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Token de autenticación no proporcionado")
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			log.Warn("AuthRequired: invalid JWT token", zap.Error(err), zap.String("ip", c.ClientIP()))
			abortUnauthorized(c, "Token inválido o expirado")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				abortUnauthorized(c, "Usuario no encontrado")
				return
			}
			log.Error("AuthRequired: user lookup failed", zap.Error(err), zap.String("user_id", claims.UserID))
			abortUnauthorized(c, "Token inválido o expirado")
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}
