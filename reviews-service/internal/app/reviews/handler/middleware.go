package handler

import (
	"net/http"
	"strings"

	"marketplace/reviews-service/internal/app/reviews/entity"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Ключи контекста Gin с данными пользователя
const (
	ctxUserID   = "user_id"
	ctxEmail    = "email"
	ctxRoleName = "role_name"
)

// JWTClaims структура claims токена, который выдает Auth Service
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	RoleName string `json:"role_name"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет JWT токен в запросах для Gin
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware создает новый middleware для аутентификации
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate проверяет JWT токен и добавляет данные пользователя в контекст Gin
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithMessage(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Формат "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithMessage(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(m.jwtSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid || claims.UserID == "" {
			abortWithMessage(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRoleName, claims.RoleName)

		c.Next()
	}
}

// RequireRole пропускает только пользователей с одной из ролей
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleName := c.GetString(ctxRoleName)
		if c.GetString(ctxUserID) == "" {
			abortWithMessage(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		for _, role := range roles {
			if roleName == role {
				c.Next()
				return
			}
		}

		abortWithMessage(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// actorFromContext собирает пользователя запроса из контекста Gin
func actorFromContext(c *gin.Context) entity.Actor {
	return entity.Actor{
		UserID: c.GetString(ctxUserID),
		Role:   c.GetString(ctxRoleName),
	}
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, entity.ErrorResponse{Message: message})
}
