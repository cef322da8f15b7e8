package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/response"
)

// ContextActorKey - ключ, под которым в gin.Context лежит entity.Actor.
const ContextActorKey = "actor"

// AccessTokenParser извлекает действующее лицо из access токена.
type AccessTokenParser interface {
	ParseAccess(token string) (entity.Actor, error)
}

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		actor, err := tokens.ParseAccess(raw)
		if err != nil || actor.ID == uuid.Nil {
			response.Unauthorized(c, "invalid access token")
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// InternalKeyMiddleware защищает служебные вызовы (платёжный колбэк) общим ключом.
// Ключ принимается из X-Internal-Key или Authorization: Bearer.
func InternalKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			response.Forbidden(c, "internal api is disabled")
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Internal-Key"))
		if provided == "" {
			provided, _ = bearerToken(c)
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			response.Unauthorized(c, "invalid internal api key")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}
