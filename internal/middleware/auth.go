package middleware

import (
	"errors"
	"net/http"
	"strings"

	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/redis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ContextUserIDKey = "user_id"

type Auth struct {
	issuer *pkg.TokenIssuer
	tokens *redis.TokenRepository
	log    *zap.Logger
}

func NewAuth(issuer *pkg.TokenIssuer, tokens *redis.TokenRepository, log *zap.Logger) *Auth {
	return &Auth{issuer: issuer, tokens: tokens, log: log}
}

// Required 校验 Bearer access token，并要求它与 redis 中保存的最新 token 一致
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		claims, err := a.issuer.ParseAccess(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			return
		}

		ctx := c.Request.Context()
		origin, err := a.tokens.GetUserToken(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, redis.ErrTokenNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "session expired, please log in again"})
				return
			}
			a.log.Error("load session token", zap.String("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
			return
		}
		if origin != tokenStr {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "account has been logged in elsewhere"})
			return
		}

		// 校验通过后续期
		if err := a.tokens.ExtendUserToken(ctx, claims.UserID); err != nil {
			a.log.Warn("extend session token", zap.String("user_id", claims.UserID), zap.Error(err))
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID 取认证中间件注入的用户 id，未登录为空串
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
