package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/forfeit-backend/internal/http/response"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// ServiceRole is the role claim internal callers (schedulers, the product API)
// must carry.
const ServiceRole = "service_role"

type ServiceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type ServiceAuth struct {
	log    *logger.Logger
	secret []byte
}

func NewServiceAuth(log *logger.Logger, secret string) *ServiceAuth {
	return &ServiceAuth{log: log.With("middleware", "ServiceAuth"), secret: []byte(secret)}
}

func (sa *ServiceAuth) RequireService() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(sa.secret) == 0 {
			response.RespondError(c, http.StatusServiceUnavailable, "auth_not_configured", errors.New("service auth is not configured"))
			c.Abort()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		claims := &ServiceClaims{}
		parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return sa.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			sa.log.Debug("Rejected service token", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		if claims.Role != ServiceRole {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// SignServiceToken issues a token for internal callers and tests.
func SignServiceToken(secret string, claims ServiceClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
