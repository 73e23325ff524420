package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
	"github.com/xxxsen/studymate/internal/pkg/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUserEmailKey = "user_email"
)

// JWTAuth rejects requests without a valid bearer token and stores the
// token's user on the context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, errcode.ErrUnauthorized, "not authorized, no token")
			return
		}
		claims, err := jwt.ParseToken(token, secret)
		if err != nil {
			response.Abort(c, errcode.ErrUnauthorized, "not authorized, token failed")
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		if claims.Email != "" {
			c.Set(ContextUserEmailKey, claims.Email)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
