package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"content-pipeline/domain/dto"
	"content-pipeline/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AdminAuth requires an HS256 bearer token signed with secretKey. The
// token's subject is stored under "operator" for handlers and logs.
func AdminAuth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		authorization := ctx.Request.Header.Get("Authorization")
		raw, found := strings.CutPrefix(authorization, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		})
		if err != nil || token == nil || !token.Valid {
			res.ResponseMessage = rejectReason(err)
			logger.GetLogger().WithField("reason", res.ResponseMessage).Warn("Rejected admin request")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			ctx.Set("operator", sub)
		}
		ctx.Next()
	}
}

func rejectReason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return "That's not even a token"
		case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
			// Token is either expired or not active yet
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}
