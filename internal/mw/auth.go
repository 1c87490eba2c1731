package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
	"reservation-backend/internal/store"
)

const principalKey = "principal"

// Claims defines the token claims issued by the institutional identity
// provider.
type Claims struct {
	Email string         `json:"email"`
	Role  model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// ValidateToken parses and validates a bearer token string.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// Auth validates the bearer token, upserts the user row on first sight and
// attaches the resulting principal to the request context. Requests without
// a valid principal never reach the engine.
func Auth(secret string, s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		claims, err := ValidateToken(tokenString, secret)
		if err != nil || claims.Email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		role := claims.Role
		if role != model.RoleAdmin {
			role = model.RoleUser
		}

		user, err := s.UpsertUser(c.Request.Context(), claims.Email, role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(principalKey, booking.Principal{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		})
		c.Next()
	}
}

// RequireAdmin rejects non-admin principals before any handler logic runs.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok || !principal.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom extracts the authenticated principal set by Auth.
func PrincipalFrom(c *gin.Context) (booking.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return booking.Principal{}, false
	}
	principal, ok := v.(booking.Principal)
	return principal, ok
}
