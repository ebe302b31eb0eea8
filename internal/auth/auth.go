// Package auth adapts the platform's bearer-token identity into gin context
// values. The engine trusts the claims as given; privilege checks happen in
// the services.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"coachdesk/internal/config"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ctxUserID  = "auth_user_id"
	ctxIsAdmin = "auth_is_admin"
)

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SignToken mints an HS256 token for userID with the given role.
func SignToken(cfg config.AuthConfig, userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func parseToken(cfg config.AuthConfig, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireBearer protects /api/ routes; health endpoints and the dev token
// issuer stay open.
func RequireBearer(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || p == "/api/v1/auth/token" {
			c.Next()
			return
		}
		if !strings.HasPrefix(p, "/api/") {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := parseToken(cfg, strings.TrimSpace(strings.TrimPrefix(raw, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxIsAdmin, claims.Role == RoleAdmin)
		c.Next()
	}
}

// UserID returns the authenticated caller's user id, if any.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ctxIsAdmin)
	if !ok {
		return false
	}
	admin, _ := v.(bool)
	return admin
}
