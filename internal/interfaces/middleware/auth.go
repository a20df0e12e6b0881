package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the receiver identity in the bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

const contextKeyUserID = "user_id"
const contextKeyUsername = "username"

// GenerateToken signs a token for the given user. Issued by the identity
// service in production; exposed here for provisioning and tests.
func GenerateToken(secret, userID, username string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pushhub",
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("middleware: sign token: %w", err)
	}
	return signed, nil
}

// Auth verifies the bearer token and stores the receiver identity on the
// context. EventSource cannot set headers, so a `token` query parameter is
// accepted as a fallback for the subscribe endpoint.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyUsername, claims.Username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
		return ""
	}
	return c.Query("token")
}

// UserID returns the authenticated receiver id set by Auth.
func UserID(c *gin.Context) string {
	id, _ := c.Get(contextKeyUserID)
	if s, ok := id.(string); ok {
		return s
	}
	return ""
}

// Username returns the authenticated username set by Auth.
func Username(c *gin.Context) string {
	name, _ := c.Get(contextKeyUsername)
	if s, ok := name.(string); ok {
		return s
	}
	return ""
}
