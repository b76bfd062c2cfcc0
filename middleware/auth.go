package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/nijaru/vidqa/errors"
)

const userIDKey = "user_id"

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Auth resolves the caller from an HS256 Bearer token. The owner id comes
// from the user_id claim, or from sub when that is numeric.
func Auth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const op = "middleware.Auth"

		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return errors.Unauthorized(op, nil, "Missing bearer token")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return errors.Unauthorized(op, err, "Invalid token")
		}

		userID := claims.UserID
		if userID == 0 && claims.Subject != "" {
			userID, err = strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				return errors.Unauthorized(op, err, "Invalid token subject")
			}
		}
		if userID <= 0 {
			return errors.Unauthorized(op, nil, "Token has no user")
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the owner resolved by Auth.
func UserID(c *fiber.Ctx) (int64, error) {
	if id, ok := c.Locals(userIDKey).(int64); ok {
		return id, nil
	}
	return 0, errors.Unauthorized("middleware.UserID", nil, "Not authenticated")
}

// NewToken signs a token for userID, valid for ttl.
func NewToken(secret []byte, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
