package middleware

import (
	"strings"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/gofiber/fiber/v2"
)

const participantKey = "participant"

// TokenValidator is satisfied by *service.AuthService.
type TokenValidator interface {
	ValidateAccessToken(token string) (model.Participant, error)
}

// Auth accepts a bearer token, or a token query parameter for browsers
// opening a WebSocket.
func Auth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			if authHeader == "" {
				return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
			}
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return c.Status(401).JSON(fiber.Map{"error": "invalid authorization format"})
			}
		}

		p, err := tokens.ValidateAccessToken(tokenString)
		if err != nil || !p.Valid() {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(participantKey, p)
		return c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Participant(c).IsAdmin() {
			return c.Status(403).JSON(fiber.Map{"error": "admin only"})
		}
		return c.Next()
	}
}

// Participant returns the authenticated caller, or the zero value.
func Participant(c *fiber.Ctx) model.Participant {
	p, _ := c.Locals(participantKey).(model.Participant)
	return p
}
