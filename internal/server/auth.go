package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig holds the login allow-list and session-token settings. An empty
// allow-list disables authentication entirely (single-tenant internal tool
// behind a trusted network).
type AuthConfig struct {
	AllowedEmails []string
	SessionSecret string
	SessionTTL    time.Duration
}

// Enabled reports whether the allow-list is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.AllowedEmails) > 0
}

func (a AuthConfig) emailAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range a.AllowedEmails {
		if email == allowed {
			return true
		}
	}
	return false
}

type loginRequest struct {
	Email string `json:"email"`
}

// handleLogin checks the email against the allow-list and issues a session
// token. With auth disabled it reports that no token is needed.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	if !s.config.Auth.Enabled() {
		return c.JSON(fiber.Map{"token": "", "auth": "disabled"})
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body",
			"Invalid request body: "+err.Error())
	}
	if !s.config.Auth.emailAllowed(req.Email) {
		s.logger.Warn().Str("email", req.Email).Msg("login rejected")
		return problemResponse(c, fiber.StatusUnauthorized, "not_allowed",
			"This email is not on the access list")
	}

	ttl := s.config.Auth.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	claims := jwt.MapClaims{
		"sub": strings.ToLower(strings.TrimSpace(req.Email)),
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.config.Auth.SessionSecret))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError, "token_error",
			"Failed to issue session token")
	}
	return c.JSON(fiber.Map{"token": token})
}

// NewAuthMiddleware validates the session token on every data route. Login
// stays open so a session can be established.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Enabled() || c.Path() == "/api/v1/login" {
			return c.Next()
		}

		header := c.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return problemResponse(c, fiber.StatusUnauthorized, "missing_token",
				"Authorization header with a Bearer token is required")
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.SessionSecret), nil
		})
		if err != nil || !token.Valid {
			return problemResponse(c, fiber.StatusUnauthorized, "invalid_token",
				"Session token is invalid or expired")
		}

		if sub, err := token.Claims.GetSubject(); err == nil {
			c.Locals("user_email", sub)
		}
		return c.Next()
	}
}
