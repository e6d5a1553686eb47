package api

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/illegalcall/automark/internal/models"
)

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and password are required",
		})
	}

	s.logger.Info("Authentication attempt", "username", req.Username)

	if !s.validCredentials(req.Username, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	now := time.Now()
	sid := ulid.Make().String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": req.Username,
		"user_id":  s.cfg.Backend.UserID,
		"sid":      sid,
		"exp":      now.Add(s.cfg.JWT.Expiration).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		s.logger.Error("Failed to sign token", "error", err)
		errorMessage := "Failed to generate token"
		if s.cfg.Server.Environment != "production" {
			errorMessage = fmt.Sprintf("Failed to generate token: %v", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errorMessage,
		})
	}

	s.logger.Info("User successfully authenticated", "username", req.Username, "sid", sid)

	return c.JSON(models.LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
	})
}

// handleLogout ends the caller's session. Generations still in flight are
// discarded.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	sid, err := s.sessionID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid session",
		})
	}
	s.sessions.remove(sid)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) validCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Server.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Server.Password)) == 1
	return userOK && passOK
}
