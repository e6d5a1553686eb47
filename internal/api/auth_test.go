package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/illegalcall/automark/internal/models"
)

func TestHandleLogin(t *testing.T) {
	env := setupTestServer(t)
	server := env.server

	tests := []struct {
		name           string
		reqBody        models.LoginRequest
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful login",
			reqBody: models.LoginRequest{
				Username: "admin",
				Password: "password",
			},
			expectedStatus: fiber.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result models.LoginResponse
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)

				// Verify token structure
				assert.NotEmpty(t, result.Token)
				assert.Equal(t, "Bearer", result.TokenType)

				// Verify token validity
				token, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
					return []byte(server.cfg.JWT.Secret), nil
				})
				assert.NoError(t, err)
				assert.True(t, token.Valid)

				// Verify claims
				claims := token.Claims.(jwt.MapClaims)
				assert.Equal(t, "admin", claims["username"])
				assert.Equal(t, "default_user", claims["user_id"])
				assert.NotEmpty(t, claims["sid"])
				exp := int64(claims["exp"].(float64))
				assert.Greater(t, exp, time.Now().Unix())
			},
		},
		{
			name: "invalid credentials",
			reqBody: models.LoginRequest{
				Username: "admin",
				Password: "wrong",
			},
			expectedStatus: fiber.StatusUnauthorized,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]string
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.Equal(t, "Invalid credentials", result["error"])
			},
		},
		{
			name: "missing credentials",
			reqBody: models.LoginRequest{
				Username: "",
				Password: "",
			},
			expectedStatus: fiber.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]string
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.Equal(t, "Username and password are required", result["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.reqBody)
			req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			tt.checkResponse(t, resp)
		})
	}
}

func TestSessionID(t *testing.T) {
	env := setupTestServer(t)

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, err := token.SignedString([]byte(env.server.cfg.JWT.Secret))
		assert.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("token without sid", func(t *testing.T) {
		resp := env.do(t, "GET", "/api/generator", sign(jwt.MapClaims{"username": "admin", "exp": exp}), nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		var result map[string]string
		decodeBody(t, resp, &result)
		assert.Equal(t, "Invalid session", result["error"])
	})

	t.Run("token with sid", func(t *testing.T) {
		token := sign(jwt.MapClaims{"username": "admin", "sid": "abc", "exp": exp})
		resp := env.do(t, "GET", "/api/generator", token, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, env.server.sessions.len())
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": "abc", "exp": exp})
		s, _ := token.SignedString([]byte("other-secret"))
		resp := env.do(t, "GET", "/api/generator", s, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
