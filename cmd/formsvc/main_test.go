package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fooforms/fooforms/backend/go-services/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestBuild_RateLimitPerSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Auth:      config.AuthConfig{AllowInsecure: true},
		RateLimit: config.RateLimitConfig{Enabled: true, RPS: 0.0001, Burst: 1},
		Forms:     config.FormsConfig{URLPrefix: "/forms"},
	}
	a, err := build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	post := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/forms", strings.NewReader(`{"displayName":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		a.engine.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusUnauthorized, post(""))
	require.Equal(t, http.StatusCreated, post(bearer(t, "alice")))
	require.Equal(t, http.StatusCreated, post(bearer(t, "bob")))
	require.Equal(t, http.StatusTooManyRequests, post(bearer(t, "alice")))

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
