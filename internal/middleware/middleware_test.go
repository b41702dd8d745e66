package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecorder/internal/config"
	"ecorder/internal/domain/model"
	"ecorder/internal/logging"
	"ecorder/internal/middleware"
	"ecorder/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mwErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func mustMakeJWT(t *testing.T, secret string, sub string, role string, tv int, method jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func runRequest(e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
}

func TestAuthJWT_Rejects(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "USER", "tv": 0,
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"empty token", "Bearer "},
		{"bad signature", "Bearer " + mustMakeJWT(t, "wrong-secret", "1", "USER", 0, jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + mustMakeJWT(t, cfg.JWTSecret, "1", "USER", 0, jwt.SigningMethodHS512)},
		{"missing exp", "Bearer " + noExp},
		{"bad sub", "Bearer " + mustMakeJWT(t, cfg.JWTSecret, "abc", "USER", 0, jwt.SigningMethodHS256)},
		{"empty role", "Bearer " + mustMakeJWT(t, cfg.JWTSecret, "1", "", 0, jwt.SigningMethodHS256)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg))

			rec := runRequest(e, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			body := decodeMWError(t, rec)
			assert.Equal(t, "unauthorized", body.Error)
			assert.Equal(t, "UNAUTHORIZED", body.Code)
		})
	}
}

// 正常：ctxに値が入る
func TestAuthJWT_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}

	raw := mustMakeJWT(t, cfg.JWTSecret, "123", "USER", 7, jwt.SigningMethodHS256)

	e.GET("/protected", func(c echo.Context) error {
		userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
		role, _ := c.Get(middleware.CtxUserRoleKey).(string)
		tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
		return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role, TokenVersion: tv})
	}, middleware.AuthJWT(cfg))

	rec := runRequest(e, "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "USER", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
}

// AuthJWT無しでGuardだけ => 401
func TestTokenVersionGuard_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(mockUserRepo)

	e.GET("/protected", okHandler, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestTokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	cases := []struct {
		name     string
		user     *model.User
		repoErr  error
		wantCode int
	}{
		{"match", &model.User{ID: 1, TokenVersion: 5, IsActive: true}, nil, http.StatusOK},
		{"mismatch", &model.User{ID: 1, TokenVersion: 6, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 1, TokenVersion: 5, IsActive: false}, nil, http.StatusUnauthorized},
		{"not found", nil, repository.ErrUserNotFound, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			userRepo := new(mockUserRepo)
			userRepo.On("FindByID", mock.Anything, int64(1)).Return(tc.user, tc.repoErr)

			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))

			raw := mustMakeJWT(t, cfg.JWTSecret, "1", "USER", 5, jwt.SigningMethodHS256)
			rec := runRequest(e, "Bearer "+raw)
			assert.Equal(t, tc.wantCode, rec.Code)
			userRepo.AssertExpectations(t)
		})
	}
}

func TestAdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	t.Run("user is forbidden", func(t *testing.T) {
		e := echo.New()
		e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

		raw := mustMakeJWT(t, cfg.JWTSecret, "1", "USER", 0, jwt.SigningMethodHS256)
		rec := runRequest(e, "Bearer "+raw)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		body := decodeMWError(t, rec)
		assert.Equal(t, "FORBIDDEN", body.Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		e := echo.New()
		e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

		raw := mustMakeJWT(t, cfg.JWTSecret, "1", "ADMIN", 0, jwt.SigningMethodHS256)
		rec := runRequest(e, "Bearer "+raw)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no role in context", func(t *testing.T) {
		e := echo.New()
		e.GET("/protected", okHandler, middleware.AdminRoleGuard())

		rec := runRequest(e, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	e := echo.New()
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: func() string { return "req-1" }}))
	e.Use(middleware.RequestLogger(base))

	var ctxLoggerSeen bool
	e.GET("/protected", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside")
		ctxLoggerSeen = true
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	rec := runRequest(e, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ctxLoggerSeen)

	inside := logs.FilterMessage("inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "req-1", inside[0].ContextMap()["request_id"])

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 1)
	assert.EqualValues(t, http.StatusNoContent, done[0].ContextMap()["status"])

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	done = logs.FilterMessage("request completed").All()
	require.Len(t, done, 2)
	assert.Equal(t, zap.WarnLevel, done[1].Level)
}
