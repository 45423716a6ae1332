package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"budget/config"
	"budget/database"
	"budget/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

func setupAuthConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			ExpireTime:        time.Hour,
			RefreshExpireTime: 24 * time.Hour,
		},
	}
	config.GlobalConfig = cfg
	middleware.InitJWT(cfg)
	t.Cleanup(func() { config.GlobalConfig = nil })
	gin.SetMode(gin.TestMode)
	return cfg
}

var userColumns = []string{"id", "username", "email", "password", "is_active", "created_at", "updated_at"}

func userRows(id uint, username, email, hash string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).
		AddRow(id, username, email, hash, active, time.Now(), time.Now())
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	// 用户名和邮箱都未被使用
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("newuser", "new@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	// GORM Create 使用事务
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg).Register)

	w := postJSON(router, "/register", `{"username":"newuser","email":"new@example.com","password":"password123"}`)

	assert.Equal(t, 201, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "注册成功", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "newuser", data["username"])
	assert.NotContains(t, data, "password")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_UsernameExists(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("existinguser", "other@example.com").
		WillReturnRows(userRows(1, "existinguser", "e@example.com", "hash", true))

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg).Register)

	w := postJSON(router, "/register", `{"username":"existinguser","email":"other@example.com","password":"password123"}`)

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "用户名已存在", decodeResponse(t, w)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_Invalid(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg).Register)

	bodies := []string{
		`{"username":"has space","email":"a@example.com","password":"password123"}`,
		`{"username":"short","email":"a@example.com","password":"1234567"}`,
		`{"username":"bademail","email":"not-an-email","password":"password123"}`,
		`{"email":"a@example.com","password":"password123"}`,
	}
	for _, body := range bodies {
		w := postJSON(router, "/register", body)
		assert.Equal(t, 400, w.Code, body)
	}
	// 参数不合法时不访问数据库
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("login@example.com").
		WillReturnRows(userRows(1, "loginuser", "login@example.com", string(hashed), true))

	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg).Login)

	w := postJSON(router, "/login", `{"email":"login@example.com","password":"password123"}`)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "loginuser", data["username"])
	assert.Equal(t, "login@example.com", data["email"])

	access, err := middleware.ParseToken(data["access"].(string))
	require.NoError(t, err)
	assert.Equal(t, uint(1), access.UserID)
	_, err = middleware.ParseRefreshToken(data["refresh"].(string))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		password string
		code     int
	}{
		{"user not found", sqlmock.NewRows(userColumns), "password123", 401},
		{"wrong password", userRows(1, "u", "u@example.com", string(hashed), true), "wrong-password", 401},
		{"inactive", userRows(1, "u", "u@example.com", string(hashed), false), "password123", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, cleanup := setupMockDB(t)
			defer cleanup()
			cfg := setupAuthConfig(t)

			mock.ExpectQuery("SELECT .* FROM `users`").
				WithArgs("u@example.com").
				WillReturnRows(tt.rows)

			router := gin.New()
			router.POST("/login", NewAuthHandler(cfg).Login)

			w := postJSON(router, "/login", `{"email":"u@example.com","password":"`+tt.password+`"}`)
			assert.Equal(t, tt.code, w.Code)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuthHandler_Login_DatabaseError(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("u@example.com").
		WillReturnError(errors.New("connection refused"))

	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg).Login)

	// 数据库故障不能表现为凭证错误
	w := postJSON(router, "/login", `{"email":"u@example.com","password":"password123"}`)
	assert.Equal(t, 500, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Refresh(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	refresh, err := middleware.GenerateRefreshToken(5, "u5", time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `revoked_tokens`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(userRows(5, "u5", "u5@example.com", "hash", true))

	router := gin.New()
	router.POST("/refresh", NewAuthHandler(cfg).Refresh)

	w := postJSON(router, "/refresh", `{"refresh":"`+refresh+`"}`)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	claims, err := middleware.ParseToken(data["access"].(string))
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Refresh_Revoked(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	refresh, _ := middleware.GenerateRefreshToken(5, "u5", time.Hour)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `revoked_tokens`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	router := gin.New()
	router.POST("/refresh", NewAuthHandler(cfg).Refresh)

	w := postJSON(router, "/refresh", `{"refresh":"`+refresh+`"}`)
	assert.Equal(t, 401, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Refresh_AccessTokenRejected(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	access, _ := middleware.GenerateToken(5, "u5", time.Hour)

	router := gin.New()
	router.POST("/refresh", NewAuthHandler(cfg).Refresh)

	w := postJSON(router, "/refresh", `{"refresh":"`+access+`"}`)
	assert.Equal(t, 401, w.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	refresh, _ := middleware.GenerateRefreshToken(1, "u1", time.Hour)

	// FirstOrCreate：先查，不存在再插入
	mock.ExpectQuery("SELECT .* FROM `revoked_tokens`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "jti", "user_id", "expires_at", "created_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `revoked_tokens`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/logout", NewAuthHandler(cfg).Logout)

	w := postJSON(router, "/logout", `{"refresh":"`+refresh+`"}`)
	assert.Equal(t, 205, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Logout_TokenWithoutExpiry(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID:           1,
		TokenType:        middleware.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{ID: "no-exp"},
	}).SignedString([]byte(cfg.JWT.Secret))
	require.NoError(t, err)

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/logout", NewAuthHandler(cfg).Logout)

	w := postJSON(router, "/logout", `{"refresh":"`+token+`"}`)
	assert.Equal(t, 400, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Logout_Malformed(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	otherUsers, _ := middleware.GenerateRefreshToken(2, "u2", time.Hour)

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/logout", NewAuthHandler(cfg).Logout)

	for _, body := range []string{`{"refresh":"garbage"}`, `{}`, `{"refresh":"` + otherUsers + `"}`} {
		w := postJSON(router, "/logout", body)
		assert.Equal(t, 400, w.Code, body)
	}
}

func TestAuthHandler_GetProfile(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := setupAuthConfig(t)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(userRows(3, "me", "me@example.com", "hash", true))

	router := gin.New()
	router.Use(setUserIDMiddleware(3))
	router.GET("/profile", NewAuthHandler(cfg).GetProfile)

	req := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "me", data["username"])
	assert.NotContains(t, data, "password")
	require.NoError(t, mock.ExpectationsWereMet())
}
