package api

import (
	"errors"
	"strings"

	"budget/config"
	"budget/database"
	"budget/middleware"
	"budget/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=50" example:"testuser"`
	Email    string `json:"email" binding:"required,email,max=100" example:"test@example.com"`
	Password string `json:"password" binding:"required,min=8,max=72" example:"password123"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"test@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RefreshRequest 刷新/注销请求
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RefreshResponse 刷新响应
type RefreshResponse struct {
	Access string `json:"access"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 用户名不能包含空格，密码至少 8 位
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=RegisterResponse} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if strings.ContainsAny(req.Username, " \t\r\n") {
		BadRequest(c, "用户名不能包含空格")
		return
	}

	// 检查用户名或邮箱是否已存在
	var existingUser models.User
	if err := database.DB.Where("username = ? OR email = ?", req.Username, req.Email).First(&existingUser).Error; err == nil {
		if existingUser.Username == req.Username {
			BadRequest(c, "用户名已存在")
		} else {
			BadRequest(c, "邮箱已被注册")
		}
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		InternalError(c, SafeErrorMessage(err, "查询用户失败"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		IsActive: true,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建用户失败"))
		return
	}

	Created(c, "注册成功", RegisterResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

// Login 用户登录
// @Summary 用户登录
// @Description 使用邮箱和密码登录，返回访问 token 与刷新 token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 403 {object} Response "账号已停用"
// @Failure 429 {object} Response "请求过于频繁"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c, "邮箱或密码错误")
			return
		}
		InternalError(c, SafeErrorMessage(err, "登录失败"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "邮箱或密码错误")
		return
	}

	if !user.IsActive {
		Forbidden(c, "账号已停用")
		return
	}

	access, err := middleware.GenerateToken(user.ID, user.Username, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}
	refresh, err := middleware.GenerateRefreshToken(user.ID, user.Username, h.cfg.JWT.RefreshExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	Success(c, LoginResponse{
		Access:   access,
		Refresh:  refresh,
		Username: user.Username,
		Email:    user.Email,
	})
}

// Refresh 刷新访问 token
// @Summary 刷新 token
// @Description 使用未注销的刷新 token 换取新的访问 token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "刷新 token"
// @Success 200 {object} Response{data=RefreshResponse} "刷新成功"
// @Failure 401 {object} Response "刷新 token 无效"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Unauthorized(c, "刷新 token 无效")
		return
	}

	claims, err := middleware.ParseRefreshToken(req.Refresh)
	if err != nil {
		Unauthorized(c, "刷新 token 无效")
		return
	}

	var revoked int64
	if err := database.DB.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&revoked).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询 token 状态失败"))
		return
	}
	if revoked > 0 {
		Unauthorized(c, "刷新 token 已注销")
		return
	}

	var user models.User
	if err := database.DB.First(&user, claims.UserID).Error; err != nil || !user.IsActive {
		Unauthorized(c, "用户不存在或已停用")
		return
	}

	access, err := middleware.GenerateToken(user.ID, user.Username, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}
	Success(c, RefreshResponse{Access: access})
}

// Logout 注销刷新 token
// @Summary 注销
// @Description 注销刷新 token，之后不能再用于刷新
// @Tags 认证
// @Accept json
// @Security BearerAuth
// @Param request body RefreshRequest true "刷新 token"
// @Success 205 "注销成功"
// @Failure 400 {object} Response "token 无效"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims, err := middleware.ParseRefreshToken(req.Refresh)
	if err != nil || claims.UserID != middleware.GetCurrentUserID(c) {
		BadRequest(c, "token 无效")
		return
	}

	record := models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	// 重复注销不报错
	if err := database.DB.Where(models.RevokedToken{JTI: claims.ID}).FirstOrCreate(&record).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "注销失败"))
		return
	}

	ResetContent(c)
}

// GetProfile 获取用户信息
// @Summary 获取当前用户信息
// @Description 获取当前登录用户的详细信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	Success(c, user)
}
