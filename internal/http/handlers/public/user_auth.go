package public

import (
	"time"

	"github.com/emarket-next/internal/constants"
	handlershared "github.com/emarket-next/internal/http/handlers/shared"
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UserRegisterRequest 注册请求
type UserRegisterRequest struct {
	Email          string                              `json:"email" binding:"required"`
	Username       string                              `json:"username"`
	Phone          string                              `json:"phone"`
	Password       string                              `json:"password" binding:"required"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// UserLoginRequest 登录请求
type UserLoginRequest struct {
	Email          string                              `json:"email" binding:"required"`
	Password       string                              `json:"password" binding:"required"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// UpdateProfileRequest 更新资料请求，缺省字段保持不变
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func userView(user *models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"username":      user.Username,
		"phone":         user.Phone,
		"status":        user.Status,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}

func tokenView(user *models.User, token string, expiresAt time.Time) gin.H {
	return gin.H{
		"user":       userView(user),
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	}
}

// UserRegister 用户注册
func (h *Handler) UserRegister(c *gin.Context) {
	var req UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if !h.verifyCaptcha(c, constants.CaptchaSceneRegister, req.CaptchaPayload) {
		return
	}

	user, token, expiresAt, err := h.UserAuthService.Register(service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		respondUserAuthError(c, err, "error.register_failed")
		return
	}
	response.Success(c, tokenView(user, token, expiresAt))
}

// UserLogin 用户登录，同时合并当前游客购物车
func (h *Handler) UserLogin(c *gin.Context) {
	var req UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if !h.verifyCaptcha(c, constants.CaptchaSceneLogin, req.CaptchaPayload) {
		return
	}

	user, token, expiresAt, err := h.UserAuthService.Login(req.Email, req.Password, c.GetString(CartSessionContextKey))
	if err != nil {
		requestLog(c).Infow("user_login_failed", "email", req.Email, "client_ip", c.ClientIP(), "error", err)
		respondUserAuthError(c, err, "error.login_failed")
		return
	}
	requestLog(c).Infow("user_login_succeeded", "user_id", user.ID, "client_ip", c.ClientIP())
	response.Success(c, tokenView(user, token, expiresAt))
}

// GetProfile 获取当前用户资料
func (h *Handler) GetProfile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserAuthService.GetUserByID(uid)
	if err != nil {
		respondUserProfileError(c, err, "error.user_fetch_failed")
		return
	}
	response.Success(c, userView(user))
}

// UpdateProfile 更新当前用户资料
func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.UserAuthService.UpdateProfile(uid, req.Username, req.Phone)
	if err != nil {
		respondUserProfileError(c, err, "error.user_update_failed")
		return
	}
	response.Success(c, userView(user))
}

// ChangePassword 修改当前用户密码
func (h *Handler) ChangePassword(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.UserAuthService.ChangePassword(uid, req.OldPassword, req.NewPassword); err != nil {
		respondUserProfileError(c, err, "error.user_update_failed")
		return
	}
	response.Success(c, gin.H{"updated": true})
}
