package public

import (
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/i18n"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ForgotPasswordRequest 申请找回密码
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyResetCodeRequest 校验验证码
type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResetPasswordRequest 重置密码
type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required"`
	Code            string `json:"code" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ForgotPassword 发送找回密码验证码
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	locale := i18n.ResolveLocale(c)
	if err := h.PasswordResetService.ForgotPassword(req.Email, locale); err != nil {
		requestLog(c).Infow("password_reset_request_failed", "client_ip", c.ClientIP(), "error", err)
		respondPasswordResetError(c, err, "error.reset_code_send_failed")
		return
	}
	response.SuccessWithMsg(c, i18n.T(locale, "message.reset_code_sent"), gin.H{"sent": true})
}

// VerifyResetCode 校验验证码是否有效
func (h *Handler) VerifyResetCode(c *gin.Context) {
	var req VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.PasswordResetService.VerifyResetCode(req.Email, req.Code)
	if err != nil {
		respondPasswordResetError(c, err, "error.reset_code_verify_failed")
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "message.reset_code_valid"), gin.H{
		"valid":    true,
		"username": user.Username,
	})
}

// ResetPassword 使用验证码设置新密码
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	err := h.PasswordResetService.ResetPassword(service.ResetPasswordInput{
		Email:           req.Email,
		Code:            req.Code,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondPasswordResetError(c, err, "error.user_update_failed")
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "message.password_reset_done"), gin.H{"updated": true})
}
