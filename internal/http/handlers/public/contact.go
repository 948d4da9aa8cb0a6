package public

import (
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/i18n"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ContactMessageRequest 联系留言
type ContactMessageRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

// SubmitContactMessage 提交联系留言
func (h *Handler) SubmitContactMessage(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ContactMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	message, err := h.ContactService.Submit(uid, service.ContactMessageInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		respondWithMappedError(c, err, contactErrorRules, response.CodeInternal, "error.save_failed")
		return
	}
	response.SuccessWithMsg(c, i18n.T(i18n.ResolveLocale(c), "message.contact_sent"), gin.H{"id": message.ID})
}
