package admin

import (
	"strings"

	"github.com/emarket-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListContactMessages 联系留言列表
func (h *Handler) ListContactMessages(c *gin.Context) {
	page, pageSize := pageParams(c)
	messages, total, err := h.ContactService.List(page, pageSize, strings.TrimSpace(c.Query("keyword")))
	if err != nil {
		respondError(c, response.CodeInternal, "error.contact_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, messages, response.BuildPagination(page, pageSize, total))
}
