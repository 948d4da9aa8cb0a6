package admin

import (
	handlershared "github.com/emarket-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// getAdminID 读取 JWT 中间件写入的管理员 ID
func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUintWithKeys(c, "admin_id", "error.admin_id_invalid", "error.admin_id_type_invalid")
}
