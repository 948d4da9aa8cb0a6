package admin

import (
	"errors"
	"strconv"

	handlershared "github.com/emarket-next/internal/http/handlers/shared"
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/i18n"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondErrorWithMsg(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	if errors.Is(err, service.ErrWeakPassword) {
		var perr interface {
			Key() string
			Args() []interface{}
		}
		if errors.As(err, &perr) {
			msg := i18n.Sprintf(i18n.ResolveLocale(c), perr.Key(), perr.Args()...)
			respondErrorWithMsg(c, response.CodeBadRequest, msg, nil)
			return
		}
	}
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

// parsePathUint 解析路径中的正整数 ID
func parsePathUint(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return normalizePagination(page, pageSize)
}

var adminAuthErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, key: "error.admin_login_invalid"},
	{target: service.ErrInvalidPassword, code: response.CodeBadRequest, key: "error.password_old_invalid"},
	{target: service.ErrWeakPassword, code: response.CodeBadRequest, key: "error.password_weak"},
	{target: service.ErrNotFound, code: response.CodeNotFound, key: "error.admin_not_found"},
}

var adminOrderErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, key: "error.order_status_invalid"},
}

var adminPaymentErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentTransactionNotFound, code: response.CodeNotFound, key: "error.payment_transaction_not_found"},
}

var adminShippingErrorRules = []mappedHandlerError{
	{target: service.ErrShippingSettingNotFound, code: response.CodeNotFound, key: "error.shipping_not_found"},
	{target: service.ErrShippingGovernorateExists, code: response.CodeConflict, key: "error.shipping_governorate_exists"},
	{target: service.ErrShippingInvalid, code: response.CodeBadRequest, key: "error.shipping_invalid"},
}

var adminCatalogErrorRules = []mappedHandlerError{
	{target: service.ErrCategoryNotFound, code: response.CodeNotFound, key: "error.category_not_found"},
	{target: service.ErrCategoryInvalid, code: response.CodeBadRequest, key: "error.category_invalid"},
	{target: service.ErrCategoryInUse, code: response.CodeConflict, key: "error.category_in_use"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, key: "error.product_not_found"},
	{target: service.ErrProductInvalid, code: response.CodeBadRequest, key: "error.product_invalid"},
	{target: service.ErrVariantNotFound, code: response.CodeNotFound, key: "error.variant_not_found"},
	{target: service.ErrVariantInvalid, code: response.CodeBadRequest, key: "error.variant_invalid"},
	{target: service.ErrSlugExists, code: response.CodeConflict, key: "error.slug_exists"},
}
