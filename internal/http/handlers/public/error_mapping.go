package public

import (
	"errors"

	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var catalogErrorRules = []mappedHandlerError{
	{target: service.ErrProductNotFound, code: response.CodeNotFound, key: "error.product_not_found"},
	{target: service.ErrInvalidKeyword, code: response.CodeBadRequest, key: "error.search_keyword_required"},
}

var cartCommonErrorRules = []mappedHandlerError{
	{target: service.ErrCartIdentityRequired, code: response.CodeBadRequest, key: "error.cart_identity_required"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, key: "error.cart_item_not_found"},
}

var cartMutationErrorRules = []mappedHandlerError{
	{target: service.ErrVariantNotFound, code: response.CodeNotFound, key: "error.variant_not_found"},
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, key: "error.quantity_invalid"},
	{target: service.ErrOutOfStock, code: response.CodeConflict, key: "error.out_of_stock"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCartIdentityRequired, code: response.CodeBadRequest, key: "error.cart_identity_required"},
	{target: service.ErrEmptyCart, code: response.CodeBadRequest, key: "error.cart_empty"},
	{target: service.ErrMissingContact, code: response.CodeBadRequest, key: "error.contact_phone_required"},
	{target: service.ErrOutOfStock, code: response.CodeConflict, key: "error.out_of_stock"},
	{target: service.ErrNoShippingConfigured, code: response.CodeInternal, key: "error.shipping_not_configured"},
	{target: service.ErrGatewayNotConfigured, code: response.CodeInternal, key: "error.payment_gateway_not_configured"},
	{target: service.ErrGatewayRequestFailed, code: response.CodeUpstream, key: "error.payment_gateway_request_failed"},
	{target: service.ErrGatewayResponseInvalid, code: response.CodeUpstream, key: "error.payment_gateway_response_invalid"},
}

// opayCallbackErrorRules 回调使用真实 HTTP 状态码，网关据此决定是否重试
var opayCallbackErrorRules = []mappedHandlerError{
	{target: service.ErrMalformedCallback, code: response.CodeBadRequest, key: "error.payment_callback_malformed"},
	{target: service.ErrCallbackSignatureInvalid, code: response.CodeBadRequest, key: "error.payment_signature_invalid"},
	{target: service.ErrPaymentAmountMismatch, code: response.CodeBadRequest, key: "error.payment_amount_mismatch"},
	{target: service.ErrPaymentCurrencyMismatch, code: response.CodeBadRequest, key: "error.payment_currency_mismatch"},
	{target: service.ErrUnknownReference, code: response.CodeNotFound, key: "error.payment_reference_unknown"},
	{target: service.ErrOrphanedTransaction, code: response.CodeNotFound, key: "error.payment_transaction_orphaned"},
	{target: service.ErrOutOfStock, code: response.CodeConflict, key: "error.out_of_stock"},
}

var userAuthErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, key: "error.email_invalid"},
	{target: service.ErrEmailExists, code: response.CodeConflict, key: "error.email_exists"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, key: "error.login_invalid"},
	{target: service.ErrUserDisabled, code: response.CodeUnauthorized, key: "error.user_disabled"},
}

var userProfileErrorRules = []mappedHandlerError{
	{target: service.ErrNotFound, code: response.CodeNotFound, key: "error.user_not_found"},
	{target: service.ErrProfileEmpty, code: response.CodeBadRequest, key: "error.profile_empty"},
	{target: service.ErrInvalidPassword, code: response.CodeBadRequest, key: "error.password_old_invalid"},
}

var orderErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
}

func respondCartError(c *gin.Context, err error, fallbackKey string) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(cartCommonErrorRules, cartMutationErrorRules), response.CodeInternal, fallbackKey)
}

func respondCheckoutError(c *gin.Context, err error) {
	// 网关返回了可读信息时直接透传给前端
	if errors.Is(err, service.ErrGatewayResponseInvalid) {
		if msg := service.GatewayMessage(err); msg != "" {
			requestLog(c).Warnw("checkout_gateway_rejected", "message", msg, "error", err)
			respondErrorWithMsg(c, response.CodeUpstream, msg, nil)
			return
		}
	}
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.checkout_failed")
}

func respondUserAuthError(c *gin.Context, err error, fallbackKey string) {
	if respondPasswordPolicyError(c, err) {
		return
	}
	respondWithMappedError(c, err, userAuthErrorRules, response.CodeInternal, fallbackKey)
}

func respondUserProfileError(c *gin.Context, err error, fallbackKey string) {
	if respondPasswordPolicyError(c, err) {
		return
	}
	respondWithMappedError(c, err, userProfileErrorRules, response.CodeInternal, fallbackKey)
}

var passwordResetErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, key: "error.email_invalid"},
	{target: service.ErrNotFound, code: response.CodeNotFound, key: "error.user_not_found"},
	{target: service.ErrUserDisabled, code: response.CodeUnauthorized, key: "error.user_disabled"},
	{target: service.ErrPasswordMismatch, code: response.CodeBadRequest, key: "error.password_mismatch"},
	{target: service.ErrResetCodeInvalid, code: response.CodeBadRequest, key: "error.reset_code_invalid"},
	{target: service.ErrResetCodeExpired, code: response.CodeBadRequest, key: "error.reset_code_expired"},
	{target: service.ErrResetCodeAttemptsExceeded, code: response.CodeTooManyRequests, key: "error.reset_code_attempts_exceeded"},
	{target: service.ErrResetCodeTooFrequent, code: response.CodeTooManyRequests, key: "error.reset_code_too_frequent"},
	{target: service.ErrEmailRecipientRejected, code: response.CodeBadRequest, key: "error.email_invalid"},
	{target: service.ErrEmailServiceDisabled, code: response.CodeInternal, key: "error.email_service_unavailable"},
	{target: service.ErrEmailServiceNotConfigured, code: response.CodeInternal, key: "error.email_service_unavailable"},
}

var contactErrorRules = []mappedHandlerError{
	{target: service.ErrContactInvalid, code: response.CodeBadRequest, key: "error.contact_invalid"},
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, key: "error.email_invalid"},
}

func respondPasswordResetError(c *gin.Context, err error, fallbackKey string) {
	if respondPasswordPolicyError(c, err) {
		return
	}
	respondWithMappedError(c, err, passwordResetErrorRules, response.CodeInternal, fallbackKey)
}
