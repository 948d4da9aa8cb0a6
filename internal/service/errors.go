package service

import "errors"

// 通用与账号
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrWeakPassword         = errors.New("password does not meet policy")
	ErrUserDisabled         = errors.New("user disabled")
	ErrEmailExists          = errors.New("email already registered")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrProfileEmpty         = errors.New("profile update is empty")
	ErrCaptchaRequired      = errors.New("captcha required")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha config invalid")
)

// 商品目录
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductInvalid   = errors.New("product invalid")
	ErrInvalidKeyword   = errors.New("search keyword is required")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInvalid  = errors.New("category invalid")
	ErrCategoryInUse    = errors.New("category still has products")
	ErrSlugExists       = errors.New("slug already exists")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrVariantInvalid   = errors.New("variant invalid")
)

// 购物车
var (
	ErrCartIdentityRequired = errors.New("cart identity required")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrOutOfStock           = errors.New("out of stock")
)

// 结账
var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingContact         = errors.New("contact phone is required")
	ErrNoShippingConfigured   = errors.New("no shipping setting configured")
	ErrGatewayNotConfigured   = errors.New("payment gateway not configured")
	ErrGatewayRequestFailed   = errors.New("payment gateway request failed")
	ErrGatewayResponseInvalid = errors.New("payment gateway response invalid")
)

// 支付回调
var (
	ErrMalformedCallback          = errors.New("malformed callback")
	ErrCallbackSignatureInvalid   = errors.New("callback signature invalid")
	ErrUnknownReference           = errors.New("unknown payment reference")
	ErrOrphanedTransaction        = errors.New("payment transaction cart missing")
	ErrPaymentAmountMismatch      = errors.New("payment amount mismatch")
	ErrPaymentCurrencyMismatch    = errors.New("payment currency mismatch")
	ErrPaymentTransactionNotFound = errors.New("payment transaction not found")
)

// 订单与运费
var (
	ErrOrderNotFound             = errors.New("order not found")
	ErrOrderStatusInvalid        = errors.New("order status transition invalid")
	ErrShippingSettingNotFound   = errors.New("shipping setting not found")
	ErrShippingGovernorateExists = errors.New("shipping governorate already exists")
	ErrShippingInvalid           = errors.New("shipping setting invalid")
)

// 找回密码与联系留言
var (
	ErrResetCodeInvalid          = errors.New("reset code invalid")
	ErrResetCodeExpired          = errors.New("reset code expired")
	ErrResetCodeAttemptsExceeded = errors.New("reset code attempts exceeded")
	ErrResetCodeTooFrequent      = errors.New("reset code requested too frequently")
	ErrPasswordMismatch          = errors.New("passwords do not match")
	ErrContactInvalid            = errors.New("contact message invalid")
)
