package constants

// 订单状态常量
const (
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
)

// 订单支付状态常量
const (
	OrderPaymentStatusPaid   = "Paid"
	OrderPaymentStatusUnpaid = "Unpaid"
)

// 支付流水状态常量（其余状态字符串由网关回调原样写入）
const (
	PaymentTransactionStatusPending = "PENDING"
	PaymentTransactionStatusSuccess = "SUCCESS"
	PaymentTransactionStatusExpired = "EXPIRED"
)

// 回调处理结果常量
const (
	CallbackOutcomeProcessed        = "processed"
	CallbackOutcomeAlreadyProcessed = "already_processed"
	CallbackOutcomeIgnored          = "ignored"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 购物车会话常量
const (
	CartSessionHeader = "X-Session-Key"
	CartSessionCookie = "emarket_session"
)

// 默认运费
const DefaultShippingCost = "60.00"

// 网关商品描述缺省值
const DefaultProductDescription = "No description"

// 验证码场景常量
const (
	CaptchaSceneLogin         = "login"
	CaptchaSceneRegister      = "register"
	CaptchaSceneGuestCheckout = "guest_checkout"
)

// 队列常量
const (
	QueueDefault              = "default"
	TaskOrderPaid             = "order:paid"
	TaskPaymentTombstonePurge = "payment:tombstone_purge"
	TaskPaymentExpire         = "payment:expire"
)
