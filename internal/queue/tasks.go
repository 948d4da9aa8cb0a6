package queue

import (
	"encoding/json"

	"github.com/emarket-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderPaid 订单支付成功后置任务
	TaskOrderPaid = constants.TaskOrderPaid
	// TaskPaymentTombstonePurge 已消费支付参考号清理任务
	TaskPaymentTombstonePurge = constants.TaskPaymentTombstonePurge
	// TaskPaymentExpire 待支付流水过期任务
	TaskPaymentExpire = constants.TaskPaymentExpire
)

// OrderPaidPayload 订单支付成功任务载荷
type OrderPaidPayload struct {
	OrderID   uint   `json:"order_id"`
	Reference string `json:"reference"`
}

// TombstonePurgePayload 参考号清理任务载荷
type TombstonePurgePayload struct {
	Reference string `json:"reference"`
}

// PaymentExpirePayload 流水过期任务载荷
type PaymentExpirePayload struct {
	Reference string `json:"reference"`
}

// NewOrderPaidTask 创建订单支付成功任务
func NewOrderPaidTask(payload OrderPaidPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPaid, body), nil
}

// NewTombstonePurgeTask 创建参考号清理任务
func NewTombstonePurgeTask(payload TombstonePurgePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentTombstonePurge, body), nil
}

// NewPaymentExpireTask 创建流水过期任务
func NewPaymentExpireTask(payload PaymentExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentExpire, body), nil
}
