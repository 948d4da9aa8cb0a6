package worker

import (
	"context"
	"encoding/json"

	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/provider"
	"github.com/emarket-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderPaid, c.handleOrderPaid)
	mux.HandleFunc(queue.TaskPaymentTombstonePurge, c.handleTombstonePurge)
	mux.HandleFunc(queue.TaskPaymentExpire, c.handlePaymentExpire)
}

func (c *Consumer) handleOrderPaid(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_paid_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPaidPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_paid_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_paid_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_paid_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_paid_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}

	productIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if c.CatalogService != nil {
		if err := c.CatalogService.InvalidateProducts(ctx, productIDs); err != nil {
			logger.Warnw("worker_order_paid_invalidate_catalog_failed", "order_id", order.ID, "error", err)
			return err
		}
	}
	logger.Infow("worker_order_paid_notified",
		"order_id", order.ID,
		"reference", order.PaymentReference,
		"items", len(order.Items),
		"total_amount", order.TotalAmount.String(),
		"email", order.Email,
	)
	return nil
}

func (c *Consumer) handleTombstonePurge(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_tombstone_purge_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TombstonePurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_tombstone_purge_unmarshal_failed", "error", err)
		return err
	}
	if payload.Reference == "" || c.PaymentService == nil {
		logger.Debugw("worker_tombstone_purge_skip_invalid_payload", "reference", payload.Reference)
		return nil
	}
	removed, err := c.PaymentService.PurgeTombstone(payload.Reference)
	if err != nil {
		logger.Warnw("worker_tombstone_purge_failed", "reference", payload.Reference, "error", err)
		return err
	}
	logger.Debugw("worker_tombstone_purged", "reference", payload.Reference, "removed", removed)
	return nil
}

func (c *Consumer) handlePaymentExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.Reference == "" || c.PaymentService == nil {
		logger.Debugw("worker_payment_expire_skip_invalid_payload", "reference", payload.Reference)
		return nil
	}
	expired, err := c.PaymentService.ExpirePending(payload.Reference)
	if err != nil {
		logger.Warnw("worker_payment_expire_failed", "reference", payload.Reference, "error", err)
		return err
	}
	logger.Debugw("worker_payment_expire_done", "reference", payload.Reference, "expired", expired)
	return nil
}
