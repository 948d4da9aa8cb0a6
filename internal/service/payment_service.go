package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/metrics"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/payment/opay"
	"github.com/emarket-next/internal/queue"
	"github.com/emarket-next/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultTombstoneTTL = 72 * time.Hour

// PaymentService 支付回调对账服务
type PaymentService struct {
	cfg         *config.Config
	txnRepo     repository.PaymentTransactionRepository
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	orderRepo   repository.OrderRepository
	queueClient *queue.Client
	metrics     *metrics.ShopMetrics
	opayCfg     opay.Config
}

// NewPaymentService 创建支付服务
func NewPaymentService(cfg *config.Config, txnRepo repository.PaymentTransactionRepository, cartRepo repository.CartRepository, variantRepo repository.VariantRepository, orderRepo repository.OrderRepository, queueClient *queue.Client, shopMetrics *metrics.ShopMetrics) *PaymentService {
	svc := &PaymentService{
		cfg:         cfg,
		txnRepo:     txnRepo,
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
		orderRepo:   orderRepo,
		queueClient: queueClient,
		metrics:     shopMetrics,
	}
	if cfg != nil {
		svc.opayCfg = NewOpayGateway(cfg.OPay).Config()
	}
	return svc
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CallbackResult 回调处理结果
type CallbackResult struct {
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
	Status    string `json:"status,omitempty"`
	OrderID   uint   `json:"order_id,omitempty"`
}

// HandleOpayCallbackBody 解析原始回调报文后对账
func (s *PaymentService) HandleOpayCallbackBody(ctx context.Context, body []byte) (*CallbackResult, error) {
	cb, err := opay.ParseCallback(body)
	if err != nil {
		paymentLogger().Warnw("payment_callback_malformed", "error", err)
		s.metrics.IncCallback(callbackMetricOutcome(nil, ErrMalformedCallback))
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}
	return s.HandleOpayCallback(ctx, cb)
}

// HandleOpayCallback 对账：SUCCESS 回调在同一事务内生成订单、扣减库存、清空购物车并消费流水
func (s *PaymentService) HandleOpayCallback(ctx context.Context, cb *opay.Callback) (*CallbackResult, error) {
	result, err := s.handleOpayCallback(ctx, cb)
	s.metrics.IncCallback(callbackMetricOutcome(result, err))
	return result, err
}

func (s *PaymentService) handleOpayCallback(ctx context.Context, cb *opay.Callback) (*CallbackResult, error) {
	if cb == nil || strings.TrimSpace(cb.Reference) == "" {
		return nil, ErrMalformedCallback
	}
	reference := strings.TrimSpace(cb.Reference)
	status := strings.ToUpper(strings.TrimSpace(cb.Status))
	log := paymentLogger(
		"reference", reference,
		"callback_status", status,
		"callback_amount", cb.Amount,
		"callback_currency", cb.Currency,
		"callback_transaction_id", cb.TransactionID,
	)
	log.Infow("payment_callback_received")

	if s.cfg != nil && s.cfg.OPay.VerifySignature {
		if err := opay.VerifyCallbackSignature(&s.opayCfg, cb); err != nil {
			log.Warnw("payment_callback_signature_invalid", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrCallbackSignatureInvalid, err)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	result := &CallbackResult{Reference: reference, Status: status}
	var order *models.Order

	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := txnRepo.GetByReferenceForUpdate(reference)
		if err != nil {
			return err
		}
		if txn == nil {
			tombstone, err := txnRepo.GetTombstone(reference)
			if err != nil {
				return err
			}
			if tombstone == nil {
				return ErrUnknownReference
			}
			result.Outcome = constants.CallbackOutcomeAlreadyProcessed
			result.OrderID = tombstone.OrderID
			return nil
		}
		if txn.Status == constants.PaymentTransactionStatusSuccess {
			result.Outcome = constants.CallbackOutcomeAlreadyProcessed
			return nil
		}
		if status != constants.PaymentTransactionStatusSuccess {
			if status == "" {
				status = txn.Status
				result.Status = status
			}
			if err := txnRepo.UpdateStatus(reference, status, now); err != nil {
				return err
			}
			result.Outcome = constants.CallbackOutcomeIgnored
			return nil
		}
		if err := checkCallbackAmount(txn, cb); err != nil {
			return err
		}

		cartRepo := s.cartRepo.WithTx(tx)
		var cart *models.Cart
		if txn.CartID != nil {
			cart, err = cartRepo.GetWithItems(*txn.CartID)
			if err != nil {
				return err
			}
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrOrphanedTransaction
		}

		built, items, err := buildOrderFromTransaction(txn, cart, now)
		if err != nil {
			return err
		}
		// 下单后购物车被修改时，按当前购物车重算的金额与实付不一致，保留流水等待人工处理
		if built.TotalAmount.MinorUnits() != txn.Amount.MinorUnits() {
			return fmt.Errorf("%w: paid=%s cart=%s", ErrPaymentAmountMismatch, txn.Amount.String(), built.TotalAmount.String())
		}

		affected, err := txnRepo.MarkSuccess(reference, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			result.Outcome = constants.CallbackOutcomeAlreadyProcessed
			return nil
		}

		if err := s.orderRepo.WithTx(tx).Create(built, items); err != nil {
			return err
		}

		variantRepo := s.variantRepo.WithTx(tx)
		for _, item := range items {
			affected, err := variantRepo.DecrementStock(item.VariantID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: variant %d", ErrOutOfStock, item.VariantID)
			}
		}

		if err := cartRepo.ClearItems(cart.ID); err != nil {
			return err
		}
		if err := txnRepo.Delete(txn.ID); err != nil {
			return err
		}
		if err := txnRepo.CreateTombstone(&models.PaymentReferenceTombstone{
			Reference:  reference,
			OrderID:    built.ID,
			ConsumedAt: now,
		}); err != nil {
			return err
		}

		built.Items = items
		order = built
		result.Outcome = constants.CallbackOutcomeProcessed
		result.OrderID = built.ID
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownReference):
			log.Warnw("payment_callback_unknown_reference")
		case errors.Is(err, ErrOrphanedTransaction):
			log.Errorw("payment_callback_orphaned_transaction", "error", err)
		case errors.Is(err, ErrOutOfStock):
			log.Errorw("payment_callback_stock_insufficient", "error", err)
		case errors.Is(err, ErrPaymentAmountMismatch), errors.Is(err, ErrPaymentCurrencyMismatch):
			log.Warnw("payment_callback_amount_mismatch", "error", err)
		default:
			log.Errorw("payment_callback_apply_failed", "error", err)
		}
		return nil, err
	}

	if order != nil {
		s.enqueueOrderPaidAsync(order, log)
	}
	log.Infow("payment_callback_processed",
		"outcome", result.Outcome,
		"order_id", result.OrderID,
	)
	return result, nil
}

func checkCallbackAmount(txn *models.PaymentTransaction, cb *opay.Callback) error {
	if currency := strings.ToUpper(strings.TrimSpace(cb.Currency)); currency != "" && txn.Currency != "" &&
		currency != strings.ToUpper(strings.TrimSpace(txn.Currency)) {
		return fmt.Errorf("%w: stored=%s callback=%s", ErrPaymentCurrencyMismatch, txn.Currency, currency)
	}
	raw := strings.TrimSpace(cb.Amount)
	if raw == "" {
		return nil
	}
	minor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %q", ErrPaymentAmountMismatch, raw)
	}
	if minor != txn.Amount.MinorUnits() {
		return fmt.Errorf("%w: stored=%d callback=%d", ErrPaymentAmountMismatch, txn.Amount.MinorUnits(), minor)
	}
	return nil
}

// buildOrderFromTransaction 使用流水快照与购物车生成订单，总额 = Σ实际单价×数量 + 运费
func buildOrderFromTransaction(txn *models.PaymentTransaction, cart *models.Cart, now time.Time) (*models.Order, []models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(cart.Items))
	itemsTotal := decimal.Zero
	for _, line := range cart.Items {
		if line.Variant == nil {
			return nil, nil, fmt.Errorf("%w: cart item %d variant missing", ErrOrphanedTransaction, line.ID)
		}
		name := ""
		if line.Variant.Product != nil {
			name = line.Variant.Product.Name
		}
		price := line.Variant.EffectivePrice()
		items = append(items, models.OrderItem{
			ProductID: line.Variant.ProductID,
			VariantID: line.VariantID,
			Name:      name,
			SizeML:    line.Variant.SizeML,
			Quantity:  line.Quantity,
			Price:     price,
			CreatedAt: now,
		})
		itemsTotal = itemsTotal.Add(price.Decimal.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	paidAt := now
	order := &models.Order{
		UserID:           txn.UserID,
		Name:             txn.Name,
		Email:            txn.Email,
		CustomerPhone:    txn.CustomerPhone,
		Governorate:      txn.Governorate,
		City:             txn.City,
		Street:           txn.Street,
		BuildingNumber:   txn.BuildingNumber,
		FloorNumber:      txn.FloorNumber,
		ApartmentNumber:  txn.ApartmentNumber,
		Landmark:         txn.Landmark,
		PaymentReference: txn.Reference,
		ShippingCost:     txn.ShippingCost,
		TotalAmount:      models.NewMoneyFromDecimal(itemsTotal.Add(txn.ShippingCost.Decimal)),
		PaymentStatus:    constants.OrderPaymentStatusPaid,
		OrderStatus:      constants.OrderStatusProcessing,
		PaidAt:           &paidAt,
	}
	return order, items, nil
}

func (s *PaymentService) enqueueOrderPaidAsync(order *models.Order, log *zap.SugaredLogger) {
	if !s.queueClient.Enabled() {
		log.Infow("payment_post_commit_tasks_skipped", "order_id", order.ID, "reason", "queue_disabled")
		return
	}
	if err := s.queueClient.EnqueueOrderPaid(queue.OrderPaidPayload{
		OrderID:   order.ID,
		Reference: order.PaymentReference,
	}, asynq.MaxRetry(3)); err != nil {
		log.Warnw("payment_enqueue_order_paid_failed", "order_id", order.ID, "error", err)
	}
	if err := s.queueClient.EnqueueTombstonePurge(queue.TombstonePurgePayload{
		Reference: order.PaymentReference,
	}, s.tombstoneTTL()); err != nil {
		log.Warnw("payment_enqueue_tombstone_purge_failed", "order_id", order.ID, "error", err)
	}
}

func (s *PaymentService) tombstoneTTL() time.Duration {
	if s.cfg == nil || s.cfg.Checkout.TombstoneTTLHours <= 0 {
		return defaultTombstoneTTL
	}
	return time.Duration(s.cfg.Checkout.TombstoneTTLHours) * time.Hour
}

// PurgeTombstone 清理超过保留期的已消费参考号
func (s *PaymentService) PurgeTombstone(reference string) (int64, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return 0, nil
	}
	return s.txnRepo.DeleteTombstonesBefore(reference, time.Now().Add(-s.tombstoneTTL()))
}

// ExpirePending 将仍处于 PENDING 的流水标记为 EXPIRED，之后的 SUCCESS 回调仍会被处理
func (s *PaymentService) ExpirePending(reference string) (bool, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return false, nil
	}
	affected, err := s.txnRepo.ExpireIfPending(reference, time.Now())
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpireStalePending 批量将超时未支付的流水标记为 EXPIRED，返回处理条数
func (s *PaymentService) ExpireStalePending(now time.Time, batchSize int) (int, error) {
	if s.cfg == nil || s.cfg.Checkout.PendingExpireMinutes <= 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	before := now.Add(-time.Duration(s.cfg.Checkout.PendingExpireMinutes) * time.Minute)
	stale, _, err := s.txnRepo.List(repository.PaymentTransactionListFilter{
		Page:          1,
		PageSize:      batchSize,
		Status:        constants.PaymentTransactionStatusPending,
		CreatedBefore: &before,
	})
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, txn := range stale {
		affected, err := s.txnRepo.ExpireIfPending(txn.Reference, now)
		if err != nil {
			return expired, err
		}
		if affected > 0 {
			expired++
		}
	}
	if expired > 0 {
		paymentLogger().Infow("payment_pending_expired", "count", expired)
	}
	return expired, nil
}

// ListTransactions 后台查询支付流水（用于人工核查孤立流水）
func (s *PaymentService) ListTransactions(filter repository.PaymentTransactionListFilter) ([]models.PaymentTransaction, int64, error) {
	return s.txnRepo.List(filter)
}

// DeleteTransaction 后台删除支付流水
func (s *PaymentService) DeleteTransaction(id uint) error {
	txn, err := s.txnRepo.GetByID(id)
	if err != nil {
		return err
	}
	if txn == nil {
		return ErrPaymentTransactionNotFound
	}
	if err := s.txnRepo.Delete(id); err != nil {
		return err
	}
	paymentLogger("reference", txn.Reference, "status", txn.Status).Warnw("payment_transaction_deleted_manually")
	return nil
}

func callbackMetricOutcome(result *CallbackResult, err error) string {
	if err == nil {
		if result == nil {
			return "unknown"
		}
		return result.Outcome
	}
	switch {
	case errors.Is(err, ErrMalformedCallback):
		return "malformed"
	case errors.Is(err, ErrCallbackSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, ErrOrphanedTransaction):
		return "orphaned"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrPaymentAmountMismatch), errors.Is(err, ErrPaymentCurrencyMismatch):
		return "amount_mismatch"
	default:
		return "error"
	}
}
