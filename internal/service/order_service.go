package service

import (
	"strings"

	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"
)

// OrderService 订单查询与履约状态服务
type OrderService struct {
	orderRepo repository.OrderRepository
	txnRepo   repository.PaymentTransactionRepository
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, txnRepo repository.PaymentTransactionRepository) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		txnRepo:   txnRepo,
	}
}

// OrderReferenceStatus 按参考号查询的支付结果（游客回跳页使用，不含收货信息）
type OrderReferenceStatus struct {
	Reference     string        `json:"reference"`
	OrderID       uint          `json:"order_id,omitempty"`
	PaymentStatus string        `json:"payment_status"`
	OrderStatus   string        `json:"order_status,omitempty"`
	TotalAmount   *models.Money `json:"total_amount,omitempty"`
}

var orderStatusNext = map[string]string{
	constants.OrderStatusProcessing: constants.OrderStatusShipped,
	constants.OrderStatusShipped:    constants.OrderStatusDelivered,
}

func isOrderStatusKnown(status string) bool {
	switch status {
	case constants.OrderStatusProcessing, constants.OrderStatusShipped, constants.OrderStatusDelivered:
		return true
	default:
		return false
	}
}

func canTransitOrderStatus(current, target string) bool {
	if !isOrderStatusKnown(target) {
		return false
	}
	return current == target || orderStatusNext[current] == target
}

// ListUserOrders 用户订单列表
func (s *OrderService) ListUserOrders(userID uint, page, pageSize int) ([]models.Order, int64, error) {
	if userID == 0 {
		return nil, 0, ErrNotFound
	}
	return s.orderRepo.ListByUser(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
	})
}

// GetUserOrder 获取用户自己的订单
func (s *OrderService) GetUserOrder(userID, orderID uint) (*models.Order, error) {
	if userID == 0 || orderID == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByReference 按参考号查询支付结果；订单未生成时返回流水状态
func (s *OrderService) GetOrderByReference(reference string) (*OrderReferenceStatus, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if order != nil {
		total := order.TotalAmount
		return &OrderReferenceStatus{
			Reference:     reference,
			OrderID:       order.ID,
			PaymentStatus: order.PaymentStatus,
			OrderStatus:   order.OrderStatus,
			TotalAmount:   &total,
		}, nil
	}
	txn, err := s.txnRepo.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrOrderNotFound
	}
	amount := txn.Amount
	return &OrderReferenceStatus{
		Reference:     reference,
		PaymentStatus: txn.Status,
		TotalAmount:   &amount,
	}, nil
}

// ListOrders 后台订单列表
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// GetOrder 后台订单详情
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateOrderStatus 履约状态只允许 Processing→Shipped→Delivered 或保持不变
func (s *OrderService) UpdateOrderStatus(id uint, status string) (*models.Order, error) {
	order, err := s.GetOrder(id)
	if err != nil {
		return nil, err
	}
	target := normalizeOrderStatus(status)
	if !canTransitOrderStatus(order.OrderStatus, target) {
		return nil, ErrOrderStatusInvalid
	}
	if order.OrderStatus == target {
		return order, nil
	}
	if err := s.orderRepo.UpdateStatus(order.ID, target); err != nil {
		return nil, err
	}
	logger.Infow("order_status_updated", "order_id", order.ID, "from", order.OrderStatus, "to", target)
	order.OrderStatus = target
	return order, nil
}

// DeleteOrder 删除订单
func (s *OrderService) DeleteOrder(id uint) error {
	if _, err := s.GetOrder(id); err != nil {
		return err
	}
	return s.orderRepo.Delete(id)
}

func normalizeOrderStatus(status string) string {
	trimmed := strings.TrimSpace(status)
	for _, known := range []string{constants.OrderStatusProcessing, constants.OrderStatusShipped, constants.OrderStatusDelivered} {
		if strings.EqualFold(trimmed, known) {
			return known
		}
	}
	return trimmed
}
