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
	"github.com/emarket-next/internal/metrics"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/payment/opay"
	"github.com/emarket-next/internal/queue"
	"github.com/emarket-next/internal/repository"
)

// CheckoutService 结账发起服务
type CheckoutService struct {
	cfg         *config.Config
	cartRepo    repository.CartRepository
	txnRepo     repository.PaymentTransactionRepository
	shippingSvc *ShippingService
	gateway     CashierGateway
	queueClient *queue.Client
	metrics     *metrics.ShopMetrics
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(cfg *config.Config, cartRepo repository.CartRepository, txnRepo repository.PaymentTransactionRepository, shippingSvc *ShippingService, gateway CashierGateway, queueClient *queue.Client, shopMetrics *metrics.ShopMetrics) *CheckoutService {
	return &CheckoutService{
		cfg:         cfg,
		cartRepo:    cartRepo,
		txnRepo:     txnRepo,
		shippingSvc: shippingSvc,
		gateway:     gateway,
		queueClient: queueClient,
		metrics:     shopMetrics,
	}
}

// CheckoutInput 结账收货与联系信息
type CheckoutInput struct {
	Name            string
	Email           string
	CustomerPhone   string
	Governorate     string
	City            string
	Street          string
	BuildingNumber  string
	FloorNumber     string
	ApartmentNumber string
	Landmark        string
}

// CheckoutResult 结账结果
type CheckoutResult struct {
	Reference    string       `json:"reference"`
	RedirectURL  string       `json:"redirect_url"`
	Amount       models.Money `json:"amount"`
	ShippingCost models.Money `json:"shipping_cost"`
	Currency     string       `json:"currency"`
}

// Initiate 发起结账：计算总额、创建收银台，网关成功后才落库待支付流水
func (s *CheckoutService) Initiate(ctx context.Context, identity CartIdentity, input CheckoutInput) (*CheckoutResult, error) {
	result, err := s.initiate(ctx, identity, input)
	s.metrics.IncCheckout(checkoutMetricResult(err))
	return result, err
}

func (s *CheckoutService) initiate(ctx context.Context, identity CartIdentity, input CheckoutInput) (*CheckoutResult, error) {
	if identity.Empty() {
		return nil, ErrEmptyCart
	}
	cart, err := findCart(s.cartRepo, identity)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		cart, err = s.cartRepo.GetWithItems(cart.ID)
		if err != nil {
			return nil, err
		}
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}
	input = normalizeCheckoutInput(input)
	if input.CustomerPhone == "" {
		return nil, ErrMissingContact
	}
	for _, item := range cart.Items {
		if item.Variant == nil {
			return nil, ErrVariantNotFound
		}
		if item.Quantity > item.Variant.Stock {
			return nil, ErrOutOfStock
		}
	}

	shipping, err := s.shippingSvc.Resolve(input.Governorate)
	if err != nil {
		return nil, err
	}
	subtotal := cart.Subtotal()
	total := models.NewMoneyFromDecimal(subtotal.Decimal.Add(shipping.Cost.Decimal))

	currency := s.gatewayCurrency()
	reference := opay.NewReference()
	log := paymentLogger(
		"reference", reference,
		"cart_id", cart.ID,
		"user_id", identity.UserID,
		"amount", total.String(),
	)

	started := time.Now()
	cashier, err := s.gateway.CreateCashier(ctx, opay.CreateInput{
		Reference:   reference,
		AmountMinor: total.MinorUnits(),
		Currency:    currency,
		ReturnURL:   joinURL(s.cfg.Checkout.FrontendURL, "/payment/return/"),
		CancelURL:   joinURL(s.cfg.Checkout.FrontendURL, "/payment/cancel/"),
		CallbackURL: joinURL(s.cfg.Checkout.BackendURL, "/api/v1/payments/opay/callback"),
		UserInfo:    buildPayerInfo(identity, input),
		Products:    buildGatewayProducts(cart),
	})
	s.metrics.ObserveGateway("cashier_create", time.Since(started))
	if err != nil {
		log.Warnw("checkout_gateway_failed", "error", err)
		return nil, mapGatewayError(err)
	}
	if cashier.Reference != "" {
		reference = cashier.Reference
	}

	cartID := cart.ID
	txn := &models.PaymentTransaction{
		Reference:       reference,
		CartID:          &cartID,
		Status:          constants.PaymentTransactionStatusPending,
		Amount:          total,
		ShippingCost:    shipping.Cost,
		Currency:        currency,
		CashierURL:      cashier.CashierURL,
		Name:            input.Name,
		Email:           input.Email,
		CustomerPhone:   input.CustomerPhone,
		Governorate:     input.Governorate,
		City:            input.City,
		Street:          input.Street,
		BuildingNumber:  input.BuildingNumber,
		FloorNumber:     input.FloorNumber,
		ApartmentNumber: input.ApartmentNumber,
		Landmark:        input.Landmark,
	}
	if identity.UserID > 0 {
		userID := identity.UserID
		txn.UserID = &userID
	}
	if err := s.txnRepo.Create(txn); err != nil {
		log.Errorw("checkout_transaction_persist_failed", "error", err)
		return nil, err
	}

	if s.queueClient.Enabled() {
		delay := time.Duration(s.cfg.Checkout.PendingExpireMinutes) * time.Minute
		if delay > 0 {
			if err := s.queueClient.EnqueuePaymentExpire(queue.PaymentExpirePayload{Reference: reference}, delay); err != nil {
				log.Warnw("checkout_enqueue_expire_failed", "error", err)
			}
		}
	}
	log.Infow("checkout_initiated", "shipping_cost", shipping.Cost.String())

	return &CheckoutResult{
		Reference:    reference,
		RedirectURL:  cashier.CashierURL,
		Amount:       total,
		ShippingCost: shipping.Cost,
		Currency:     currency,
	}, nil
}

func (s *CheckoutService) gatewayCurrency() string {
	currency := strings.ToUpper(strings.TrimSpace(s.cfg.OPay.Currency))
	if currency == "" {
		return "EGP"
	}
	return currency
}

func normalizeCheckoutInput(input CheckoutInput) CheckoutInput {
	return CheckoutInput{
		Name:            strings.TrimSpace(input.Name),
		Email:           strings.TrimSpace(input.Email),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		Governorate:     strings.TrimSpace(input.Governorate),
		City:            strings.TrimSpace(input.City),
		Street:          strings.TrimSpace(input.Street),
		BuildingNumber:  strings.TrimSpace(input.BuildingNumber),
		FloorNumber:     strings.TrimSpace(input.FloorNumber),
		ApartmentNumber: strings.TrimSpace(input.ApartmentNumber),
		Landmark:        strings.TrimSpace(input.Landmark),
	}
}

func buildPayerInfo(identity CartIdentity, input CheckoutInput) opay.UserInfo {
	userID := "guest"
	if identity.UserID > 0 {
		userID = strconv.FormatUint(uint64(identity.UserID), 10)
	}
	return opay.UserInfo{
		Email:  input.Email,
		ID:     userID,
		Mobile: input.CustomerPhone,
		Name:   input.Name,
	}
}

func buildGatewayProducts(cart *models.Cart) []opay.Product {
	products := make([]opay.Product, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Variant == nil {
			continue
		}
		name := ""
		description := ""
		productID := item.Variant.ProductID
		if item.Variant.Product != nil {
			name = item.Variant.Product.Name
			description = strings.TrimSpace(item.Variant.Product.Description)
		}
		if description == "" {
			description = constants.DefaultProductDescription
		}
		products = append(products, opay.Product{
			ProductID:   strconv.FormatUint(uint64(productID), 10),
			Name:        name,
			Description: description,
			Price:       strconv.FormatInt(item.Variant.EffectivePrice().MinorUnits(), 10),
			Quantity:    item.Quantity,
		})
	}
	return products
}

func mapGatewayError(err error) error {
	switch {
	case errors.Is(err, opay.ErrConfigInvalid):
		return fmt.Errorf("%w: %w", ErrGatewayNotConfigured, err)
	case errors.Is(err, opay.ErrResponseInvalid):
		return fmt.Errorf("%w: %w", ErrGatewayResponseInvalid, err)
	default:
		return fmt.Errorf("%w: %w", ErrGatewayRequestFailed, err)
	}
}

// GatewayMessage 提取网关返回的可读错误信息
func GatewayMessage(err error) string {
	var apiErr *opay.APIError
	if errors.As(err, &apiErr) {
		return strings.TrimSpace(apiErr.Message)
	}
	return ""
}

func checkoutMetricResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrMissingContact):
		return "missing_contact"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrNoShippingConfigured):
		return "no_shipping"
	case errors.Is(err, ErrGatewayNotConfigured), errors.Is(err, ErrGatewayRequestFailed), errors.Is(err, ErrGatewayResponseInvalid):
		return "gateway_error"
	default:
		return "error"
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}
