package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/payment/opay"
)

type fakeCashierGateway struct {
	calls int
	last  opay.CreateInput
	err   error
}

func (g *fakeCashierGateway) CreateCashier(_ context.Context, input opay.CreateInput) (*opay.CashierResult, error) {
	g.calls++
	g.last = input
	if g.err != nil {
		return nil, g.err
	}
	return &opay.CashierResult{
		Reference:  input.Reference,
		CashierURL: "https://cashier.example/" + input.Reference,
	}, nil
}

func (f *shopFixture) checkoutService(gateway CashierGateway) *CheckoutService {
	shipping := NewShippingService(f.shippingRepo, "60.00")
	return NewCheckoutService(f.cfg, f.cartRepo, f.txnRepo, shipping, gateway, nil, nil)
}

// seedCheckoutCart 两件 200.00 的商品，运费 60.00，总额 460.00
func seedCheckoutCart(t *testing.T, f *shopFixture, sessionKey string) (*models.Cart, *models.ProductVariant) {
	t.Helper()
	variant := createVariant(t, f.db, "santal-"+sessionKey, "200.00", nil, 5)
	createShipping(t, f.db, "Cairo", "60.00")
	svc := f.cartService()
	cart, err := svc.GetOrCreateCart(guestIdentity(sessionKey))
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if _, err := svc.AddItem(cart, variant.ID, 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	return cart, variant
}

func validCheckoutInput() CheckoutInput {
	return CheckoutInput{
		Name:          " Mona ",
		Email:         "mona@example.com",
		CustomerPhone: " 01000000000 ",
		Governorate:   "Cairo",
		City:          "Nasr City",
		Street:        "Abbas El Akkad",
	}
}

func TestCheckoutInitiatePersistsPendingTransaction(t *testing.T) {
	f := newShopFixture(t)
	cart, _ := seedCheckoutCart(t, f, "guest-checkout")
	gateway := &fakeCashierGateway{}

	result, err := f.checkoutService(gateway).Initiate(context.Background(), guestIdentity("guest-checkout"), validCheckoutInput())
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if result.Amount.String() != "460.00" || result.ShippingCost.String() != "60.00" {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if result.RedirectURL == "" || result.Reference == "" {
		t.Fatalf("missing redirect or reference: %+v", result)
	}
	if gateway.last.AmountMinor != 46000 || gateway.last.Currency != "EGP" {
		t.Fatalf("unexpected gateway amount: %+v", gateway.last)
	}
	if gateway.last.CallbackURL != "https://api.example.com/api/v1/payments/opay/callback" {
		t.Fatalf("unexpected callback url: %s", gateway.last.CallbackURL)
	}
	if gateway.last.ReturnURL != "https://shop.example.com/payment/return/" {
		t.Fatalf("unexpected return url: %s", gateway.last.ReturnURL)
	}
	if gateway.last.UserInfo.ID != "guest" || len(gateway.last.Products) != 1 {
		t.Fatalf("unexpected payer/products: %+v", gateway.last)
	}
	if gateway.last.Products[0].Price != "20000" || gateway.last.Products[0].Description != constants.DefaultProductDescription {
		t.Fatalf("unexpected product line: %+v", gateway.last.Products[0])
	}

	txn, err := f.txnRepo.GetByReference(result.Reference)
	if err != nil || txn == nil {
		t.Fatalf("transaction not persisted: %v", err)
	}
	if txn.Status != constants.PaymentTransactionStatusPending || txn.Amount.String() != "460.00" {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if txn.CartID == nil || *txn.CartID != cart.ID || txn.CustomerPhone != "01000000000" || txn.Name != "Mona" {
		t.Fatalf("transaction snapshot mismatch: %+v", txn)
	}
}

func TestCheckoutEmptyCartCreatesNothing(t *testing.T) {
	f := newShopFixture(t)
	createShipping(t, f.db, "Cairo", "60.00")
	if _, err := f.cartService().GetOrCreateCart(guestIdentity("guest-empty")); err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	gateway := &fakeCashierGateway{}

	_, err := f.checkoutService(gateway).Initiate(context.Background(), guestIdentity("guest-empty"), validCheckoutInput())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called for an empty cart")
	}
	if n := countRows(t, f.db, &models.PaymentTransaction{}); n != 0 {
		t.Fatalf("expected no transaction, got %d", n)
	}
}

func TestCheckoutMissingPhone(t *testing.T) {
	f := newShopFixture(t)
	seedCheckoutCart(t, f, "guest-phone")
	gateway := &fakeCashierGateway{}
	input := validCheckoutInput()
	input.CustomerPhone = "   "

	_, err := f.checkoutService(gateway).Initiate(context.Background(), guestIdentity("guest-phone"), input)
	if !errors.Is(err, ErrMissingContact) {
		t.Fatalf("expected ErrMissingContact, got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called without a phone")
	}
}

func TestCheckoutRejectsQuantityAboveStock(t *testing.T) {
	f := newShopFixture(t)
	_, variant := seedCheckoutCart(t, f, "guest-oversell")
	if err := f.db.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("stock", 1).Error; err != nil {
		t.Fatalf("lower stock failed: %v", err)
	}
	_, err := f.checkoutService(&fakeCashierGateway{}).Initiate(context.Background(), guestIdentity("guest-oversell"), validCheckoutInput())
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func TestCheckoutWithoutShippingSettings(t *testing.T) {
	f := newShopFixture(t)
	variant := createVariant(t, f.db, "no-shipping", "100.00", nil, 5)
	svc := f.cartService()
	cart, _ := svc.GetOrCreateCart(guestIdentity("guest-noship"))
	if _, err := svc.AddItem(cart, variant.ID, 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	_, err := f.checkoutService(&fakeCashierGateway{}).Initiate(context.Background(), guestIdentity("guest-noship"), validCheckoutInput())
	if !errors.Is(err, ErrNoShippingConfigured) {
		t.Fatalf("expected ErrNoShippingConfigured, got %v", err)
	}
}

func TestCheckoutGatewayFailurePersistsNothing(t *testing.T) {
	f := newShopFixture(t)
	seedCheckoutCart(t, f, "guest-gateway")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"02001","message":"merchant not active"}`))
	}))
	defer server.Close()
	f.cfg.OPay.BaseURL = server.URL

	_, err := f.checkoutService(NewOpayGateway(f.cfg.OPay)).Initiate(context.Background(), guestIdentity("guest-gateway"), validCheckoutInput())
	if !errors.Is(err, ErrGatewayResponseInvalid) {
		t.Fatalf("expected ErrGatewayResponseInvalid, got %v", err)
	}
	if msg := GatewayMessage(err); msg != "merchant not active" {
		t.Fatalf("gateway message not preserved: %q", msg)
	}
	if n := countRows(t, f.db, &models.PaymentTransaction{}); n != 0 {
		t.Fatalf("expected no transaction after gateway failure, got %d", n)
	}
}

func TestCheckoutGatewayTransportFailure(t *testing.T) {
	f := newShopFixture(t)
	seedCheckoutCart(t, f, "guest-transport")
	gateway := &fakeCashierGateway{err: opay.ErrRequestFailed}

	_, err := f.checkoutService(gateway).Initiate(context.Background(), guestIdentity("guest-transport"), validCheckoutInput())
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "request failed") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
