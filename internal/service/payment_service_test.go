package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/payment/opay"
)

// initiatePaidFlow 构造一笔 460.00 的待支付流水，规格库存为 5
func initiatePaidFlow(t *testing.T, f *shopFixture, sessionKey string) (string, *models.Cart, *models.ProductVariant) {
	t.Helper()
	cart, variant := seedCheckoutCart(t, f, sessionKey)
	result, err := f.checkoutService(&fakeCashierGateway{}).Initiate(context.Background(), guestIdentity(sessionKey), validCheckoutInput())
	if err != nil {
		t.Fatalf("initiate checkout failed: %v", err)
	}
	return result.Reference, cart, variant
}

func successCallback(reference string) *opay.Callback {
	return &opay.Callback{
		Reference:     reference,
		Status:        "SUCCESS",
		Amount:        "46000",
		Currency:      "EGP",
		TransactionID: "TX-" + reference,
	}
}

func TestHandleOpayCallbackSuccessEndToEnd(t *testing.T) {
	f := newShopFixture(t)
	reference, cart, variant := initiatePaidFlow(t, f, "guest-e2e")

	result, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil {
		t.Fatalf("handle callback failed: %v", err)
	}
	if result.Outcome != constants.CallbackOutcomeProcessed || result.OrderID == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	order, err := f.orderRepo.GetByID(result.OrderID)
	if err != nil || order == nil {
		t.Fatalf("order not created: %v", err)
	}
	if order.TotalAmount.String() != "460.00" || order.ShippingCost.String() != "60.00" {
		t.Fatalf("unexpected order totals: total=%s shipping=%s", order.TotalAmount.String(), order.ShippingCost.String())
	}
	if order.PaymentStatus != constants.OrderPaymentStatusPaid || order.OrderStatus != constants.OrderStatusProcessing {
		t.Fatalf("unexpected order status: %+v", order)
	}
	if order.PaymentReference != reference || order.CustomerPhone != "01000000000" || order.Governorate != "Cairo" {
		t.Fatalf("order snapshot mismatch: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 || order.Items[0].Price.String() != "200.00" {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}

	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 3 {
		t.Fatalf("stock want 3 got %d", stock)
	}
	emptied, _ := f.cartRepo.GetWithItems(cart.ID)
	if emptied == nil || len(emptied.Items) != 0 {
		t.Fatalf("cart should be emptied")
	}
	if txn, _ := f.txnRepo.GetByReference(reference); txn != nil {
		t.Fatalf("transaction should be deleted, got %+v", txn)
	}
	tombstone, err := f.txnRepo.GetTombstone(reference)
	if err != nil || tombstone == nil || tombstone.OrderID != order.ID {
		t.Fatalf("tombstone missing: %v %+v", err, tombstone)
	}
}

func TestHandleOpayCallbackDuplicateSuccessIsIdempotent(t *testing.T) {
	f := newShopFixture(t)
	reference, _, variant := initiatePaidFlow(t, f, "guest-dup")
	svc := f.paymentService()

	first, err := svc.HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil {
		t.Fatalf("first callback failed: %v", err)
	}
	second, err := svc.HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil {
		t.Fatalf("duplicate callback failed: %v", err)
	}
	if second.Outcome != constants.CallbackOutcomeAlreadyProcessed {
		t.Fatalf("duplicate outcome want already_processed got %s", second.Outcome)
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("duplicate should report the same order: %d vs %d", second.OrderID, first.OrderID)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 1 {
		t.Fatalf("expected exactly one order, got %d", n)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 3 {
		t.Fatalf("stock must be decremented once, got %d", stock)
	}
}

func TestHandleOpayCallbackConcurrentDuplicates(t *testing.T) {
	f := newShopFixture(t)
	reference, _, variant := initiatePaidFlow(t, f, "guest-race")
	svc := f.paymentService()

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.HandleOpayCallback(context.Background(), successCallback(reference))
			if err != nil {
				errs <- err
				return
			}
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent callback failed: %v", err)
	}
	processed := 0
	for outcome := range outcomes {
		if outcome == constants.CallbackOutcomeProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("expected exactly one processed callback, got %d", processed)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 1 {
		t.Fatalf("expected one order, got %d", n)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 3 {
		t.Fatalf("stock want 3 got %d", stock)
	}
}

func TestHandleOpayCallbackNonSuccessOnlyUpdatesStatus(t *testing.T) {
	f := newShopFixture(t)
	reference, cart, variant := initiatePaidFlow(t, f, "guest-fail")
	svc := f.paymentService()

	result, err := svc.HandleOpayCallback(context.Background(), &opay.Callback{Reference: reference, Status: "FAIL"})
	if err != nil {
		t.Fatalf("handle callback failed: %v", err)
	}
	if result.Outcome != constants.CallbackOutcomeIgnored {
		t.Fatalf("outcome want ignored got %s", result.Outcome)
	}
	txn, _ := f.txnRepo.GetByReference(reference)
	if txn == nil || txn.Status != "FAIL" || txn.LastCallbackAt == nil {
		t.Fatalf("status not updated: %+v", txn)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 0 {
		t.Fatalf("no order expected, got %d", n)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
	full, _ := f.cartRepo.GetWithItems(cart.ID)
	if full == nil || len(full.Items) != 1 {
		t.Fatalf("cart must be untouched")
	}

	// 之后到达的 SUCCESS 仍然生效
	later, err := svc.HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil || later.Outcome != constants.CallbackOutcomeProcessed {
		t.Fatalf("later success should be processed: %v %+v", err, later)
	}
}

func TestHandleOpayCallbackUnknownReference(t *testing.T) {
	f := newShopFixture(t)
	_, _, variant := initiatePaidFlow(t, f, "guest-unknown")

	_, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback("NOPE"))
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 0 {
		t.Fatalf("no order expected, got %d", n)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
}

func TestHandleOpayCallbackAfterPurgeIsUnknown(t *testing.T) {
	f := newShopFixture(t)
	reference, _, _ := initiatePaidFlow(t, f, "guest-purge")
	svc := f.paymentService()
	if _, err := svc.HandleOpayCallback(context.Background(), successCallback(reference)); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	// 未过保留期不删除
	if removed, err := svc.PurgeTombstone(reference); err != nil || removed != 0 {
		t.Fatalf("fresh tombstone must be kept: removed=%d err=%v", removed, err)
	}
	old := time.Now().Add(-100 * time.Hour)
	if err := f.db.Model(&models.PaymentReferenceTombstone{}).Where("reference = ?", reference).Update("consumed_at", old).Error; err != nil {
		t.Fatalf("age tombstone failed: %v", err)
	}
	if removed, err := svc.PurgeTombstone(reference); err != nil || removed != 1 {
		t.Fatalf("expired tombstone should be purged: removed=%d err=%v", removed, err)
	}
	if _, err := svc.HandleOpayCallback(context.Background(), successCallback(reference)); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference after purge, got %v", err)
	}
}

func TestHandleOpayCallbackOrphanedTransaction(t *testing.T) {
	f := newShopFixture(t)
	reference, cart, _ := initiatePaidFlow(t, f, "guest-orphan")
	if err := f.cartRepo.ClearItems(cart.ID); err != nil {
		t.Fatalf("clear cart failed: %v", err)
	}

	_, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback(reference))
	if !errors.Is(err, ErrOrphanedTransaction) {
		t.Fatalf("expected ErrOrphanedTransaction, got %v", err)
	}
	txn, _ := f.txnRepo.GetByReference(reference)
	if txn == nil || txn.Status != constants.PaymentTransactionStatusPending {
		t.Fatalf("orphaned transaction must stay pending: %+v", txn)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 0 {
		t.Fatalf("no order expected, got %d", n)
	}
}

func TestHandleOpayCallbackOutOfStockRollsBack(t *testing.T) {
	f := newShopFixture(t)
	reference, cart, variant := initiatePaidFlow(t, f, "guest-sold-out")
	if err := f.db.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("stock", 1).Error; err != nil {
		t.Fatalf("lower stock failed: %v", err)
	}

	_, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback(reference))
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	txn, _ := f.txnRepo.GetByReference(reference)
	if txn == nil || txn.Status != constants.PaymentTransactionStatusPending {
		t.Fatalf("transaction must roll back to pending: %+v", txn)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 0 {
		t.Fatalf("order insert must roll back, got %d", n)
	}
	full, _ := f.cartRepo.GetWithItems(cart.ID)
	if full == nil || len(full.Items) != 1 {
		t.Fatalf("cart must be untouched after rollback")
	}
}

func TestHandleOpayCallbackAmountMismatch(t *testing.T) {
	f := newShopFixture(t)
	reference, _, _ := initiatePaidFlow(t, f, "guest-amount")
	cb := successCallback(reference)
	cb.Amount = "100"

	_, err := f.paymentService().HandleOpayCallback(context.Background(), cb)
	if !errors.Is(err, ErrPaymentAmountMismatch) {
		t.Fatalf("expected ErrPaymentAmountMismatch, got %v", err)
	}
	cb = successCallback(reference)
	cb.Currency = "NGN"
	if _, err := f.paymentService().HandleOpayCallback(context.Background(), cb); !errors.Is(err, ErrPaymentCurrencyMismatch) {
		t.Fatalf("expected ErrPaymentCurrencyMismatch, got %v", err)
	}
}

func TestHandleOpayCallbackSignature(t *testing.T) {
	f := newShopFixture(t)
	f.cfg.OPay.VerifySignature = true
	reference, _, _ := initiatePaidFlow(t, f, "guest-signed")
	svc := f.paymentService()

	unsigned := successCallback(reference)
	unsigned.Signature = "deadbeef"
	if _, err := svc.HandleOpayCallback(context.Background(), unsigned); !errors.Is(err, ErrCallbackSignatureInvalid) {
		t.Fatalf("expected ErrCallbackSignatureInvalid, got %v", err)
	}

	signed := successCallback(reference)
	signed.Signature = opay.Sign(f.cfg.OPay.SecretKey, opay.SignaturePayload(signed))
	result, err := svc.HandleOpayCallback(context.Background(), signed)
	if err != nil || result.Outcome != constants.CallbackOutcomeProcessed {
		t.Fatalf("signed callback should be processed: %v %+v", err, result)
	}
}

func TestHandleOpayCallbackBodyMalformed(t *testing.T) {
	f := newShopFixture(t)
	svc := f.paymentService()
	for _, body := range []string{`not json`, `{"type":"transaction-status"}`, `{"payload":{"status":"SUCCESS"}}`} {
		if _, err := svc.HandleOpayCallbackBody(context.Background(), []byte(body)); !errors.Is(err, ErrMalformedCallback) {
			t.Fatalf("body %q: expected ErrMalformedCallback, got %v", body, err)
		}
	}
}

func TestHandleOpayCallbackBodyProcesses(t *testing.T) {
	f := newShopFixture(t)
	reference, _, _ := initiatePaidFlow(t, f, "guest-body")
	body := `{"type":"transaction-status","payload":{"reference":"` + reference + `","status":"success","amount":"46000","currency":"EGP"}}`

	result, err := f.paymentService().HandleOpayCallbackBody(context.Background(), []byte(body))
	if err != nil || result.Outcome != constants.CallbackOutcomeProcessed {
		t.Fatalf("body callback should be processed: %v %+v", err, result)
	}
}

func TestExpirePendingKeepsLaterSuccess(t *testing.T) {
	f := newShopFixture(t)
	reference, _, _ := initiatePaidFlow(t, f, "guest-expire")
	svc := f.paymentService()

	expired, err := svc.ExpirePending(reference)
	if err != nil || !expired {
		t.Fatalf("expire pending failed: %v %v", expired, err)
	}
	again, err := svc.ExpirePending(reference)
	if err != nil || again {
		t.Fatalf("second expire must be a noop: %v %v", again, err)
	}
	result, err := svc.HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil || result.Outcome != constants.CallbackOutcomeProcessed {
		t.Fatalf("success after expiry should be processed: %v %+v", err, result)
	}
}

func TestHandleOpayCallbackAfterLoginMergeStillProcesses(t *testing.T) {
	f := newShopFixture(t)
	reference, guestCart, variant := initiatePaidFlow(t, f, "guest-login")
	user := &models.User{Email: "buyer@example.com", PasswordHash: "x", Status: constants.UserStatusActive}
	mustCreate(t, f.db, user)

	if err := f.cartService().MergeGuestCart(user.ID, "guest-login"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	kept, _ := f.cartRepo.GetWithItems(guestCart.ID)
	if kept == nil || len(kept.Items) != 1 {
		t.Fatalf("guest cart with pending payment must stay intact")
	}

	result, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback(reference))
	if err != nil {
		t.Fatalf("callback after login failed: %v", err)
	}
	if result.Outcome != constants.CallbackOutcomeProcessed {
		t.Fatalf("want processed got %s", result.Outcome)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 3 {
		t.Fatalf("stock want 3 got %d", stock)
	}
	userCart, _ := f.cartRepo.GetByUser(user.ID)
	if userCart != nil {
		if full, _ := f.cartRepo.GetWithItems(userCart.ID); full != nil && len(full.Items) != 0 {
			t.Fatalf("paid lines must not be copied into the user cart: %+v", full.Items)
		}
	}
}

func TestHandleOpayCallbackRejectsCartEditedAfterCheckout(t *testing.T) {
	f := newShopFixture(t)
	reference, cart, variant := initiatePaidFlow(t, f, "guest-edited")
	if _, err := f.cartService().AddItem(cart, variant.ID, 3); err != nil {
		t.Fatalf("edit cart failed: %v", err)
	}

	_, err := f.paymentService().HandleOpayCallback(context.Background(), successCallback(reference))
	if !errors.Is(err, ErrPaymentAmountMismatch) {
		t.Fatalf("want ErrPaymentAmountMismatch got %v", err)
	}
	if n := countRows(t, f.db, &models.Order{}); n != 0 {
		t.Fatalf("no order should be created, got %d", n)
	}
	if stock := reloadVariant(t, f.db, variant.ID).Stock; stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
	txn, _ := f.txnRepo.GetByReference(reference)
	if txn == nil || txn.Status != constants.PaymentTransactionStatusPending {
		t.Fatalf("transaction should stay pending: %+v", txn)
	}
}
