package service

import (
	"errors"
	"testing"
)

func TestCartSubtotalUsesEffectivePrice(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	discounted := createVariant(t, f.db, "oud-100", "100.00", moneyPtr("10.00"), 10)
	plain := createVariant(t, f.db, "musk-50", "50.00", nil, 10)

	cart, err := svc.GetOrCreateCart(guestIdentity("guest-subtotal"))
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if _, err := svc.AddItem(cart, discounted.ID, 2); err != nil {
		t.Fatalf("add discounted failed: %v", err)
	}
	if _, err := svc.AddItem(cart, plain.ID, 1); err != nil {
		t.Fatalf("add plain failed: %v", err)
	}

	detail, err := svc.GetCartDetail(guestIdentity("guest-subtotal"))
	if err != nil {
		t.Fatalf("get cart detail failed: %v", err)
	}
	if detail.Subtotal.String() != "230.00" {
		t.Fatalf("subtotal want 230.00 got %s", detail.Subtotal.String())
	}
	if detail.ItemCount != 3 {
		t.Fatalf("item count want 3 got %d", detail.ItemCount)
	}
}

func TestCartAddItemAccumulatesAndRejectsOverStock(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	variant := createVariant(t, f.db, "amber", "80.00", nil, 3)
	cart, err := svc.GetOrCreateCart(guestIdentity("guest-stock"))
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}

	item, err := svc.AddItem(cart, variant.ID, 0)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if item.Quantity != 1 {
		t.Fatalf("zero quantity should default to 1, got %d", item.Quantity)
	}
	if _, err := svc.AddItem(cart, variant.ID, 2); err != nil {
		t.Fatalf("accumulate failed: %v", err)
	}
	if _, err := svc.AddItem(cart, variant.ID, 1); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	full, err := f.cartRepo.GetWithItems(cart.ID)
	if err != nil || full == nil {
		t.Fatalf("reload cart failed: %v", err)
	}
	if len(full.Items) != 1 || full.Items[0].Quantity != 3 {
		t.Fatalf("rejected add must leave quantity unchanged: %+v", full.Items)
	}
}

func TestCartAddItemRejectsNegativeQuantity(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	variant := createVariant(t, f.db, "rose", "40.00", nil, 3)
	cart, _ := svc.GetOrCreateCart(guestIdentity("guest-negative"))
	if _, err := svc.AddItem(cart, variant.ID, -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.AddItem(cart, 9999, 1); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestCartUpdateAndRemoveAreScopedToCart(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	variant := createVariant(t, f.db, "vetiver", "70.00", nil, 5)
	owner, _ := svc.GetOrCreateCart(guestIdentity("guest-owner"))
	other, _ := svc.GetOrCreateCart(guestIdentity("guest-other"))
	item, err := svc.AddItem(owner, variant.ID, 1)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	if _, err := svc.UpdateQuantity(other, item.ID, 2); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("foreign update want ErrCartItemNotFound, got %v", err)
	}
	if err := svc.RemoveItem(other, item.ID); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("foreign remove want ErrCartItemNotFound, got %v", err)
	}
	if _, err := svc.UpdateQuantity(owner, item.ID, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("zero update want ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.UpdateQuantity(owner, item.ID, 6); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("over stock update want ErrOutOfStock, got %v", err)
	}
	updated, err := svc.UpdateQuantity(owner, item.ID, 4)
	if err != nil || updated.Quantity != 4 {
		t.Fatalf("update quantity failed: %v %+v", err, updated)
	}
	if err := svc.RemoveItem(owner, item.ID); err != nil {
		t.Fatalf("remove item failed: %v", err)
	}
	if err := svc.RemoveItem(owner, item.ID); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("second remove want ErrCartItemNotFound, got %v", err)
	}
}

func TestGetOrCreateCartRequiresIdentity(t *testing.T) {
	f := newShopFixture(t)
	if _, err := f.cartService().GetOrCreateCart(CartIdentity{}); !errors.Is(err, ErrCartIdentityRequired) {
		t.Fatalf("expected ErrCartIdentityRequired, got %v", err)
	}
}

func TestGetOrCreateCartIsStablePerIdentity(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	first, err := svc.GetOrCreateCart(CartIdentity{UserID: 7})
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	second, err := svc.GetOrCreateCart(CartIdentity{UserID: 7})
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same cart, got %d and %d", first.ID, second.ID)
	}
}

func TestMergeGuestCartCapsAtStock(t *testing.T) {
	f := newShopFixture(t)
	svc := f.cartService()
	shared := createVariant(t, f.db, "cedar", "60.00", nil, 4)
	guestOnly := createVariant(t, f.db, "iris", "90.00", nil, 2)

	userCart, _ := svc.GetOrCreateCart(CartIdentity{UserID: 11})
	if _, err := svc.AddItem(userCart, shared.ID, 3); err != nil {
		t.Fatalf("seed user cart failed: %v", err)
	}
	guestCart, _ := svc.GetOrCreateCart(guestIdentity("guest-merge"))
	if _, err := svc.AddItem(guestCart, shared.ID, 2); err != nil {
		t.Fatalf("seed guest shared failed: %v", err)
	}
	if _, err := svc.AddItem(guestCart, guestOnly.ID, 2); err != nil {
		t.Fatalf("seed guest only failed: %v", err)
	}

	if err := svc.MergeGuestCart(11, "guest-merge"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	merged, err := f.cartRepo.GetWithItems(userCart.ID)
	if err != nil || merged == nil {
		t.Fatalf("reload user cart failed: %v", err)
	}
	quantities := map[uint]int{}
	for _, item := range merged.Items {
		quantities[item.VariantID] = item.Quantity
	}
	if quantities[shared.ID] != 4 {
		t.Fatalf("shared variant should be capped at stock 4, got %d", quantities[shared.ID])
	}
	if quantities[guestOnly.ID] != 2 {
		t.Fatalf("guest variant want 2 got %d", quantities[guestOnly.ID])
	}
	guest, _ := f.cartRepo.GetWithItems(guestCart.ID)
	if guest == nil || len(guest.Items) != 0 {
		t.Fatalf("guest cart should be emptied after merge")
	}
}
