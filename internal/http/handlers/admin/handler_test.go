package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emarket-next/internal/authz"
	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/provider"
	"github.com/emarket-next/internal/repository"
	"github.com/emarket-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type adminTestEnv struct {
	db     *gorm.DB
	engine *gin.Engine
	authz  *authz.Service
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newAdminTestEnv(t *testing.T) *adminTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	prev := models.DB
	models.DB = db
	t.Cleanup(func() {
		models.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{}
	cfg.OPay.Currency = "EGP"
	cfg.Checkout.TombstoneTTLHours = 72

	c := &provider.Container{Config: cfg}
	c.ProductRepo = repository.NewProductRepository(db)
	c.VariantRepo = repository.NewVariantRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentTransactionRepo = repository.NewPaymentTransactionRepository(db)
	c.ShippingRepo = repository.NewShippingSettingRepository(db)
	c.CatalogService = service.NewCatalogService(cfg.Catalog, c.ProductRepo, c.VariantRepo, c.CategoryRepo)
	c.ShippingService = service.NewShippingService(c.ShippingRepo, "60.00")
	c.PaymentService = service.NewPaymentService(cfg, c.PaymentTransactionRepo, c.CartRepo, c.VariantRepo, c.OrderRepo, nil, nil)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.PaymentTransactionRepo)
	c.AdminRepo = repository.NewAdminRepository(db)
	c.ContactService = service.NewContactService(repository.NewContactMessageRepository(db))
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	c.AuthzService = authzService

	h := New(c)
	r := gin.New()
	authorized := r.Group("/api/v1/admin", func(ctx *gin.Context) {
		ctx.Set("admin_id", uint(1))
		ctx.Next()
	})
	authorized.GET("/orders", h.AdminListOrders)
	authorized.GET("/orders/:id", h.AdminGetOrder)
	authorized.PATCH("/orders/:id/status", h.AdminUpdateOrderStatus)
	authorized.DELETE("/orders/:id", h.AdminDeleteOrder)
	authorized.GET("/payment-transactions", h.GetPaymentTransactions)
	authorized.GET("/payment-transactions/export", h.ExportPaymentTransactions)
	authorized.DELETE("/payment-transactions/:id", h.DeletePaymentTransaction)
	authorized.GET("/shipping-settings", h.GetShippingSettings)
	authorized.POST("/shipping-settings", h.CreateShippingSetting)
	authorized.PUT("/shipping-settings/:id", h.UpdateShippingSetting)
	authorized.DELETE("/shipping-settings/:id", h.DeleteShippingSetting)
	authorized.POST("/categories", h.CreateCategory)
	authorized.DELETE("/categories/:id", h.DeleteCategory)
	authorized.POST("/products", h.CreateProduct)
	authorized.GET("/products/:id", h.GetAdminProduct)
	authorized.POST("/products/:id/variants", h.CreateVariant)
	authorized.PUT("/variants/:id", h.UpdateVariant)
	authorized.GET("/authz/roles/:role/policies", h.ListRolePolicies)
	authorized.POST("/authz/roles/:role/policies", h.GrantRolePolicy)
	authorized.DELETE("/authz/roles/:role/policies", h.RevokeRolePolicy)
	authorized.PUT("/authz/admins/:id/roles", h.SetAdminRoles)
	authorized.GET("/contact-messages", h.ListContactMessages)

	return &adminTestEnv{db: db, engine: r, authz: authzService}
}

func (e *adminTestEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var resp envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal envelope failed: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func (e *adminTestEnv) seedOrder(t *testing.T, status string) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		Name:             "Mona",
		CustomerPhone:    "01000000000",
		Governorate:      "Cairo",
		PaymentReference: fmt.Sprintf("ref-%d", now.UnixNano()),
		ShippingCost:     models.MustMoney("60.00"),
		TotalAmount:      models.MustMoney("460.00"),
		PaymentStatus:    constants.OrderPaymentStatusPaid,
		OrderStatus:      status,
		PaidAt:           &now,
	}
	if err := e.db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestAdminOrderStatusTransitions(t *testing.T) {
	env := newAdminTestEnv(t)
	order := env.seedOrder(t, constants.OrderStatusProcessing)
	path := fmt.Sprintf("/api/v1/admin/orders/%d/status", order.ID)

	_, resp := env.do(t, http.MethodPatch, path, gin.H{"status": constants.OrderStatusDelivered})
	if resp.StatusCode != 400 {
		t.Fatalf("skipping shipped want 400 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodPatch, path, gin.H{"status": constants.OrderStatusShipped})
	if resp.StatusCode != 0 {
		t.Fatalf("processing -> shipped failed: %+v", resp)
	}
	var updated models.Order
	if err := json.Unmarshal(resp.Data, &updated); err != nil {
		t.Fatalf("decode order failed: %v", err)
	}
	if updated.OrderStatus != constants.OrderStatusShipped {
		t.Fatalf("order status want shipped got %s", updated.OrderStatus)
	}

	_, resp = env.do(t, http.MethodPatch, path, gin.H{"status": constants.OrderStatusProcessing})
	if resp.StatusCode != 400 {
		t.Fatalf("backwards transition want 400 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodPatch, "/api/v1/admin/orders/9999/status", gin.H{"status": constants.OrderStatusShipped})
	if resp.StatusCode != 404 {
		t.Fatalf("missing order want 404 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodPatch, "/api/v1/admin/orders/abc/status", gin.H{"status": constants.OrderStatusShipped})
	if resp.StatusCode != 400 {
		t.Fatalf("invalid id want 400 got %d", resp.StatusCode)
	}
}

func TestAdminListAndDeleteOrders(t *testing.T) {
	env := newAdminTestEnv(t)
	env.seedOrder(t, constants.OrderStatusProcessing)
	shipped := env.seedOrder(t, constants.OrderStatusShipped)

	_, resp := env.do(t, http.MethodGet, "/api/v1/admin/orders?status="+constants.OrderStatusShipped, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("list orders failed: %+v", resp)
	}
	var rows []models.Order
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		t.Fatalf("decode orders failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != shipped.ID {
		t.Fatalf("status filter unexpected: %+v", rows)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/admin/orders?created_from=not-a-time", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("bad time filter want 400 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/orders/%d", shipped.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("delete order failed: %+v", resp)
	}
	_, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/orders/%d", shipped.ID), nil)
	if resp.StatusCode != 404 {
		t.Fatalf("deleted order want 404 got %d", resp.StatusCode)
	}
}

func TestAdminShippingSettingsCRUD(t *testing.T) {
	env := newAdminTestEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/v1/admin/shipping-settings", gin.H{"governorate": "Giza"})
	if resp.StatusCode != 0 {
		t.Fatalf("create shipping failed: %+v", resp)
	}
	var created models.ShippingSetting
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode shipping failed: %v", err)
	}
	if created.Cost.String() != "60.00" {
		t.Fatalf("default cost want 60.00 got %s", created.Cost.String())
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/admin/shipping-settings", gin.H{"governorate": "Giza", "cost": "70"})
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate governorate want 409 got %d", resp.StatusCode)
	}
	_, resp = env.do(t, http.MethodPost, "/api/v1/admin/shipping-settings", gin.H{"governorate": " "})
	if resp.StatusCode != 400 {
		t.Fatalf("blank governorate want 400 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/shipping-settings/%d", created.ID), gin.H{"governorate": "Giza", "cost": "75.50"})
	if resp.StatusCode != 0 {
		t.Fatalf("update shipping failed: %+v", resp)
	}
	var updated models.ShippingSetting
	_ = json.Unmarshal(resp.Data, &updated)
	if updated.Cost.String() != "75.50" {
		t.Fatalf("updated cost want 75.50 got %s", updated.Cost.String())
	}

	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/shipping-settings/%d", created.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("delete shipping failed: %+v", resp)
	}
	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/shipping-settings/%d", created.ID), nil)
	if resp.StatusCode != 404 {
		t.Fatalf("second delete want 404 got %d", resp.StatusCode)
	}
}

func TestAdminCatalogManagement(t *testing.T) {
	env := newAdminTestEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/v1/admin/categories", gin.H{"name": "Oriental Oud"})
	if resp.StatusCode != 0 {
		t.Fatalf("create category failed: %+v", resp)
	}
	var category models.Category
	if err := json.Unmarshal(resp.Data, &category); err != nil {
		t.Fatalf("decode category failed: %v", err)
	}
	if category.Slug != "oriental-oud" {
		t.Fatalf("category slug want oriental-oud got %s", category.Slug)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/admin/products", gin.H{"name": "Royal Amber", "brand": "Maison", "category_id": category.ID})
	if resp.StatusCode != 0 {
		t.Fatalf("create product failed: %+v", resp)
	}
	var product models.Product
	if err := json.Unmarshal(resp.Data, &product); err != nil {
		t.Fatalf("decode product failed: %v", err)
	}
	_, resp = env.do(t, http.MethodPost, "/api/v1/admin/products", gin.H{"name": "Royal Amber"})
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate slug want 409 got %d", resp.StatusCode)
	}

	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/categories/%d", category.ID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("delete category in use want 409 got %d", resp.StatusCode)
	}

	variantPath := fmt.Sprintf("/api/v1/admin/products/%d/variants", product.ID)
	_, resp = env.do(t, http.MethodPost, variantPath, gin.H{"size_ml": 50})
	if resp.StatusCode != 400 {
		t.Fatalf("variant without price want 400 got %d", resp.StatusCode)
	}
	_, resp = env.do(t, http.MethodPost, variantPath, gin.H{"size_ml": 100, "price": "300.00", "discount": "50.00", "stock": 4})
	if resp.StatusCode != 0 {
		t.Fatalf("create variant failed: %+v", resp)
	}
	var variant models.ProductVariant
	if err := json.Unmarshal(resp.Data, &variant); err != nil {
		t.Fatalf("decode variant failed: %v", err)
	}
	if variant.EffectivePrice().String() != "250.00" {
		t.Fatalf("effective price want 250.00 got %s", variant.EffectivePrice().String())
	}

	_, resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/variants/%d", variant.ID), gin.H{"clear_discount": true, "stock": 9})
	if resp.StatusCode != 0 {
		t.Fatalf("update variant failed: %+v", resp)
	}
	var reloaded models.ProductVariant
	if err := env.db.First(&reloaded, variant.ID).Error; err != nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	if reloaded.Discount != nil || reloaded.Stock != 9 {
		t.Fatalf("variant update not applied: discount=%v stock=%d", reloaded.Discount, reloaded.Stock)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/admin/products/9999/variants", gin.H{"price": "10.00"})
	if resp.StatusCode != 404 {
		t.Fatalf("variant for missing product want 404 got %d", resp.StatusCode)
	}
}

func TestAdminPaymentTransactions(t *testing.T) {
	env := newAdminTestEnv(t)
	pending := &models.PaymentTransaction{
		Reference:     "ref-pending",
		Status:        constants.PaymentTransactionStatusPending,
		Amount:        models.MustMoney("460.00"),
		ShippingCost:  models.MustMoney("60.00"),
		Currency:      "EGP",
		CustomerPhone: "01000000000",
	}
	failed := &models.PaymentTransaction{
		Reference:     "ref-fail",
		Status:        "FAIL",
		Amount:        models.MustMoney("100.00"),
		ShippingCost:  models.MustMoney("60.00"),
		Currency:      "EGP",
		CustomerPhone: "01000000001",
	}
	for _, txn := range []*models.PaymentTransaction{pending, failed} {
		if err := env.db.Create(txn).Error; err != nil {
			t.Fatalf("create transaction failed: %v", err)
		}
	}

	_, resp := env.do(t, http.MethodGet, "/api/v1/admin/payment-transactions?status=pending", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("list transactions failed: %+v", resp)
	}
	var rows []models.PaymentTransaction
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		t.Fatalf("decode transactions failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Reference != "ref-pending" {
		t.Fatalf("status filter unexpected: %+v", rows)
	}

	w, _ := env.do(t, http.MethodGet, "/api/v1/admin/payment-transactions/export", nil)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export content type unexpected: %s", w.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "id,reference,status") {
		t.Fatalf("export csv unexpected: %q", w.Body.String())
	}

	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/payment-transactions/%d", failed.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("delete transaction failed: %+v", resp)
	}
	_, resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/payment-transactions/%d", failed.ID), nil)
	if resp.StatusCode != 404 {
		t.Fatalf("second delete want 404 got %d", resp.StatusCode)
	}
}
