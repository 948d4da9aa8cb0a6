package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// shopFixture 测试用的仓库集合，models.DB 指向同一个内存库
type shopFixture struct {
	db           *gorm.DB
	cfg          *config.Config
	productRepo  *repository.GormProductRepository
	variantRepo  *repository.GormVariantRepository
	categoryRepo *repository.GormCategoryRepository
	cartRepo     *repository.GormCartRepository
	txnRepo      *repository.GormPaymentTransactionRepository
	orderRepo    *repository.GormOrderRepository
	shippingRepo *repository.GormShippingSettingRepository
	userRepo     *repository.GormUserRepository
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return db
}

func newShopFixture(t *testing.T) *shopFixture {
	t.Helper()
	db := openServiceTestDB(t)
	cfg := &config.Config{}
	cfg.OPay.Currency = "EGP"
	cfg.OPay.PublicKey = "pub"
	cfg.OPay.SecretKey = "secret"
	cfg.OPay.MerchantID = "merchant"
	cfg.OPay.Sandbox = true
	cfg.Checkout.FrontendURL = "https://shop.example.com"
	cfg.Checkout.BackendURL = "https://api.example.com"
	cfg.Checkout.TombstoneTTLHours = 72
	cfg.UserJWT.SecretKey = "user-secret-for-tests"
	cfg.JWT.SecretKey = "admin-secret-for-tests"
	cfg.Security.PasswordPolicy.MinLength = 8
	return &shopFixture{
		db:           db,
		cfg:          cfg,
		productRepo:  repository.NewProductRepository(db),
		variantRepo:  repository.NewVariantRepository(db),
		categoryRepo: repository.NewCategoryRepository(db),
		cartRepo:     repository.NewCartRepository(db),
		txnRepo:      repository.NewPaymentTransactionRepository(db),
		orderRepo:    repository.NewOrderRepository(db),
		shippingRepo: repository.NewShippingSettingRepository(db),
		userRepo:     repository.NewUserRepository(db),
	}
}

func (f *shopFixture) cartService() *CartService {
	return NewCartService(f.cartRepo, f.variantRepo)
}

func (f *shopFixture) paymentService() *PaymentService {
	return NewPaymentService(f.cfg, f.txnRepo, f.cartRepo, f.variantRepo, f.orderRepo, nil, nil)
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T failed: %v", value, err)
	}
}

func moneyPtr(raw string) *models.Money {
	m := models.MustMoney(raw)
	return &m
}

func createVariant(t *testing.T, db *gorm.DB, slug, price string, discount *models.Money, stock int) *models.ProductVariant {
	t.Helper()
	product := &models.Product{Name: "Product " + slug, Slug: slug, Brand: "Maison", Priority: 1}
	mustCreate(t, db, product)
	variant := &models.ProductVariant{
		ProductID: product.ID,
		SizeML:    100,
		Price:     models.MustMoney(price),
		Discount:  discount,
		Stock:     stock,
		WithBox:   true,
	}
	mustCreate(t, db, variant)
	return variant
}

func createShipping(t *testing.T, db *gorm.DB, governorate, cost string) *models.ShippingSetting {
	t.Helper()
	setting := &models.ShippingSetting{Governorate: governorate, Cost: models.MustMoney(cost)}
	mustCreate(t, db, setting)
	return setting
}

func guestIdentity(key string) CartIdentity {
	return CartIdentity{SessionKey: key}
}

func reloadVariant(t *testing.T, db *gorm.DB, id uint) models.ProductVariant {
	t.Helper()
	var variant models.ProductVariant
	if err := db.First(&variant, id).Error; err != nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	return variant
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count %T failed: %v", model, err)
	}
	return count
}
