package main

import (
	"log"
	"os"
	"strings"

	"github.com/emarket-next/internal/authz"
	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type seedVariant struct {
	SizeML     int
	Price      string
	Discount   string
	Stock      int
	WithBox    bool
	TravelSize bool
	Caption    string
}

type seedProduct struct {
	Name        string
	Slug        string
	Description string
	Category    string
	Brand       string
	Priority    int
	Variants    []seedVariant
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogLevel); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加分类
	categories := []models.Category{
		{
			Name:             "Oriental",
			Slug:             "oriental",
			ShortDescription: "Warm amber, oud and spice blends",
		},
		{
			Name:             "Fresh",
			Slug:             "fresh",
			ShortDescription: "Citrus and aquatic notes for daily wear",
		},
		{
			Name:               "Ramadan Picks",
			Slug:               "ramadan-picks",
			ShortDescription:   "Seasonal selection",
			IsSpecial:          true,
			SpecialTitle:       "Ramadan Kareem",
			SpecialDescription: "Gift-ready bottles curated for the holy month.",
		},
	}

	categoryIDs := map[string]uint{}
	for _, cat := range categories {
		var existing models.Category
		if err := models.DB.Where("slug = ?", cat.Slug).First(&existing).Error; err == nil {
			stdLog.Printf("Category already exists: %s", cat.Slug)
			categoryIDs[cat.Slug] = existing.ID
			continue
		}
		if err := models.DB.Create(&cat).Error; err != nil {
			stdLog.Printf("Failed to create category %s: %v", cat.Slug, err)
			continue
		}
		categoryIDs[cat.Slug] = cat.ID
		stdLog.Printf("Created category: %s", cat.Slug)
	}

	// 添加商品与规格
	products := []seedProduct{
		{
			Name:        "Amber Nights",
			Slug:        "amber-nights",
			Description: "Amber, vanilla and smoked oud. Long lasting evening scent.",
			Category:    "oriental",
			Brand:       "Maison Nile",
			Priority:    1,
			Variants: []seedVariant{
				{SizeML: 50, Price: "850.00", Stock: 12, WithBox: true},
				{SizeML: 100, Price: "1400.00", Discount: "150.00", Stock: 6, WithBox: true, Caption: "Limited batch"},
				{SizeML: 10, Price: "220.00", Stock: 30, TravelSize: true, Caption: "Pocket spray"},
			},
		},
		{
			Name:        "Royal Oud",
			Slug:        "royal-oud",
			Description: "Cambodian oud with rose and saffron.",
			Category:    "oriental",
			Brand:       "Dar Al Oud",
			Priority:    2,
			Variants: []seedVariant{
				{SizeML: 75, Price: "1950.00", Stock: 4, WithBox: true},
			},
		},
		{
			Name:        "Alexandria Breeze",
			Slug:        "alexandria-breeze",
			Description: "Bergamot, sea salt and white musk.",
			Category:    "fresh",
			Brand:       "Maison Nile",
			Priority:    3,
			Variants: []seedVariant{
				{SizeML: 50, Price: "620.00", Discount: "70.00", Stock: 20, WithBox: true},
				{SizeML: 100, Price: "980.00", Stock: 10, WithBox: false, Caption: "Tester, no box"},
			},
		},
		{
			Name:        "Crescent Gift Set",
			Slug:        "crescent-gift-set",
			Description: "Two travel bottles of our best sellers in a gift case.",
			Category:    "ramadan-picks",
			Brand:       "Maison Nile",
			Priority:    1,
			Variants: []seedVariant{
				{SizeML: 20, Price: "450.00", Stock: 40, WithBox: true, TravelSize: true},
			},
		},
	}

	for _, item := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", item.Slug).First(&existing).Error; err == nil {
			stdLog.Printf("Product already exists: %s", item.Slug)
			continue
		}
		product := models.Product{
			Name:        item.Name,
			Slug:        item.Slug,
			Description: item.Description,
			Brand:       item.Brand,
			Priority:    item.Priority,
		}
		if id, ok := categoryIDs[item.Category]; ok {
			categoryID := id
			product.CategoryID = &categoryID
		}
		for _, v := range item.Variants {
			variant := models.ProductVariant{
				SizeML:     v.SizeML,
				Price:      models.MustMoney(v.Price),
				Stock:      v.Stock,
				WithBox:    v.WithBox,
				TravelSize: v.TravelSize,
				Caption:    v.Caption,
			}
			if v.Discount != "" {
				discount := models.MustMoney(v.Discount)
				variant.Discount = &discount
			}
			product.Variants = append(product.Variants, variant)
		}
		if err := models.DB.Create(&product).Error; err != nil {
			stdLog.Printf("Failed to create product %s: %v", item.Slug, err)
			continue
		}
		stdLog.Printf("Created product: %s (%d variants)", item.Slug, len(product.Variants))
	}

	// 添加运费配置
	shipping := map[string]string{
		"Cairo":      "60.00",
		"Giza":       "60.00",
		"Alexandria": "75.00",
		"Dakahlia":   "85.00",
		"Aswan":      "120.00",
	}
	for governorate, cost := range shipping {
		var existing models.ShippingSetting
		if err := models.DB.Where("governorate = ?", governorate).First(&existing).Error; err == nil {
			stdLog.Printf("Shipping setting already exists: %s", governorate)
			continue
		}
		row := models.ShippingSetting{Governorate: governorate, Cost: models.MustMoney(cost)}
		if err := models.DB.Create(&row).Error; err != nil {
			stdLog.Printf("Failed to create shipping setting %s: %v", governorate, err)
			continue
		}
		stdLog.Printf("Created shipping setting: %s", governorate)
	}

	seedStaffAdmin(stdLog)

	stdLog.Printf("Seed completed")
}

// seedStaffAdmin 创建演示用的履约管理员并绑定 fulfillment 角色
func seedStaffAdmin(stdLog *log.Logger) {
	username := strings.TrimSpace(os.Getenv("EMARKET_SEED_STAFF_USERNAME"))
	password := os.Getenv("EMARKET_SEED_STAFF_PASSWORD")
	if username == "" || password == "" {
		return
	}

	var admin models.Admin
	if err := models.DB.Where("username = ?", username).First(&admin).Error; err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Printf("Failed to hash staff password: %v", err)
			return
		}
		admin = models.Admin{Username: username, PasswordHash: string(hash)}
		if err := models.DB.Create(&admin).Error; err != nil {
			stdLog.Printf("Failed to create staff admin %s: %v", username, err)
			return
		}
		stdLog.Printf("Created staff admin: %s", username)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Printf("Failed to init authz: %v", err)
		return
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Printf("Failed to bootstrap roles: %v", err)
		return
	}
	if err := authzService.SetAdminRoles(admin.ID, []string{"fulfillment"}); err != nil {
		stdLog.Printf("Failed to assign role to %s: %v", username, err)
		return
	}
	stdLog.Printf("Assigned role fulfillment to %s", username)
}
