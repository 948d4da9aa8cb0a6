package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/emarket-next/internal/cache"
	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultCatalogPageSize = 24
	defaultSalesPageSize   = 10
	productSwiperSize      = 10
	saleSwiperSize         = 5
	brandListLimit         = 10
)

// CatalogService 商品目录服务
type CatalogService struct {
	cfg          config.CatalogConfig
	productRepo  repository.ProductRepository
	variantRepo  repository.VariantRepository
	categoryRepo repository.CategoryRepository
}

// NewCatalogService 创建商品目录服务
func NewCatalogService(cfg config.CatalogConfig, productRepo repository.ProductRepository, variantRepo repository.VariantRepository, categoryRepo repository.CategoryRepository) *CatalogService {
	return &CatalogService{
		cfg:          cfg,
		productRepo:  productRepo,
		variantRepo:  variantRepo,
		categoryRepo: categoryRepo,
	}
}

// ProductQuery 商品列表查询条件
type ProductQuery struct {
	Page       int
	Brands     []string
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

func (s *CatalogService) pageSize(configured int, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}

func (q ProductQuery) toFilter(pageSize int) repository.ProductListFilter {
	page := q.Page
	if page < 1 {
		page = 1
	}
	return repository.ProductListFilter{
		Page:          page,
		PageSize:      pageSize,
		Brands:        q.Brands,
		CategorySlugs: q.Categories,
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
	}
}

// ListProducts 商品列表，按优先级排序
func (s *CatalogService) ListProducts(query ProductQuery) ([]models.Product, int64, int, error) {
	size := s.pageSize(s.cfg.PageSize, defaultCatalogPageSize)
	products, total, err := s.productRepo.List(query.toFilter(size))
	return products, total, size, err
}

// SwiperProducts 首页轮播商品
func (s *CatalogService) SwiperProducts() ([]models.Product, error) {
	return s.productRepo.ListTop(productSwiperSize)
}

// SearchProducts 关键词搜索，名称命中优先于描述命中
func (s *CatalogService) SearchProducts(keyword string, query ProductQuery) ([]models.Product, int64, int, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, 0, 0, ErrInvalidKeyword
	}
	size := s.pageSize(s.cfg.SearchPageSize, defaultCatalogPageSize)
	filter := query.toFilter(size)
	filter.Keyword = keyword
	products, total, err := s.productRepo.Search(filter)
	return products, total, size, err
}

// GetProductBySlug 商品详情，启用 Redis 时按 slug 缓存
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrProductNotFound
	}
	var cached models.Product
	if hit, err := cache.GetProductDetail(ctx, slug, &cached); err != nil {
		logger.Warnw("catalog_cache_read_failed", "slug", slug, "error", err)
	} else if hit {
		return &cached, nil
	}

	product, err := s.productRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if err := cache.SetProductDetail(ctx, slug, product, s.cacheTTL()); err != nil {
		logger.Warnw("catalog_cache_write_failed", "slug", slug, "error", err)
	}
	return product, nil
}

func (s *CatalogService) cacheTTL() time.Duration {
	return time.Duration(s.cfg.CacheTTLSeconds) * time.Second
}

func (s *CatalogService) minDiscountRatio() decimal.Decimal {
	percent, err := decimal.NewFromString(strings.TrimSpace(s.cfg.SalesMinDiscountPercent))
	if err != nil || percent.IsNegative() {
		percent = decimal.NewFromInt(5)
	}
	return percent.Div(decimal.NewFromInt(100))
}

// ListSaleVariants 折扣规格列表，按折扣比例降序
func (s *CatalogService) ListSaleVariants(page int) ([]models.ProductVariant, int64, int, error) {
	if page < 1 {
		page = 1
	}
	size := s.pageSize(s.cfg.SalesPageSize, defaultSalesPageSize)
	variants, total, err := s.variantRepo.ListSale(repository.SaleVariantFilter{
		Page:             page,
		PageSize:         size,
		MinDiscountRatio: s.minDiscountRatio(),
	})
	return variants, total, size, err
}

// SaleSwiper 折扣力度最大的若干规格
func (s *CatalogService) SaleSwiper() ([]models.ProductVariant, error) {
	variants, _, err := s.variantRepo.ListSale(repository.SaleVariantFilter{
		Page:             1,
		PageSize:         saleSwiperSize,
		MinDiscountRatio: s.minDiscountRatio(),
	})
	return variants, err
}

// ListCategories 分类列表
func (s *CatalogService) ListCategories() ([]models.Category, error) {
	return s.categoryRepo.List()
}

// ListBrands 商品数最多的品牌
func (s *CatalogService) ListBrands(categorySlug, search string) ([]repository.BrandCount, error) {
	return s.productRepo.ListBrands(strings.TrimSpace(categorySlug), strings.TrimSpace(search), brandListLimit)
}

// InvalidateProducts 失效商品详情缓存
func (s *CatalogService) InvalidateProducts(ctx context.Context, productIDs []uint) error {
	slugs := make([]string, 0, len(productIDs))
	seen := make(map[uint]struct{}, len(productIDs))
	for _, id := range productIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		product, err := s.productRepo.GetByID(id)
		if err != nil {
			return err
		}
		if product != nil {
			slugs = append(slugs, product.Slug)
		}
	}
	if len(slugs) == 0 {
		return nil
	}
	return cache.DelProductDetails(ctx, slugs...)
}

func (s *CatalogService) invalidateSlug(ctx context.Context, slugs ...string) {
	if err := cache.DelProductDetails(ctx, slugs...); err != nil {
		logger.Warnw("catalog_cache_invalidate_failed", "slugs", slugs, "error", err)
	}
}

// CategoryInput 分类输入
type CategoryInput struct {
	Name               string
	Slug               string
	ShortDescription   string
	IsSpecial          bool
	SpecialTitle       string
	SpecialDescription string
}

// CreateCategory 创建分类
func (s *CatalogService) CreateCategory(input CategoryInput) (*models.Category, error) {
	category := &models.Category{}
	if err := s.applyCategoryInput(category, input); err != nil {
		return nil, err
	}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory 更新分类
func (s *CatalogService) UpdateCategory(id uint, input CategoryInput) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	if err := s.applyCategoryInput(category, input); err != nil {
		return nil, err
	}
	if err := s.categoryRepo.Update(category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) applyCategoryInput(category *models.Category, input CategoryInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ErrCategoryInvalid
	}
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" {
		return ErrCategoryInvalid
	}
	exist, err := s.categoryRepo.GetBySlug(slug)
	if err != nil {
		return err
	}
	if exist != nil && exist.ID != category.ID {
		return ErrSlugExists
	}
	category.Name = name
	category.Slug = slug
	category.ShortDescription = strings.TrimSpace(input.ShortDescription)
	category.IsSpecial = input.IsSpecial
	category.SpecialTitle = strings.TrimSpace(input.SpecialTitle)
	category.SpecialDescription = strings.TrimSpace(input.SpecialDescription)
	return nil
}

// DeleteCategory 删除分类，仍有商品时拒绝
func (s *CatalogService) DeleteCategory(id uint) error {
	category, err := s.categoryRepo.GetByID(id)
	if err != nil {
		return err
	}
	if category == nil {
		return ErrCategoryNotFound
	}
	count, err := s.categoryRepo.CountProducts(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryInUse
	}
	return s.categoryRepo.Delete(id)
}

// ProductInput 商品输入
type ProductInput struct {
	Name        string
	Slug        string
	Description string
	Brand       string
	CategoryID  *uint
	Priority    *int
}

// GetProduct 后台商品详情
func (s *CatalogService) GetProduct(id uint) (*models.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// CreateProduct 创建商品
func (s *CatalogService) CreateProduct(input ProductInput) (*models.Product, error) {
	product := &models.Product{Priority: 1}
	if err := s.applyProductInput(product, input); err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct 更新商品
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, input ProductInput) (*models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}
	oldSlug := product.Slug
	if err := s.applyProductInput(product, input); err != nil {
		return nil, err
	}
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	s.invalidateSlug(ctx, oldSlug, product.Slug)
	return product, nil
}

func (s *CatalogService) applyProductInput(product *models.Product, input ProductInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ErrProductInvalid
	}
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" {
		return ErrProductInvalid
	}
	exist, err := s.productRepo.GetBySlug(slug)
	if err != nil {
		return err
	}
	if exist != nil && exist.ID != product.ID {
		return ErrSlugExists
	}
	if input.CategoryID != nil && *input.CategoryID > 0 {
		category, err := s.categoryRepo.GetByID(*input.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return ErrCategoryNotFound
		}
		categoryID := category.ID
		product.CategoryID = &categoryID
	} else {
		product.CategoryID = nil
	}
	if input.Priority != nil {
		product.Priority = *input.Priority
	}
	product.Name = name
	product.Slug = slug
	product.Description = strings.TrimSpace(input.Description)
	product.Brand = strings.TrimSpace(input.Brand)
	product.Category = nil
	return nil
}

// DeleteProduct 删除商品及规格
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	product, err := s.GetProduct(id)
	if err != nil {
		return err
	}
	if err := s.productRepo.Delete(id); err != nil {
		return err
	}
	s.invalidateSlug(ctx, product.Slug)
	return nil
}

// VariantInput 规格输入，指针字段为空表示不修改
type VariantInput struct {
	SizeML        *int
	Price         *models.Money
	Discount      *models.Money
	ClearDiscount bool
	Stock         *int
	WithBox       *bool
	TravelSize    *bool
	Caption       *string
}

// CreateVariant 创建规格
func (s *CatalogService) CreateVariant(ctx context.Context, productID uint, input VariantInput) (*models.ProductVariant, error) {
	product, err := s.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if input.Price == nil {
		return nil, ErrVariantInvalid
	}
	variant := &models.ProductVariant{ProductID: product.ID, WithBox: true}
	if err := applyVariantInput(variant, input); err != nil {
		return nil, err
	}
	if err := s.variantRepo.Create(variant); err != nil {
		return nil, err
	}
	s.invalidateSlug(ctx, product.Slug)
	return variant, nil
}

// UpdateVariant 更新规格（含库存）
func (s *CatalogService) UpdateVariant(ctx context.Context, id uint, input VariantInput) (*models.ProductVariant, error) {
	variant, err := s.variantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	if err := applyVariantInput(variant, input); err != nil {
		return nil, err
	}
	product := variant.Product
	variant.Product = nil
	if err := s.variantRepo.Update(variant); err != nil {
		return nil, err
	}
	if product != nil {
		s.invalidateSlug(ctx, product.Slug)
	}
	return variant, nil
}

// DeleteVariant 删除规格
func (s *CatalogService) DeleteVariant(ctx context.Context, id uint) error {
	variant, err := s.variantRepo.GetByID(id)
	if err != nil {
		return err
	}
	if variant == nil {
		return ErrVariantNotFound
	}
	if err := s.variantRepo.Delete(id); err != nil {
		return err
	}
	if variant.Product != nil {
		s.invalidateSlug(ctx, variant.Product.Slug)
	}
	return nil
}

func applyVariantInput(variant *models.ProductVariant, input VariantInput) error {
	if input.SizeML != nil {
		if *input.SizeML < 0 {
			return ErrVariantInvalid
		}
		variant.SizeML = *input.SizeML
	}
	if input.Price != nil {
		if !input.Price.Decimal.IsPositive() {
			return ErrVariantInvalid
		}
		variant.Price = models.NewMoneyFromDecimal(input.Price.Decimal)
	}
	if input.ClearDiscount {
		variant.Discount = nil
	} else if input.Discount != nil {
		discount := models.NewMoneyFromDecimal(input.Discount.Decimal)
		variant.Discount = &discount
	}
	if variant.Discount != nil {
		if variant.Discount.Decimal.IsNegative() || variant.Discount.Decimal.GreaterThan(variant.Price.Decimal) {
			return ErrVariantInvalid
		}
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return ErrVariantInvalid
		}
		variant.Stock = *input.Stock
	}
	if input.WithBox != nil {
		variant.WithBox = *input.WithBox
	}
	if input.TravelSize != nil {
		variant.TravelSize = *input.TravelSize
	}
	if input.Caption != nil {
		variant.Caption = strings.TrimSpace(*input.Caption)
	}
	return nil
}

// slugify 生成 URL 友好的标识：小写字母数字，其余字符折叠为单个连字符
func slugify(raw string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
