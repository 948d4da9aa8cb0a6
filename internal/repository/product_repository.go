package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lowestEffectivePriceSQL 商品各规格最低实际售价（原价 - 折扣）
const lowestEffectivePriceSQL = "(SELECT MIN(pv.price - COALESCE(pv.discount, 0)) FROM product_variants pv WHERE pv.product_id = products.id AND pv.deleted_at IS NULL)"

// ProductRepository 商品数据访问接口
type ProductRepository interface {
	List(filter ProductListFilter) ([]models.Product, int64, error)
	Search(filter ProductListFilter) ([]models.Product, int64, error)
	ListTop(limit int) ([]models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	GetByID(id uint) (*models.Product, error)
	ListBrands(categorySlug, keyword string, limit int) ([]BrandCount, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id uint) error
	WithTx(tx *gorm.DB) ProductRepository
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

func (r *GormProductRepository) withVariants(query *gorm.DB) *gorm.DB {
	return query.Preload("Category").Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("size_ml ASC, id ASC")
	})
}

// applyProductFilter 应用品牌、分类与价格区间过滤
func (r *GormProductRepository) applyProductFilter(query *gorm.DB, filter ProductListFilter) *gorm.DB {
	if brands := normalizeStringList(filter.Brands); len(brands) > 0 {
		query = query.Where("products.brand IN ?", brands)
	}
	if slugs := normalizeStringList(filter.CategorySlugs); len(slugs) > 0 {
		query = query.Where("products.category_id IN (?)",
			r.db.Model(&models.Category{}).Select("id").Where("slug IN ?", slugs))
	}
	// sqlite 对无亲和性的表达式不做类型转换，价格参数统一以浮点数传入
	if filter.MinPrice != nil {
		query = query.Where(fmt.Sprintf("%s >= ?", lowestEffectivePriceSQL), filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		query = query.Where(fmt.Sprintf("%s <= ?", lowestEffectivePriceSQL), filter.MaxPrice.InexactFloat64())
	}
	return query
}

// List 商品列表（按优先级升序、ID 倒序）
func (r *GormProductRepository) List(filter ProductListFilter) ([]models.Product, int64, error) {
	var products []models.Product

	query := r.applyProductFilter(r.db.Model(&models.Product{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(r.withVariants(query), filter.Page, filter.PageSize)
	if err := query.Order("products.priority ASC, products.id DESC").Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Search 关键词搜索：名称命中排在描述命中之前
func (r *GormProductRepository) Search(filter ProductListFilter) ([]models.Product, int64, error) {
	keyword := strings.TrimSpace(filter.Keyword)
	if keyword == "" {
		return []models.Product{}, 0, nil
	}
	like := "%" + escapeLike(keyword) + "%"

	var products []models.Product
	condition, argCount := buildLikeCondition(r.db, "products.name", "products.description")
	query := r.db.Model(&models.Product{}).Where(condition, repeatLikeArgs(like, argCount)...)
	query = r.applyProductFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	nameMatch, _ := buildLikeCondition(r.db, "products.name")
	ranking := clause.OrderBy{Expression: clause.Expr{
		SQL:                fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 2 END, products.priority ASC, products.id DESC", nameMatch),
		Vars:               []interface{}{like},
		WithoutParentheses: true,
	}}
	query = applyPagination(r.withVariants(query), filter.Page, filter.PageSize)
	if err := query.Clauses(ranking).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListTop 按默认排序取前 N 个商品
func (r *GormProductRepository) ListTop(limit int) ([]models.Product, error) {
	var products []models.Product
	query := r.withVariants(r.db.Model(&models.Product{}))
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("products.priority ASC, products.id DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetBySlug 根据 slug 获取商品
func (r *GormProductRepository) GetBySlug(slug string) (*models.Product, error) {
	var product models.Product
	if err := r.withVariants(r.db).Where("slug = ?", slug).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetByID 根据 ID 获取商品
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.withVariants(r.db).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ListBrands 按商品数量统计品牌，可按分类与关键词收窄
func (r *GormProductRepository) ListBrands(categorySlug, keyword string, limit int) ([]BrandCount, error) {
	query := r.db.Model(&models.Product{}).
		Select("products.brand AS brand, COUNT(products.id) AS count").
		Where("products.brand <> ''")
	if slug := strings.TrimSpace(categorySlug); slug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id AND categories.deleted_at IS NULL").
			Where("categories.slug = ?", slug)
	}
	if kw := strings.TrimSpace(keyword); kw != "" {
		like := "%" + escapeLike(kw) + "%"
		condition, argCount := buildLikeCondition(r.db, "products.name", "products.description", "products.brand")
		query = query.Where(condition, repeatLikeArgs(like, argCount)...)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	rows := make([]BrandCount, 0)
	if err := query.Group("products.brand").Order("count DESC, brand ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create 创建商品
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Omit("Variants", "Category").Create(product).Error
}

// Update 更新商品基础信息
func (r *GormProductRepository) Update(product *models.Product) error {
	return r.db.Omit("Variants", "Category").Save(product).Error
}

// Delete 删除商品及其规格
func (r *GormProductRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, id).Error
	})
}

func normalizeStringList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
