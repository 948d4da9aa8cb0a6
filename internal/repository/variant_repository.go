package repository

import (
	"errors"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
)

const saleRatioSQL = "(product_variants.discount * 1.0 / product_variants.price)"

// VariantRepository 商品规格数据访问接口
type VariantRepository interface {
	GetByID(id uint) (*models.ProductVariant, error)
	ListSale(filter SaleVariantFilter) ([]models.ProductVariant, int64, error)
	Create(variant *models.ProductVariant) error
	Update(variant *models.ProductVariant) error
	Delete(id uint) error
	DecrementStock(id uint, quantity int) (int64, error)
	WithTx(tx *gorm.DB) *GormVariantRepository
}

// GormVariantRepository GORM 实现
type GormVariantRepository struct {
	db *gorm.DB
}

// NewVariantRepository 创建规格仓库
func NewVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVariantRepository) WithTx(tx *gorm.DB) *GormVariantRepository {
	if tx == nil {
		return r
	}
	return &GormVariantRepository{db: tx}
}

// GetByID 根据 ID 获取规格（含商品）
func (r *GormVariantRepository) GetByID(id uint) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.Preload("Product").First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// ListSale 折扣比例不低于阈值的规格，按折扣比例倒序
func (r *GormVariantRepository) ListSale(filter SaleVariantFilter) ([]models.ProductVariant, int64, error) {
	var variants []models.ProductVariant
	query := r.db.Model(&models.ProductVariant{}).
		Joins("JOIN products ON products.id = product_variants.product_id AND products.deleted_at IS NULL").
		Where("product_variants.discount IS NOT NULL AND product_variants.price > 0")
	if filter.MinDiscountRatio.IsPositive() {
		query = query.Where(saleRatioSQL+" >= ?", filter.MinDiscountRatio.InexactFloat64())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query.Preload("Product"), filter.Page, filter.PageSize)
	if err := query.Order(saleRatioSQL + " DESC").Order("product_variants.id ASC").Find(&variants).Error; err != nil {
		return nil, 0, err
	}
	return variants, total, nil
}

// Create 创建规格
func (r *GormVariantRepository) Create(variant *models.ProductVariant) error {
	return r.db.Omit("Product").Create(variant).Error
}

// Update 更新规格
func (r *GormVariantRepository) Update(variant *models.ProductVariant) error {
	return r.db.Omit("Product").Save(variant).Error
}

// Delete 删除规格
func (r *GormVariantRepository) Delete(id uint) error {
	return r.db.Delete(&models.ProductVariant{}, id).Error
}

// DecrementStock 条件扣减库存，库存不足时影响行数为 0
func (r *GormVariantRepository) DecrementStock(id uint, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, nil
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
