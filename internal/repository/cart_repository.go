package repository

import (
	"errors"
	"time"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.Cart, error)
	GetByUser(userID uint) (*models.Cart, error)
	GetBySession(sessionKey string) (*models.Cart, error)
	GetWithItems(id uint) (*models.Cart, error)
	Create(cart *models.Cart) error
	GetItem(cartID, itemID uint) (*models.CartItem, error)
	GetItemByVariant(cartID, variantID uint) (*models.CartItem, error)
	CreateItem(item *models.CartItem) error
	UpdateItemQuantity(cartID, itemID uint, quantity int) error
	DeleteItem(cartID, itemID uint) (int64, error)
	ClearItems(cartID uint) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

func (r *GormCartRepository) first(query *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetByID 根据 ID 获取购物车
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByUser 获取用户购物车
func (r *GormCartRepository) GetByUser(userID uint) (*models.Cart, error) {
	return r.first(r.db.Where("user_id = ?", userID))
}

// GetBySession 获取匿名会话购物车
func (r *GormCartRepository) GetBySession(sessionKey string) (*models.Cart, error) {
	return r.first(r.db.Where("session_key = ?", sessionKey))
}

// GetWithItems 获取购物车及其商品项（含规格与商品）
func (r *GormCartRepository) GetWithItems(id uint) (*models.Cart, error) {
	query := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.id ASC")
		}).
		Preload("Items.Variant").
		Preload("Items.Variant.Product").
		Where("id = ?", id)
	return r.first(query)
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	return r.db.Omit("Items").Create(cart).Error
}

// GetItem 获取购物车内指定商品项，归属不匹配时返回 nil
func (r *GormCartRepository) GetItem(cartID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Preload("Variant").Where("id = ? AND cart_id = ?", itemID, cartID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetItemByVariant 获取购物车内同规格商品项
func (r *GormCartRepository) GetItemByVariant(cartID, variantID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Where("cart_id = ? AND variant_id = ?", cartID, variantID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItem 新增购物车项
func (r *GormCartRepository) CreateItem(item *models.CartItem) error {
	return r.db.Omit("Variant").Create(item).Error
}

// UpdateItemQuantity 更新购物车项数量
func (r *GormCartRepository) UpdateItemQuantity(cartID, itemID uint, quantity int) error {
	return r.db.Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now(),
		}).Error
}

// DeleteItem 删除购物车项，返回影响行数
func (r *GormCartRepository) DeleteItem(cartID, itemID uint) (int64, error) {
	result := r.db.Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&models.CartItem{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClearItems 清空购物车项（保留购物车本身）
func (r *GormCartRepository) ClearItems(cartID uint) error {
	return r.db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
