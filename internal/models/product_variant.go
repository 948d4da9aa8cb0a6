package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant 商品规格表（容量、价格、折扣、库存）
type ProductVariant struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                  // 主键
	ProductID  uint           `gorm:"not null;index" json:"product_id"`                      // 商品ID
	SizeML     int            `gorm:"not null;default:0;index" json:"size_ml"`               // 容量（毫升）
	Price      Money          `gorm:"type:decimal(20,2);not null" json:"price"`              // 原价
	Discount   *Money         `gorm:"type:decimal(20,2)" json:"discount"`                    // 折扣金额（可空）
	Stock      int            `gorm:"not null;default:0" json:"stock"`                       // 库存
	WithBox    bool           `gorm:"not null;default:true" json:"withbox"`                  // 是否带盒
	TravelSize bool           `gorm:"not null;default:false" json:"travelsize"`              // 是否旅行装
	Caption    string         `gorm:"type:varchar(255)" json:"caption"`                      // 规格说明
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`                                            // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}

// DiscountOrZero 返回折扣金额，未设置时为 0
func (v *ProductVariant) DiscountOrZero() decimal.Decimal {
	if v == nil || v.Discount == nil {
		return decimal.Zero
	}
	return v.Discount.Decimal
}

// EffectivePrice 实际售价 = 原价 - 折扣，保留 2 位小数（向下取整）
func (v *ProductVariant) EffectivePrice() Money {
	if v == nil {
		return Money{}
	}
	price := v.Price.Decimal.Sub(v.DiscountOrZero())
	if price.IsNegative() {
		price = decimal.Zero
	}
	return Money{Decimal: price.RoundFloor(2)}
}

// DiscountRatio 折扣占原价比例（0~1）
func (v *ProductVariant) DiscountRatio() decimal.Decimal {
	if v == nil || v.Discount == nil || !v.Price.Decimal.IsPositive() {
		return decimal.Zero
	}
	return v.Discount.Decimal.Div(v.Price.Decimal)
}
