package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart 购物车（按用户或匿名会话唯一）
type Cart struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                       // 主键
	UserID     *uint     `gorm:"uniqueIndex" json:"user"`                                    // 所属用户（与会话互斥）
	SessionKey *string   `gorm:"type:varchar(64);uniqueIndex" json:"-"`                      // 匿名会话标识
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                                 // 更新时间

	Items []CartItem `gorm:"foreignKey:CartID" json:"items"` // 购物车项
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// Subtotal 计算购物车小计：Σ(实际售价 × 数量)，要求 Items.Variant 已加载
func (c *Cart) Subtotal() Money {
	total := decimal.Zero
	if c == nil {
		return NewMoneyFromDecimal(total)
	}
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal().Decimal)
	}
	return NewMoneyFromDecimal(total)
}

// CartItem 购物车项
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                           // 主键
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_item_variant" json:"-"`            // 购物车ID
	VariantID uint      `gorm:"not null;uniqueIndex:idx_cart_item_variant" json:"-"`            // 规格ID
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`                             // 数量
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                                     // 更新时间

	Variant *ProductVariant `gorm:"foreignKey:VariantID" json:"variant,omitempty"` // 关联规格
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal 行金额，规格未加载时为 0
func (i *CartItem) LineTotal() Money {
	if i == nil || i.Variant == nil {
		return Money{}
	}
	unit := i.Variant.EffectivePrice()
	return NewMoneyFromDecimal(unit.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity))))
}
