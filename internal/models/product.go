package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                // 主键
	Name        string         `gorm:"type:varchar(200);not null;index" json:"name"`        // 商品名称
	Slug        string         `gorm:"type:varchar(220);uniqueIndex;not null" json:"slug"`  // 唯一标识
	Description string         `gorm:"type:text" json:"description"`                        // 商品描述
	CategoryID  *uint          `gorm:"index" json:"category_id"`                            // 分类ID（可空）
	Brand       string         `gorm:"type:varchar(100);index" json:"brand"`                // 品牌
	Priority    int            `gorm:"not null;default:1;index" json:"priority"`            // 排序优先级（越小越靠前）
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                          // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间

	Category *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"` // 关联分类
	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`  // 规格列表
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// LowestEffectivePrice 返回商品各规格中最低的实际售价，无规格时 ok 为 false
func (p *Product) LowestEffectivePrice() (Money, bool) {
	if p == nil || len(p.Variants) == 0 {
		return Money{}, false
	}
	lowest := p.Variants[0].EffectivePrice()
	for i := 1; i < len(p.Variants); i++ {
		price := p.Variants[i].EffectivePrice()
		if price.Decimal.LessThan(lowest.Decimal) {
			lowest = price
		}
	}
	return lowest, true
}
