package models

import "time"

// OrderItem 订单项，保存下单时的商品快照
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                          // 主键
	OrderID   uint      `gorm:"not null;index" json:"order_id"`                // 订单ID
	ProductID uint      `gorm:"index" json:"product_id"`                       // 商品ID
	VariantID uint      `gorm:"index" json:"variant_id"`                       // 规格ID
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`        // 商品名称快照
	SizeML    int       `gorm:"not null;default:0" json:"size_ml"`             // 容量快照
	Quantity  int       `gorm:"not null" json:"quantity"`                      // 数量
	Price     Money     `gorm:"type:decimal(20,2);not null" json:"price"`      // 实际单价快照
	CreatedAt time.Time `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
