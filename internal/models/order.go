package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表（仅在支付回调确认成功后创建）
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                        // 主键
	UserID           *uint          `gorm:"index" json:"user_id"`                                        // 下单用户（游客为空）
	Name             string         `gorm:"type:varchar(255)" json:"name"`                               // 收货人
	Email            string         `gorm:"type:varchar(255)" json:"email"`                              // 联系邮箱
	CustomerPhone    string         `gorm:"type:varchar(32);not null" json:"customer_phone"`             // 联系电话
	Governorate      string         `gorm:"type:varchar(100)" json:"governorate"`                        // 省份
	City             string         `gorm:"type:varchar(100)" json:"city"`                               // 城市
	Street           string         `gorm:"type:varchar(255)" json:"street"`                             // 街道
	BuildingNumber   string         `gorm:"type:varchar(50)" json:"building_number"`                     // 楼号
	FloorNumber      string         `gorm:"type:varchar(50)" json:"floor_number"`                        // 楼层
	ApartmentNumber  string         `gorm:"type:varchar(50)" json:"apartment_number"`                    // 门牌
	Landmark         string         `gorm:"type:varchar(255)" json:"landmark"`                           // 地标
	PaymentReference string         `gorm:"type:varchar(64);index" json:"payment_reference"`             // 网关参考号
	ShippingCost     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`  // 运费快照
	TotalAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`   // 订单总额（服务端计算）
	PaymentStatus    string         `gorm:"type:varchar(20);not null;index" json:"payment_status"`       // 支付状态
	OrderStatus      string         `gorm:"type:varchar(20);not null;index" json:"order_status"`         // 履约状态
	PaidAt           *time.Time     `gorm:"index" json:"paid_at"`                                        // 支付时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
