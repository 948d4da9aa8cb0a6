package models

import "time"

// PaymentTransaction 待支付流水：记录网关参考号、购物车与下单时冻结的收货信息
type PaymentTransaction struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	Reference       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"` // 网关参考号
	CartID          *uint      `gorm:"index" json:"cart_id"`                                   // 关联购物车（购物车删除后仍保留）
	UserID          *uint      `gorm:"index" json:"user_id"`                                   // 下单用户（游客为空）
	Status          string     `gorm:"type:varchar(32);not null;index" json:"status"`          // PENDING / SUCCESS / 网关原样状态
	Amount          Money      `gorm:"type:decimal(20,2);not null" json:"amount"`              // 发起时总额（含运费）
	ShippingCost    Money      `gorm:"type:decimal(20,2);not null" json:"shipping_cost"`       // 发起时运费
	Currency        string     `gorm:"type:varchar(8);not null" json:"currency"`
	CashierURL      string     `gorm:"type:varchar(1024)" json:"cashier_url"`
	Name            string     `gorm:"type:varchar(255)" json:"name"`
	Email           string     `gorm:"type:varchar(255)" json:"email"`
	CustomerPhone   string     `gorm:"type:varchar(32);not null" json:"customer_phone"`
	Governorate     string     `gorm:"type:varchar(100)" json:"governorate"`
	City            string     `gorm:"type:varchar(100)" json:"city"`
	Street          string     `gorm:"type:varchar(255)" json:"street"`
	BuildingNumber  string     `gorm:"type:varchar(50)" json:"building_number"`
	FloorNumber     string     `gorm:"type:varchar(50)" json:"floor_number"`
	ApartmentNumber string     `gorm:"type:varchar(50)" json:"apartment_number"`
	Landmark        string     `gorm:"type:varchar(255)" json:"landmark"`
	LastCallbackAt  *time.Time `json:"last_callback_at"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// PaymentReferenceTombstone 已消费参考号墓碑，用于识别流水删除后的重复回调
type PaymentReferenceTombstone struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Reference  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	ConsumedAt time.Time `gorm:"not null;index" json:"consumed_at"`
}

// TableName 指定表名
func (PaymentReferenceTombstone) TableName() string {
	return "payment_reference_tombstones"
}
