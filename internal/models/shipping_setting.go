package models

import "time"

// ShippingSetting 按省份配置的固定运费
type ShippingSetting struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Governorate string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"governorate"`
	Cost        Money     `gorm:"type:decimal(20,2);not null;default:60" json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ShippingSetting) TableName() string {
	return "shipping_settings"
}
