package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 分类表
type Category struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                 // 主键
	Name               string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`   // 分类名称
	Slug               string         `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`   // 唯一标识
	ShortDescription   string         `gorm:"type:varchar(255)" json:"short_description"`           // 简短描述
	IsSpecial          bool           `gorm:"not null;default:false;index" json:"is_special"`       // 是否专题分类
	SpecialTitle       string         `gorm:"type:varchar(255)" json:"special_title,omitempty"`     // 专题标题
	SpecialDescription string         `gorm:"type:text" json:"special_description,omitempty"`       // 专题描述
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                           // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
