package repository

import (
	"strings"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
)

// ContactMessageRepository 联系留言数据访问接口
type ContactMessageRepository interface {
	Create(message *models.ContactMessage) error
	List(filter ContactMessageListFilter) ([]models.ContactMessage, int64, error)
}

// ContactMessageListFilter 留言列表筛选
type ContactMessageListFilter struct {
	Page     int
	PageSize int
	Keyword  string
}

// GormContactMessageRepository GORM 实现
type GormContactMessageRepository struct {
	db *gorm.DB
}

// NewContactMessageRepository 创建留言仓库
func NewContactMessageRepository(db *gorm.DB) *GormContactMessageRepository {
	return &GormContactMessageRepository{db: db}
}

// Create 保存留言
func (r *GormContactMessageRepository) Create(message *models.ContactMessage) error {
	return r.db.Create(message).Error
}

// List 按时间倒序分页查询留言
func (r *GormContactMessageRepository) List(filter ContactMessageListFilter) ([]models.ContactMessage, int64, error) {
	query := r.db.Model(&models.ContactMessage{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, "name", "email", "subject")
		query = query.Where(condition, repeatLikeArgs("%"+escapeLike(keyword)+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	messages := make([]models.ContactMessage, 0)
	if err := applyPagination(query.Order("created_at DESC").Order("id DESC"), filter.Page, filter.PageSize).Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
