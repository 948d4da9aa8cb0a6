package repository

import (
	"errors"
	"time"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
)

// PasswordResetCodeRepository 找回密码验证码数据访问接口
type PasswordResetCodeRepository interface {
	Create(code *models.PasswordResetCode) error
	GetLatest(email string) (*models.PasswordResetCode, error)
	IncrementAttempt(id uint) error
	Consume(id uint, at time.Time) (bool, error)
}

// GormPasswordResetCodeRepository GORM 实现
type GormPasswordResetCodeRepository struct {
	db *gorm.DB
}

// NewPasswordResetCodeRepository 创建验证码仓库
func NewPasswordResetCodeRepository(db *gorm.DB) *GormPasswordResetCodeRepository {
	return &GormPasswordResetCodeRepository{db: db}
}

// Create 写入验证码
func (r *GormPasswordResetCodeRepository) Create(code *models.PasswordResetCode) error {
	return r.db.Create(code).Error
}

// GetLatest 获取邮箱最近一次发送的验证码
func (r *GormPasswordResetCodeRepository) GetLatest(email string) (*models.PasswordResetCode, error) {
	var code models.PasswordResetCode
	err := r.db.Where("email = ?", email).
		Order("sent_at DESC").
		Order("id DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// IncrementAttempt 失败次数加一
func (r *GormPasswordResetCodeRepository) IncrementAttempt(id uint) error {
	return r.db.Model(&models.PasswordResetCode{}).
		Where("id = ?", id).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + 1")).Error
}

// Consume 标记验证码已使用，仅对未使用的记录生效，返回是否抢到
func (r *GormPasswordResetCodeRepository) Consume(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.PasswordResetCode{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
