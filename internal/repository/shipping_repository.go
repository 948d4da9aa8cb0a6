package repository

import (
	"errors"

	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
)

// ShippingSettingRepository 运费配置数据访问接口
type ShippingSettingRepository interface {
	List() ([]models.ShippingSetting, error)
	GetByID(id uint) (*models.ShippingSetting, error)
	GetByGovernorate(governorate string) (*models.ShippingSetting, error)
	First() (*models.ShippingSetting, error)
	Create(setting *models.ShippingSetting) error
	Update(setting *models.ShippingSetting) error
	Delete(id uint) error
}

// GormShippingSettingRepository GORM 实现
type GormShippingSettingRepository struct {
	db *gorm.DB
}

// NewShippingSettingRepository 创建运费配置仓库
func NewShippingSettingRepository(db *gorm.DB) *GormShippingSettingRepository {
	return &GormShippingSettingRepository{db: db}
}

func (r *GormShippingSettingRepository) first(query *gorm.DB) (*models.ShippingSetting, error) {
	var setting models.ShippingSetting
	if err := query.First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// List 获取全部运费配置
func (r *GormShippingSettingRepository) List() ([]models.ShippingSetting, error) {
	settings := make([]models.ShippingSetting, 0)
	if err := r.db.Order("governorate ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// GetByID 根据 ID 获取运费配置
func (r *GormShippingSettingRepository) GetByID(id uint) (*models.ShippingSetting, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByGovernorate 按省份精确匹配运费配置
func (r *GormShippingSettingRepository) GetByGovernorate(governorate string) (*models.ShippingSetting, error) {
	return r.first(r.db.Where("governorate = ?", governorate))
}

// First 获取首条运费配置（按 ID），作为兜底
func (r *GormShippingSettingRepository) First() (*models.ShippingSetting, error) {
	return r.first(r.db.Order("id ASC"))
}

// Create 创建运费配置
func (r *GormShippingSettingRepository) Create(setting *models.ShippingSetting) error {
	return r.db.Create(setting).Error
}

// Update 更新运费配置
func (r *GormShippingSettingRepository) Update(setting *models.ShippingSetting) error {
	return r.db.Save(setting).Error
}

// Delete 删除运费配置
func (r *GormShippingSettingRepository) Delete(id uint) error {
	return r.db.Delete(&models.ShippingSetting{}, id).Error
}
