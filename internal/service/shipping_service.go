package service

import (
	"strings"

	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"github.com/shopspring/decimal"
)

// ShippingService 运费配置服务
type ShippingService struct {
	repo        repository.ShippingSettingRepository
	defaultCost models.Money
}

// NewShippingService 创建运费服务，defaultCost 用于未填写运费的新配置
func NewShippingService(repo repository.ShippingSettingRepository, defaultCost string) *ShippingService {
	cost, err := decimal.NewFromString(strings.TrimSpace(defaultCost))
	if err != nil || cost.IsNegative() {
		cost = decimal.RequireFromString("60.00")
	}
	return &ShippingService{
		repo:        repo,
		defaultCost: models.NewMoneyFromDecimal(cost),
	}
}

// ShippingSettingInput 运费配置输入
type ShippingSettingInput struct {
	Governorate string
	Cost        *models.Money
}

// ListShippingSettings 获取全部运费配置
func (s *ShippingService) ListShippingSettings() ([]models.ShippingSetting, error) {
	return s.repo.List()
}

// Resolve 按省份查找运费，无匹配时使用首条配置，完全无配置返回 ErrNoShippingConfigured
func (s *ShippingService) Resolve(governorate string) (*models.ShippingSetting, error) {
	governorate = strings.TrimSpace(governorate)
	if governorate != "" {
		setting, err := s.repo.GetByGovernorate(governorate)
		if err != nil {
			return nil, err
		}
		if setting != nil {
			return setting, nil
		}
	}
	setting, err := s.repo.First()
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, ErrNoShippingConfigured
	}
	return setting, nil
}

// Create 创建运费配置
func (s *ShippingService) Create(input ShippingSettingInput) (*models.ShippingSetting, error) {
	governorate := strings.TrimSpace(input.Governorate)
	if governorate == "" {
		return nil, ErrShippingInvalid
	}
	cost := s.defaultCost
	if input.Cost != nil {
		cost = *input.Cost
	}
	if cost.Decimal.IsNegative() {
		return nil, ErrShippingInvalid
	}
	exist, err := s.repo.GetByGovernorate(governorate)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, ErrShippingGovernorateExists
	}
	setting := &models.ShippingSetting{Governorate: governorate, Cost: models.NewMoneyFromDecimal(cost.Decimal)}
	if err := s.repo.Create(setting); err != nil {
		return nil, err
	}
	return setting, nil
}

// Update 更新运费配置
func (s *ShippingService) Update(id uint, input ShippingSettingInput) (*models.ShippingSetting, error) {
	setting, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, ErrShippingSettingNotFound
	}
	if governorate := strings.TrimSpace(input.Governorate); governorate != "" && governorate != setting.Governorate {
		exist, err := s.repo.GetByGovernorate(governorate)
		if err != nil {
			return nil, err
		}
		if exist != nil && exist.ID != setting.ID {
			return nil, ErrShippingGovernorateExists
		}
		setting.Governorate = governorate
	}
	if input.Cost != nil {
		if input.Cost.Decimal.IsNegative() {
			return nil, ErrShippingInvalid
		}
		setting.Cost = models.NewMoneyFromDecimal(input.Cost.Decimal)
	}
	if err := s.repo.Update(setting); err != nil {
		return nil, err
	}
	return setting, nil
}

// Delete 删除运费配置
func (s *ShippingService) Delete(id uint) error {
	setting, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if setting == nil {
		return ErrShippingSettingNotFound
	}
	return s.repo.Delete(id)
}
