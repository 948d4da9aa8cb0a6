package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentTransactionRepository 支付流水数据访问接口
type PaymentTransactionRepository interface {
	Create(txn *models.PaymentTransaction) error
	GetByID(id uint) (*models.PaymentTransaction, error)
	GetByReference(reference string) (*models.PaymentTransaction, error)
	GetByReferenceForUpdate(reference string) (*models.PaymentTransaction, error)
	UpdateStatus(reference, status string, at time.Time) error
	MarkSuccess(reference string, at time.Time) (int64, error)
	ExpireIfPending(reference string, at time.Time) (int64, error)
	CountOpenByCart(cartID uint) (int64, error)
	Delete(id uint) error
	List(filter PaymentTransactionListFilter) ([]models.PaymentTransaction, int64, error)
	CreateTombstone(tombstone *models.PaymentReferenceTombstone) error
	GetTombstone(reference string) (*models.PaymentReferenceTombstone, error)
	DeleteTombstonesBefore(reference string, before time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormPaymentTransactionRepository
}

// GormPaymentTransactionRepository GORM 实现
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

// NewPaymentTransactionRepository 创建支付流水仓库
func NewPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentTransactionRepository) WithTx(tx *gorm.DB) *GormPaymentTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentTransactionRepository{db: tx}
}

// Create 创建支付流水
func (r *GormPaymentTransactionRepository) Create(txn *models.PaymentTransaction) error {
	return r.db.Create(txn).Error
}

func (r *GormPaymentTransactionRepository) first(query *gorm.DB) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := query.First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByID 根据 ID 获取支付流水
func (r *GormPaymentTransactionRepository) GetByID(id uint) (*models.PaymentTransaction, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByReference 根据网关参考号获取支付流水
func (r *GormPaymentTransactionRepository) GetByReference(reference string) (*models.PaymentTransaction, error) {
	return r.first(r.db.Where("reference = ?", reference))
}

// GetByReferenceForUpdate 加行锁读取支付流水（sqlite 下忽略锁子句）
func (r *GormPaymentTransactionRepository) GetByReferenceForUpdate(reference string) (*models.PaymentTransaction, error) {
	return r.first(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("reference = ?", reference))
}

// UpdateStatus 写入网关回调状态，已成功的流水不会被覆盖
func (r *GormPaymentTransactionRepository) UpdateStatus(reference, status string, at time.Time) error {
	return r.db.Model(&models.PaymentTransaction{}).
		Where("reference = ? AND status <> ?", reference, constants.PaymentTransactionStatusSuccess).
		Updates(map[string]interface{}{
			"status":           status,
			"last_callback_at": at,
			"updated_at":       at,
		}).Error
}

// MarkSuccess 原子地将流水切换为 SUCCESS，返回影响行数（0 表示已被其他请求抢先处理）
func (r *GormPaymentTransactionRepository) MarkSuccess(reference string, at time.Time) (int64, error) {
	result := r.db.Model(&models.PaymentTransaction{}).
		Where("reference = ? AND status <> ?", reference, constants.PaymentTransactionStatusSuccess).
		Updates(map[string]interface{}{
			"status":           constants.PaymentTransactionStatusSuccess,
			"last_callback_at": at,
			"updated_at":       at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExpireIfPending 仍处于 PENDING 的流水标记为 EXPIRED
func (r *GormPaymentTransactionRepository) ExpireIfPending(reference string, at time.Time) (int64, error) {
	result := r.db.Model(&models.PaymentTransaction{}).
		Where("reference = ? AND status = ?", reference, constants.PaymentTransactionStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.PaymentTransactionStatusExpired,
			"updated_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Delete 删除支付流水
func (r *GormPaymentTransactionRepository) Delete(id uint) error {
	return r.db.Delete(&models.PaymentTransaction{}, id).Error
}

// List 支付流水列表（后台排查用）
func (r *GormPaymentTransactionRepository) List(filter PaymentTransactionListFilter) ([]models.PaymentTransaction, int64, error) {
	query := r.db.Model(&models.PaymentTransaction{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if reference := strings.TrimSpace(filter.Reference); reference != "" {
		query = query.Where("reference = ?", reference)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentTransaction
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CreateTombstone 写入已消费参考号
func (r *GormPaymentTransactionRepository) CreateTombstone(tombstone *models.PaymentReferenceTombstone) error {
	return r.db.Create(tombstone).Error
}

// CountOpenByCart 统计仍可能收到 SUCCESS 回调的流水数量（未消费即视为未结清）
func (r *GormPaymentTransactionRepository) CountOpenByCart(cartID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentTransaction{}).
		Where("cart_id = ? AND status <> ?", cartID, constants.PaymentTransactionStatusSuccess).
		Count(&count).Error
	return count, err
}

// GetTombstone 查询已消费参考号
func (r *GormPaymentTransactionRepository) GetTombstone(reference string) (*models.PaymentReferenceTombstone, error) {
	var tombstone models.PaymentReferenceTombstone
	if err := r.db.Where("reference = ?", reference).First(&tombstone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tombstone, nil
}

// DeleteTombstonesBefore 删除早于指定时间的墓碑，reference 为空时清理全部过期记录
func (r *GormPaymentTransactionRepository) DeleteTombstonesBefore(reference string, before time.Time) (int64, error) {
	query := r.db.Where("consumed_at < ?", before)
	if reference = strings.TrimSpace(reference); reference != "" {
		query = query.Where("reference = ?", reference)
	}
	result := query.Delete(&models.PaymentReferenceTombstone{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
