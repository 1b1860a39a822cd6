package repository

import (
	"errors"

	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalRepository 提现数据访问接口
type WithdrawalRepository interface {
	Create(record *models.MerchantWithdrawalRecord) error
	Update(record *models.MerchantWithdrawalRecord) error
	GetByID(id uint) (*models.MerchantWithdrawalRecord, error)
	GetByIDForUpdate(id uint) (*models.MerchantWithdrawalRecord, error)
	List(filter WithdrawalListFilter) ([]models.MerchantWithdrawalRecord, int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormWithdrawalRepository
}

// GormWithdrawalRepository GORM 提现仓储实现
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓储
func NewWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// Transaction 执行事务
func (r *GormWithdrawalRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormWithdrawalRepository) WithTx(tx *gorm.DB) *GormWithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawalRepository{db: tx}
}

// Create 创建提现单
func (r *GormWithdrawalRepository) Create(record *models.MerchantWithdrawalRecord) error {
	return r.db.Create(record).Error
}

// Update 更新提现单
func (r *GormWithdrawalRepository) Update(record *models.MerchantWithdrawalRecord) error {
	return r.db.Save(record).Error
}

// GetByID 按ID获取提现单
func (r *GormWithdrawalRepository) GetByID(id uint) (*models.MerchantWithdrawalRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.MerchantWithdrawalRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByIDForUpdate 按ID加锁获取提现单
func (r *GormWithdrawalRepository) GetByIDForUpdate(id uint) (*models.MerchantWithdrawalRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.MerchantWithdrawalRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 分页查询提现单
func (r *GormWithdrawalRepository) List(filter WithdrawalListFilter) ([]models.MerchantWithdrawalRecord, int64, error) {
	query := r.db.Model(&models.MerchantWithdrawalRecord{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var records []models.MerchantWithdrawalRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
