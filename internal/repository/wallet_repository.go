package repository

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository 商户钱包数据访问接口
type WalletRepository interface {
	GetByMerchantID(merchantID uint) (*models.MerchantWallet, error)
	GetByMerchantIDForUpdate(merchantID uint) (*models.MerchantWallet, error)
	Create(wallet *models.MerchantWallet) error
	Update(wallet *models.MerchantWallet) error
	CreateRecord(record *models.MerchantWalletRecord) error
	CreatePrepaidRecord(record *models.MerchantWalletPrepaidRecord) error
	ListRecords(filter WalletRecordListFilter) ([]models.MerchantWalletRecord, int64, error)
	ListPrepaidRecords(filter WalletRecordListFilter) ([]models.MerchantWalletPrepaidRecord, int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormWalletRepository
}

// GormWalletRepository GORM 钱包仓储实现
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWalletRepository) WithTx(tx *gorm.DB) *GormWalletRepository {
	if tx == nil {
		return r
	}
	return &GormWalletRepository{db: tx}
}

// Transaction 执行事务
func (r *GormWalletRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByMerchantID 按商户ID获取钱包
func (r *GormWalletRepository) GetByMerchantID(merchantID uint) (*models.MerchantWallet, error) {
	if merchantID == 0 {
		return nil, nil
	}
	var wallet models.MerchantWallet
	if err := r.db.Where("merchant_id = ?", merchantID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetByMerchantIDForUpdate 按商户ID加锁获取钱包
func (r *GormWalletRepository) GetByMerchantIDForUpdate(merchantID uint) (*models.MerchantWallet, error) {
	if merchantID == 0 {
		return nil, nil
	}
	var wallet models.MerchantWallet
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ?", merchantID).
		First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// Create 创建钱包
func (r *GormWalletRepository) Create(wallet *models.MerchantWallet) error {
	return r.db.Create(wallet).Error
}

// Update 更新钱包
func (r *GormWalletRepository) Update(wallet *models.MerchantWallet) error {
	return r.db.Save(wallet).Error
}

// CreateRecord 追加可用/不可用余额流水
func (r *GormWalletRepository) CreateRecord(record *models.MerchantWalletRecord) error {
	return r.db.Create(record).Error
}

// CreatePrepaidRecord 追加预付流水
func (r *GormWalletRepository) CreatePrepaidRecord(record *models.MerchantWalletPrepaidRecord) error {
	return r.db.Create(record).Error
}

// ListRecords 分页查询钱包流水
func (r *GormWalletRepository) ListRecords(filter WalletRecordListFilter) ([]models.MerchantWalletRecord, int64, error) {
	query := r.db.Model(&models.MerchantWalletRecord{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if trimmed := strings.TrimSpace(filter.TradeNo); trimmed != "" {
		query = query.Where("trade_no = ?", trimmed)
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

	var records []models.MerchantWalletRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListPrepaidRecords 分页查询预付流水
func (r *GormWalletRepository) ListPrepaidRecords(filter WalletRecordListFilter) ([]models.MerchantWalletPrepaidRecord, int64, error) {
	query := r.db.Model(&models.MerchantWalletPrepaidRecord{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	// 预付流水不挂单号，忽略 filter.TradeNo
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

	var records []models.MerchantWalletPrepaidRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
