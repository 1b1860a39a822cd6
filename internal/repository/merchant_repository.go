package repository

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
)

// MerchantRepository 商户数据访问接口
type MerchantRepository interface {
	Create(merchant *models.Merchant) error
	Update(merchant *models.Merchant) error
	Delete(id uint) error
	GetByID(id uint) (*models.Merchant, error)
	GetByMerchantNumber(merchantNumber string) (*models.Merchant, error)
	ExistsByMerchantNumber(merchantNumber string) (bool, error)
	List(filter MerchantListFilter) ([]models.Merchant, int64, error)
	GetEncryptionByMerchantID(merchantID uint) (*models.MerchantEncryption, error)
	SaveEncryption(encryption *models.MerchantEncryption) error
	WithTx(tx *gorm.DB) *GormMerchantRepository
}

// GormMerchantRepository GORM 商户仓储实现
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓储
func NewMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMerchantRepository) WithTx(tx *gorm.DB) *GormMerchantRepository {
	if tx == nil {
		return r
	}
	return &GormMerchantRepository{db: tx}
}

// Create 创建商户
func (r *GormMerchantRepository) Create(merchant *models.Merchant) error {
	return r.db.Create(merchant).Error
}

// Update 更新商户
func (r *GormMerchantRepository) Update(merchant *models.Merchant) error {
	return r.db.Save(merchant).Error
}

// Delete 删除商户（软删除）
func (r *GormMerchantRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.Merchant{}, id).Error
}

// GetByID 按ID获取商户
func (r *GormMerchantRepository) GetByID(id uint) (*models.Merchant, error) {
	if id == 0 {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByMerchantNumber 按商户号获取商户
func (r *GormMerchantRepository) GetByMerchantNumber(merchantNumber string) (*models.Merchant, error) {
	merchantNumber = strings.TrimSpace(merchantNumber)
	if merchantNumber == "" {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("merchant_number = ?", merchantNumber).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// ExistsByMerchantNumber 商户号是否已存在
func (r *GormMerchantRepository) ExistsByMerchantNumber(merchantNumber string) (bool, error) {
	merchantNumber = strings.TrimSpace(merchantNumber)
	if merchantNumber == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Merchant{}).
		Where("merchant_number = ?", merchantNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 分页查询商户
func (r *GormMerchantRepository) List(filter MerchantListFilter) ([]models.Merchant, int64, error) {
	query := r.db.Model(&models.Merchant{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		cond, count := buildKeywordLikeCondition(r.db, []string{"merchant_number", "name", "email", "mobile"})
		if count > 0 {
			query = query.Where(cond, repeatLikeArgs("%"+keyword+"%", count)...)
		}
	}
	if trimmed := strings.TrimSpace(filter.MerchantNumber); trimmed != "" {
		query = query.Where("merchant_number = ?", trimmed)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
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

	var merchants []models.Merchant
	if err := query.Order("id desc").Find(&merchants).Error; err != nil {
		return nil, 0, err
	}
	return merchants, total, nil
}

// GetEncryptionByMerchantID 获取商户签名配置
func (r *GormMerchantRepository) GetEncryptionByMerchantID(merchantID uint) (*models.MerchantEncryption, error) {
	if merchantID == 0 {
		return nil, nil
	}
	var encryption models.MerchantEncryption
	if err := r.db.Where("merchant_id = ?", merchantID).First(&encryption).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &encryption, nil
}

// SaveEncryption 保存商户签名配置
func (r *GormMerchantRepository) SaveEncryption(encryption *models.MerchantEncryption) error {
	return r.db.Save(encryption).Error
}
