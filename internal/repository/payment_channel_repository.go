package repository

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
)

// PaymentChannelRepository 支付通道数据访问接口
type PaymentChannelRepository interface {
	CreateChannel(channel *models.PaymentChannel) error
	UpdateChannel(channel *models.PaymentChannel) error
	DeleteChannel(id uint) error
	GetChannelByID(id uint) (*models.PaymentChannel, error)
	GetChannelByCode(code string) (*models.PaymentChannel, error)
	ListChannels(filter ChannelListFilter) ([]models.PaymentChannel, int64, error)
	ListEnabledChannels(code, paymentType string) ([]models.PaymentChannel, error)
	CreateAccount(account *models.PaymentChannelAccount) error
	UpdateAccount(account *models.PaymentChannelAccount) error
	DeleteAccount(id uint) error
	GetAccountByID(id uint) (*models.PaymentChannelAccount, error)
	ListAccountsByChannel(channelID uint) ([]models.PaymentChannelAccount, error)
	ListEligibleAccounts(channelID uint) ([]models.PaymentChannelAccount, error)
	WithTx(tx *gorm.DB) *GormPaymentChannelRepository
}

// GormPaymentChannelRepository GORM 支付通道仓储实现
type GormPaymentChannelRepository struct {
	db *gorm.DB
}

// NewPaymentChannelRepository 创建支付通道仓储
func NewPaymentChannelRepository(db *gorm.DB) *GormPaymentChannelRepository {
	return &GormPaymentChannelRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentChannelRepository) WithTx(tx *gorm.DB) *GormPaymentChannelRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentChannelRepository{db: tx}
}

// CreateChannel 创建通道
func (r *GormPaymentChannelRepository) CreateChannel(channel *models.PaymentChannel) error {
	return r.db.Create(channel).Error
}

// UpdateChannel 更新通道
func (r *GormPaymentChannelRepository) UpdateChannel(channel *models.PaymentChannel) error {
	return r.db.Save(channel).Error
}

// DeleteChannel 删除通道（软删除）
func (r *GormPaymentChannelRepository) DeleteChannel(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.PaymentChannel{}, id).Error
}

// GetChannelByID 按ID获取通道
func (r *GormPaymentChannelRepository) GetChannelByID(id uint) (*models.PaymentChannel, error) {
	if id == 0 {
		return nil, nil
	}
	var channel models.PaymentChannel
	if err := r.db.First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// GetChannelByCode 按编码获取通道
func (r *GormPaymentChannelRepository) GetChannelByCode(code string) (*models.PaymentChannel, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var channel models.PaymentChannel
	if err := r.db.Where("code = ?", code).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// ListChannels 分页查询通道
func (r *GormPaymentChannelRepository) ListChannels(filter ChannelListFilter) ([]models.PaymentChannel, int64, error) {
	query := r.db.Model(&models.PaymentChannel{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		cond, count := buildKeywordLikeCondition(r.db, []string{"code", "name"})
		if count > 0 {
			query = query.Where(cond, repeatLikeArgs("%"+keyword+"%", count)...)
		}
	}
	if filter.PaymentType != "" {
		query = query.Where("payment_type = ?", filter.PaymentType)
	}
	if filter.Gateway != "" {
		query = query.Where("gateway = ?", filter.Gateway)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var channels []models.PaymentChannel
	if err := query.Order("id asc").Find(&channels).Error; err != nil {
		return nil, 0, err
	}
	return channels, total, nil
}

// ListEnabledChannels 查询启用通道，code 为空时按支付方式匹配
func (r *GormPaymentChannelRepository) ListEnabledChannels(code, paymentType string) ([]models.PaymentChannel, error) {
	query := r.db.Model(&models.PaymentChannel{}).Where("status = ?", true)
	if trimmed := strings.TrimSpace(code); trimmed != "" {
		query = query.Where("code = ?", trimmed)
	}
	if paymentType != "" {
		query = query.Where("payment_type = ?", paymentType)
	}
	var channels []models.PaymentChannel
	if err := query.Order("id asc").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateAccount 创建收款账户
func (r *GormPaymentChannelRepository) CreateAccount(account *models.PaymentChannelAccount) error {
	return r.db.Create(account).Error
}

// UpdateAccount 更新收款账户
func (r *GormPaymentChannelRepository) UpdateAccount(account *models.PaymentChannelAccount) error {
	return r.db.Save(account).Error
}

// DeleteAccount 删除收款账户（软删除）
func (r *GormPaymentChannelRepository) DeleteAccount(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.PaymentChannelAccount{}, id).Error
}

// GetAccountByID 按ID获取收款账户
func (r *GormPaymentChannelRepository) GetAccountByID(id uint) (*models.PaymentChannelAccount, error) {
	if id == 0 {
		return nil, nil
	}
	var account models.PaymentChannelAccount
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ListAccountsByChannel 查询通道下全部账户
func (r *GormPaymentChannelRepository) ListAccountsByChannel(channelID uint) ([]models.PaymentChannelAccount, error) {
	if channelID == 0 {
		return []models.PaymentChannelAccount{}, nil
	}
	var accounts []models.PaymentChannelAccount
	if err := r.db.Where("channel_id = ?", channelID).Order("id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListEligibleAccounts 查询通道下启用且非维护中的账户
func (r *GormPaymentChannelRepository) ListEligibleAccounts(channelID uint) ([]models.PaymentChannelAccount, error) {
	if channelID == 0 {
		return []models.PaymentChannelAccount{}, nil
	}
	var accounts []models.PaymentChannelAccount
	if err := r.db.Where("channel_id = ? AND status = ? AND maintenance = ?", channelID, true, false).
		Order("id asc").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
