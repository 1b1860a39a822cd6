package repository

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.OrderRefund) error
	Update(refund *models.OrderRefund) error
	GetByID(id string) (*models.OrderRefund, error)
	GetByMerchantOutBizNo(merchantID uint, outBizNo string) (*models.OrderRefund, error)
	SumNonFailedByTradeNo(tradeNo string) (decimal.Decimal, error)
	ListByTradeNo(tradeNo string) ([]models.OrderRefund, error)
	List(filter RefundListFilter) ([]models.OrderRefund, int64, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 退款仓储实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓储
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款单
func (r *GormRefundRepository) Create(refund *models.OrderRefund) error {
	return r.db.Create(refund).Error
}

// Update 更新退款单
func (r *GormRefundRepository) Update(refund *models.OrderRefund) error {
	return r.db.Save(refund).Error
}

// GetByID 按退款单号获取退款单
func (r *GormRefundRepository) GetByID(id string) (*models.OrderRefund, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var refund models.OrderRefund
	if err := r.db.Where("id = ?", id).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByMerchantOutBizNo 按商户退款请求号获取退款单
func (r *GormRefundRepository) GetByMerchantOutBizNo(merchantID uint, outBizNo string) (*models.OrderRefund, error) {
	outBizNo = strings.TrimSpace(outBizNo)
	if merchantID == 0 || outBizNo == "" {
		return nil, nil
	}
	var refund models.OrderRefund
	if err := r.db.Where("merchant_id = ? AND out_biz_no = ?", merchantID, outBizNo).
		First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// SumNonFailedByTradeNo 统计订单非失败退款总额
func (r *GormRefundRepository) SumNonFailedByTradeNo(tradeNo string) (decimal.Decimal, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return decimal.Zero, nil
	}
	var total decimal.Decimal
	if err := r.db.Model(&models.OrderRefund{}).
		Where("trade_no = ? AND status <> ?", tradeNo, constants.BizStatusFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// ListByTradeNo 查询订单全部退款单
func (r *GormRefundRepository) ListByTradeNo(tradeNo string) ([]models.OrderRefund, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return []models.OrderRefund{}, nil
	}
	var refunds []models.OrderRefund
	if err := r.db.Where("trade_no = ?", tradeNo).Order("created_at asc").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// List 分页查询退款单
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.OrderRefund, int64, error) {
	query := r.db.Model(&models.OrderRefund{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if trimmed := strings.TrimSpace(filter.TradeNo); trimmed != "" {
		query = query.Where("trade_no = ?", trimmed)
	}
	if trimmed := strings.TrimSpace(filter.OutBizNo); trimmed != "" {
		query = query.Where("out_biz_no = ?", trimmed)
	}
	if filter.InitiateType != "" {
		query = query.Where("initiate_type = ?", filter.InitiateType)
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

	var refunds []models.OrderRefund
	if err := query.Order("created_at desc").Find(&refunds).Error; err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}
