package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	Update(order *models.Order) error
	GetByTradeNo(tradeNo string) (*models.Order, error)
	GetByTradeNoForUpdate(tradeNo string) (*models.Order, error)
	GetByMerchantOutTradeNo(merchantID uint, outTradeNo string, since time.Time) (*models.Order, error)
	ExistsByTradeNo(tradeNo string) (bool, error)
	List(filter OrderListFilter) ([]models.Order, int64, error)
	CreateBuyer(buyer *models.OrderBuyer) error
	UpdateBuyer(buyer *models.OrderBuyer) error
	GetBuyerByTradeNo(tradeNo string) (*models.OrderBuyer, error)
	CountBuyersByIPSince(ip string, since time.Time) (int64, error)
	CountBuyersByAccountSince(userID, buyerOpenID string, since time.Time) (int64, error)
	GetBuyerOrderStats(userID, buyerOpenID string) (BuyerOrderStats, error)
	CreateNotification(notification *models.OrderNotification) error
	ListNotifications(filter NotificationListFilter) ([]models.OrderNotification, int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// BuyerOrderStats 买家历史下单统计
type BuyerOrderStats struct {
	Total int64
	Paid  int64
}

// GormOrderRepository GORM 订单仓储实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Transaction 执行事务
func (r *GormOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建订单
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// Update 更新订单
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

// GetByTradeNo 按平台单号获取订单
func (r *GormOrderRepository) GetByTradeNo(tradeNo string) (*models.Order, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("trade_no = ?", tradeNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTradeNoForUpdate 按平台单号加锁获取订单
func (r *GormOrderRepository) GetByTradeNoForUpdate(tradeNo string) (*models.Order, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_no = ?", tradeNo).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByMerchantOutTradeNo 按商户订单号查询窗口期内最近一笔订单
func (r *GormOrderRepository) GetByMerchantOutTradeNo(merchantID uint, outTradeNo string, since time.Time) (*models.Order, error) {
	outTradeNo = strings.TrimSpace(outTradeNo)
	if merchantID == 0 || outTradeNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("merchant_id = ? AND out_trade_no = ? AND create_time >= ?", merchantID, outTradeNo, since).
		Order("create_time desc").
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ExistsByTradeNo 平台单号是否已存在
func (r *GormOrderRepository) ExistsByTradeNo(tradeNo string) (bool, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Order{}).Where("trade_no = ?", tradeNo).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 分页查询订单
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.ChannelID != 0 {
		query = query.Where("payment_channel_id = ?", filter.ChannelID)
	}
	if filter.AccountID != 0 {
		query = query.Where("payment_channel_account_id = ?", filter.AccountID)
	}
	if trimmed := strings.TrimSpace(filter.TradeNo); trimmed != "" {
		query = query.Where("trade_no = ?", trimmed)
	}
	if trimmed := strings.TrimSpace(filter.OutTradeNo); trimmed != "" {
		query = query.Where("out_trade_no = ?", trimmed)
	}
	if trimmed := strings.TrimSpace(filter.APITradeNo); trimmed != "" {
		query = query.Where("api_trade_no = ?", trimmed)
	}
	if filter.PaymentType != "" {
		query = query.Where("payment_type = ?", filter.PaymentType)
	}
	if filter.TradeState != "" {
		query = query.Where("trade_state = ?", filter.TradeState)
	}
	if filter.SettleState != "" {
		query = query.Where("settle_state = ?", filter.SettleState)
	}
	if filter.NotifyState != "" {
		query = query.Where("notify_state = ?", filter.NotifyState)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("create_time >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("create_time <= ?", *filter.CreatedTo)
	}
	if filter.PaymentFrom != nil {
		query = query.Where("payment_time >= ?", *filter.PaymentFrom)
	}
	if filter.PaymentTo != nil {
		query = query.Where("payment_time <= ?", *filter.PaymentTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.Order
	if err := query.Order("create_time desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CreateBuyer 创建买家信息
func (r *GormOrderRepository) CreateBuyer(buyer *models.OrderBuyer) error {
	return r.db.Create(buyer).Error
}

// UpdateBuyer 更新买家信息
func (r *GormOrderRepository) UpdateBuyer(buyer *models.OrderBuyer) error {
	return r.db.Save(buyer).Error
}

// GetBuyerByTradeNo 按平台单号获取买家信息
func (r *GormOrderRepository) GetBuyerByTradeNo(tradeNo string) (*models.OrderBuyer, error) {
	tradeNo = strings.TrimSpace(tradeNo)
	if tradeNo == "" {
		return nil, nil
	}
	var buyer models.OrderBuyer
	if err := r.db.Where("trade_no = ?", tradeNo).First(&buyer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &buyer, nil
}

// CountBuyersByIPSince 统计某 IP 指定时刻以来的下单数
func (r *GormOrderRepository) CountBuyersByIPSince(ip string, since time.Time) (int64, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.OrderBuyer{}).
		Where("ip = ? AND created_at >= ?", ip, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountBuyersByAccountSince 统计某买家账户指定时刻以来的下单数
func (r *GormOrderRepository) CountBuyersByAccountSince(userID, buyerOpenID string, since time.Time) (int64, error) {
	userID = strings.TrimSpace(userID)
	buyerOpenID = strings.TrimSpace(buyerOpenID)
	if userID == "" && buyerOpenID == "" {
		return 0, nil
	}
	query := r.db.Model(&models.OrderBuyer{}).Where("created_at >= ?", since)
	switch {
	case userID != "" && buyerOpenID != "":
		query = query.Where("(user_id = ? OR buyer_open_id = ?)", userID, buyerOpenID)
	case userID != "":
		query = query.Where("user_id = ?", userID)
	default:
		query = query.Where("buyer_open_id = ?", buyerOpenID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetBuyerOrderStats 统计买家历史下单与支付成功数
func (r *GormOrderRepository) GetBuyerOrderStats(userID, buyerOpenID string) (BuyerOrderStats, error) {
	stats := BuyerOrderStats{}
	userID = strings.TrimSpace(userID)
	buyerOpenID = strings.TrimSpace(buyerOpenID)
	if userID == "" && buyerOpenID == "" {
		return stats, nil
	}

	base := r.db.Model(&models.OrderBuyer{}).
		Joins("JOIN orders ON orders.trade_no = order_buyers.trade_no")
	switch {
	case userID != "" && buyerOpenID != "":
		base = base.Where("(order_buyers.user_id = ? OR order_buyers.buyer_open_id = ?)", userID, buyerOpenID)
	case userID != "":
		base = base.Where("order_buyers.user_id = ?", userID)
	default:
		base = base.Where("order_buyers.buyer_open_id = ?", buyerOpenID)
	}

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	paidStates := []string{
		constants.TradeStateSuccess,
		constants.TradeStateRefund,
		constants.TradeStateFinished,
		constants.TradeStateFrozen,
	}
	if err := base.Session(&gorm.Session{}).
		Where("orders.trade_state IN ?", paidStates).
		Count(&stats.Paid).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// CreateNotification 记录一次异步通知
func (r *GormOrderRepository) CreateNotification(notification *models.OrderNotification) error {
	return r.db.Create(notification).Error
}

// ListNotifications 分页查询通知记录
func (r *GormOrderRepository) ListNotifications(filter NotificationListFilter) ([]models.OrderNotification, int64, error) {
	query := r.db.Model(&models.OrderNotification{})
	if trimmed := strings.TrimSpace(filter.TradeNo); trimmed != "" {
		query = query.Where("trade_no = ?", trimmed)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var notifications []models.OrderNotification
	if err := query.Order("created_at desc").Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}
