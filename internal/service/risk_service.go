package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"
)

// RiskService 下单风控服务
type RiskService struct {
	cfg           *config.Config
	blacklistRepo repository.BlacklistRepository
	orderRepo     repository.OrderRepository
}

// RiskCheckInput 下单风控检查输入
type RiskCheckInput struct {
	MerchantID  uint
	Subject     string
	IP          string
	UserID      string
	BuyerOpenID string
	Mobile      string
	CertNo      string
	CertType    string
	Fingerprint string
}

// BuyerSummary 买家行为概要
type BuyerSummary struct {
	TotalOrders int64   `json:"total_orders"`
	PaidOrders  int64   `json:"paid_orders"`
	SuccessRate float64 `json:"success_rate"`
	Blacklisted bool    `json:"blacklisted"`
}

// NewRiskService 创建风控服务
func NewRiskService(cfg *config.Config, blacklistRepo repository.BlacklistRepository, orderRepo repository.OrderRepository) *RiskService {
	return &RiskService{
		cfg:           cfg,
		blacklistRepo: blacklistRepo,
		orderRepo:     orderRepo,
	}
}

// CheckCreateOrder 下单前风控检查，命中即短路并写入风控日志
func (s *RiskService) CheckCreateOrder(input RiskCheckInput) error {
	now := time.Now()

	if keyword := s.matchSubjectKeyword(input.Subject); keyword != "" {
		s.writeRiskLog(input.MerchantID, constants.RiskLogTypeSubjectKeyword,
			fmt.Sprintf("订单标题命中关键词: %s", keyword))
		return fmt.Errorf("%w: 订单标题包含受限内容", ErrRiskBlocked)
	}

	blacklistChecks := []struct {
		entityType string
		value      string
	}{
		{constants.BlacklistTypeIPAddress, strings.TrimSpace(input.IP)},
		{constants.BlacklistTypeUserID, strings.TrimSpace(input.UserID)},
		{constants.BlacklistTypeUserID, strings.TrimSpace(input.BuyerOpenID)},
		{constants.BlacklistTypeMobile, strings.TrimSpace(input.Mobile)},
		{constants.BlacklistTypeDeviceFingerprint, strings.TrimSpace(input.Fingerprint)},
	}
	if strings.TrimSpace(input.CertType) == constants.CertTypeIdentityCard {
		blacklistChecks = append(blacklistChecks, struct {
			entityType string
			value      string
		}{constants.BlacklistTypeIDCard, strings.TrimSpace(input.CertNo)})
	}

	for _, check := range blacklistChecks {
		if check.value == "" {
			continue
		}
		hit, err := s.lookupBlacklist(check.entityType, check.value, now)
		if err != nil {
			return err
		}
		if hit {
			s.writeRiskLog(input.MerchantID, constants.RiskLogTypeBlacklist,
				fmt.Sprintf("%s 命中黑名单: %s", check.entityType, check.value))
			return fmt.Errorf("%w: 买家信息命中黑名单", ErrRiskBlocked)
		}
	}

	midnight := s.startOfToday(now)

	ipLimit := s.cfg.Payment.IPOrderLimit
	if ipLimit > 0 && strings.TrimSpace(input.IP) != "" {
		count, err := s.orderRepo.CountBuyersByIPSince(strings.TrimSpace(input.IP), midnight)
		if err != nil {
			return err
		}
		if count >= int64(ipLimit) {
			s.writeRiskLog(input.MerchantID, constants.RiskLogTypeDailyLimit,
				fmt.Sprintf("IP %s 当日下单 %d 次超过上限 %d", input.IP, count, ipLimit))
			return fmt.Errorf("%w: 当日下单次数超限", ErrRiskBlocked)
		}
	}

	accountLimit := s.cfg.Payment.AccountOrderLimit
	userID := strings.TrimSpace(input.UserID)
	buyerOpenID := strings.TrimSpace(input.BuyerOpenID)
	if accountLimit > 0 && (userID != "" || buyerOpenID != "") {
		count, err := s.orderRepo.CountBuyersByAccountSince(userID, buyerOpenID, midnight)
		if err != nil {
			return err
		}
		if count >= int64(accountLimit) {
			s.writeRiskLog(input.MerchantID, constants.RiskLogTypeDailyLimit,
				fmt.Sprintf("买家账户当日下单 %d 次超过上限 %d", count, accountLimit))
			return fmt.Errorf("%w: 当日下单次数超限", ErrRiskBlocked)
		}
	}

	return nil
}

// GetBuyerSummary 汇总买家历史行为
func (s *RiskService) GetBuyerSummary(userID, buyerOpenID string) (*BuyerSummary, error) {
	userID = strings.TrimSpace(userID)
	buyerOpenID = strings.TrimSpace(buyerOpenID)
	if userID == "" && buyerOpenID == "" {
		return nil, ErrRiskBuyerIdentifierMissing
	}

	stats, err := s.orderRepo.GetBuyerOrderStats(userID, buyerOpenID)
	if err != nil {
		return nil, err
	}

	summary := &BuyerSummary{
		TotalOrders: stats.Total,
		PaidOrders:  stats.Paid,
	}
	if stats.Total > 0 {
		summary.SuccessRate = float64(stats.Paid) / float64(stats.Total)
	}

	now := time.Now()
	for _, value := range []string{userID, buyerOpenID} {
		if value == "" {
			continue
		}
		hit, err := s.lookupBlacklist(constants.BlacklistTypeUserID, value, now)
		if err != nil {
			return nil, err
		}
		if hit {
			summary.Blacklisted = true
			break
		}
	}
	return summary, nil
}

// BlacklistCreateInput 黑名单新增输入
type BlacklistCreateInput struct {
	EntityType  string
	EntityValue string
	Reason      string
	Origin      string
	ExpiredAt   *time.Time
}

// AddBlacklist 新增黑名单条目
func (s *RiskService) AddBlacklist(input BlacklistCreateInput) (*models.Blacklist, error) {
	entityType := strings.ToUpper(strings.TrimSpace(input.EntityType))
	entityValue := strings.TrimSpace(input.EntityValue)
	origin := strings.ToUpper(strings.TrimSpace(input.Origin))
	if entityValue == "" || !isValidBlacklistType(entityType) || !isValidBlacklistOrigin(origin) {
		return nil, ErrBlacklistEntityInvalid
	}

	hash := models.BlacklistEntityHash(entityType, entityValue)
	existing, err := s.blacklistRepo.GetByHash(hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrBlacklistExists
	}

	now := time.Now()
	entry := &models.Blacklist{
		EntityType:  entityType,
		EntityValue: entityValue,
		EntityHash:  hash,
		Reason:      strings.TrimSpace(input.Reason),
		Origin:      origin,
		ExpiredAt:   input.ExpiredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.blacklistRepo.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateBlacklist 更新黑名单原因与过期时间
func (s *RiskService) UpdateBlacklist(id uint, reason string, expiredAt *time.Time) (*models.Blacklist, error) {
	entry, err := s.blacklistRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrBlacklistNotFound
	}
	entry.Reason = strings.TrimSpace(reason)
	entry.ExpiredAt = expiredAt
	entry.UpdatedAt = time.Now()
	if err := s.blacklistRepo.Update(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteBlacklist 删除黑名单条目
func (s *RiskService) DeleteBlacklist(id uint) error {
	entry, err := s.blacklistRepo.GetByID(id)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrBlacklistNotFound
	}
	return s.blacklistRepo.Delete(id)
}

// ListBlacklists 查询黑名单列表
func (s *RiskService) ListBlacklists(filter repository.BlacklistListFilter) ([]models.Blacklist, int64, error) {
	return s.blacklistRepo.List(filter)
}

// ListRiskLogs 查询风控日志
func (s *RiskService) ListRiskLogs(filter repository.RiskLogListFilter) ([]models.RiskLog, int64, error) {
	return s.blacklistRepo.ListRiskLogs(filter)
}

func isValidBlacklistType(entityType string) bool {
	switch entityType {
	case constants.BlacklistTypeUserID,
		constants.BlacklistTypeBankCard,
		constants.BlacklistTypeIDCard,
		constants.BlacklistTypeMobile,
		constants.BlacklistTypeIPAddress,
		constants.BlacklistTypeDeviceFingerprint:
		return true
	}
	return false
}

func isValidBlacklistOrigin(origin string) bool {
	switch origin {
	case constants.BlacklistOriginManualReview,
		constants.BlacklistOriginAutoDetection,
		constants.BlacklistOriginThirdParty,
		constants.BlacklistOriginSystemAlert,
		constants.BlacklistOriginMerchantReport:
		return true
	}
	return false
}

func (s *RiskService) matchSubjectKeyword(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ""
	}
	for _, keyword := range s.cfg.Payment.SubjectKeywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(subject, keyword) {
			return keyword
		}
	}
	return ""
}

func (s *RiskService) lookupBlacklist(entityType, entityValue string, now time.Time) (bool, error) {
	entry, err := s.blacklistRepo.GetByHash(models.BlacklistEntityHash(entityType, entityValue))
	if err != nil {
		return false, err
	}
	return entry.IsEffective(now), nil
}

func (s *RiskService) startOfToday(now time.Time) time.Time {
	loc := s.cfg.Location()
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func (s *RiskService) writeRiskLog(merchantID uint, logType int, content string) {
	entry := &models.RiskLog{
		MerchantID: merchantID,
		Type:       logType,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.blacklistRepo.CreateRiskLog(entry); err != nil {
		logger.Warnw("risk_log_create_failed", "merchant_id", merchantID, "type", logType, "error", err)
	}
}
