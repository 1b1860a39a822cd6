package service

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	channelCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,32}$`)
	clockPattern       = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// ChannelService 支付渠道服务，含下单选路
type ChannelService struct {
	cfg         *config.Config
	channelRepo repository.PaymentChannelRepository
	counters    cache.PaymentCounterStore
}

// NewChannelService 创建渠道服务
func NewChannelService(cfg *config.Config, channelRepo repository.PaymentChannelRepository, counters cache.PaymentCounterStore) *ChannelService {
	return &ChannelService{
		cfg:         cfg,
		channelRepo: channelRepo,
		counters:    counters,
	}
}

// ChannelSelectInput 选路输入
type ChannelSelectInput struct {
	PaymentType string
	Code        string
	Amount      decimal.Decimal
	Merchant    *models.Merchant
}

// SelectAccount 为一笔订单挑选渠道与子账户。
// 渠道按金额与时段窗口过滤，渠道日限额超限直接失败；
// 子账户按状态、维护位、窗口、白名单与日限额过滤后按轮询模式取一。
func (s *ChannelService) SelectAccount(ctx context.Context, input ChannelSelectInput) (*models.PaymentChannel, *models.PaymentChannelAccount, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	channels, err := s.channelRepo.ListEnabledChannels(code, input.PaymentType)
	if err != nil {
		return nil, nil, err
	}
	if len(channels) == 0 {
		return nil, nil, ErrNoAvailableChannel
	}

	now := time.Now().In(s.cfg.Location())
	date := now.Format(constants.TimeFormatDate)
	clock := now.Format(constants.TimeFormatHourMinute)

	for i := range channels {
		channel := &channels[i]
		if !amountWithinWindow(input.Amount, channel.MinAmount, channel.MaxAmount) {
			continue
		}
		if !clockWithinWindow(clock, channel.EarliestTime, channel.LatestTime) {
			continue
		}
		if channel.DailyLimit != nil {
			used, err := s.counters.GetChannelDailyAmount(ctx, channel.ID, date)
			if err != nil {
				return nil, nil, err
			}
			if used.Add(input.Amount).GreaterThan(channel.DailyLimit.Decimal) {
				return nil, nil, fmt.Errorf("%w: 渠道 %s 当日收款已达上限", ErrNoAvailableChannel, channel.Code)
			}
		}

		accounts, err := s.channelRepo.ListEligibleAccounts(channel.ID)
		if err != nil {
			return nil, nil, err
		}
		candidates := make([]models.PaymentChannelAccount, 0, len(accounts))
		for _, account := range accounts {
			if !account.InheritConfig {
				if !amountWithinWindow(input.Amount, account.MinAmount, account.MaxAmount) {
					continue
				}
				if !clockWithinWindow(clock, account.EarliestTime, account.LatestTime) {
					continue
				}
			}
			if input.Merchant != nil && !input.Merchant.AccountAllowed(channel.ID, account.ID) {
				continue
			}
			if account.DailyLimit != nil {
				used, err := s.counters.GetAccountDailyAmount(ctx, account.ID, date)
				if err != nil {
					return nil, nil, err
				}
				if used.Add(input.Amount).GreaterThan(account.DailyLimit.Decimal) {
					continue
				}
			}
			candidates = append(candidates, account)
		}
		if len(candidates) == 0 {
			continue
		}

		account, err := s.rollAccount(ctx, channel, candidates)
		if err != nil {
			return nil, nil, err
		}
		return channel, account, nil
	}
	return nil, nil, ErrNoAvailableAccount
}

// CommitUsage 订单落库后累计渠道与子账户当日收款额
func (s *ChannelService) CommitUsage(ctx context.Context, channelID, accountID uint, amount decimal.Decimal) {
	date := time.Now().In(s.cfg.Location()).Format(constants.TimeFormatDate)
	if err := s.counters.AddChannelDailyAmount(ctx, channelID, date, amount); err != nil {
		logger.Warnw("channel_daily_counter_failed", "channel_id", channelID, "error", err)
	}
	if err := s.counters.AddAccountDailyAmount(ctx, accountID, date, amount); err != nil {
		logger.Warnw("account_daily_counter_failed", "account_id", accountID, "error", err)
	}
}

func (s *ChannelService) rollAccount(ctx context.Context, channel *models.PaymentChannel, accounts []models.PaymentChannelAccount) (*models.PaymentChannelAccount, error) {
	switch channel.RollMode {
	case constants.RollModeRandom:
		return &accounts[rand.Intn(len(accounts))], nil
	case constants.RollModeWeighted:
		if account := rollWeighted(accounts); account != nil {
			return account, nil
		}
		return s.rollSequential(ctx, channel.ID, accounts)
	case constants.RollModeFirst:
		return &accounts[0], nil
	default:
		return s.rollSequential(ctx, channel.ID, accounts)
	}
}

// rollSequential 取上次使用子账户之后的第一个，按 ID 升序回绕
func (s *ChannelService) rollSequential(ctx context.Context, channelID uint, accounts []models.PaymentChannelAccount) (*models.PaymentChannelAccount, error) {
	lastID, found, err := s.counters.GetRotationPointer(ctx, channelID)
	if err != nil {
		return nil, err
	}
	chosen := &accounts[0]
	if found {
		for i := range accounts {
			if accounts[i].ID > lastID {
				chosen = &accounts[i]
				break
			}
		}
	}
	if err := s.counters.SetRotationPointer(ctx, channelID, chosen.ID); err != nil {
		logger.Warnw("channel_rotation_pointer_update_failed", "channel_id", channelID, "error", err)
	}
	return chosen, nil
}

func rollWeighted(accounts []models.PaymentChannelAccount) *models.PaymentChannelAccount {
	total := 0
	for i := range accounts {
		if accounts[i].RollWeight > 0 {
			total += accounts[i].RollWeight
		}
	}
	if total <= 0 {
		return nil
	}
	pick := rand.Intn(total)
	for i := range accounts {
		if accounts[i].RollWeight <= 0 {
			continue
		}
		pick -= accounts[i].RollWeight
		if pick < 0 {
			return &accounts[i]
		}
	}
	return nil
}

func amountWithinWindow(amount decimal.Decimal, min, max *models.Money) bool {
	if min != nil && amount.LessThan(min.Decimal) {
		return false
	}
	if max != nil && amount.GreaterThan(max.Decimal) {
		return false
	}
	return true
}

func clockWithinWindow(clock, earliest, latest string) bool {
	earliest = strings.TrimSpace(earliest)
	latest = strings.TrimSpace(latest)
	if earliest != "" && clock < earliest {
		return false
	}
	if latest != "" && clock > latest {
		return false
	}
	return true
}

// ChannelInput 渠道创建/更新输入
type ChannelInput struct {
	Code            string
	Name            string
	PaymentType     string
	Gateway         string
	Rate            decimal.Decimal
	Costs           decimal.Decimal
	FixedFee        decimal.Decimal
	FixedCosts      decimal.Decimal
	MinFee          decimal.Decimal
	MaxFee          *decimal.Decimal
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	DailyLimit      *decimal.Decimal
	EarliestTime    string
	LatestTime      string
	RollMode        int
	SettleCycle     int
	Status          bool
	DiyOrderSubject string
}

// CreateChannel 创建支付渠道
func (s *ChannelService) CreateChannel(input ChannelInput) (*models.PaymentChannel, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if err := validateChannelInput(code, input); err != nil {
		return nil, err
	}
	existing, err := s.channelRepo.GetChannelByCode(code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrChannelCodeExists
	}

	now := time.Now()
	channel := &models.PaymentChannel{
		Code:            code,
		Name:            strings.TrimSpace(input.Name),
		PaymentType:     input.PaymentType,
		Gateway:         strings.ToLower(strings.TrimSpace(input.Gateway)),
		Rate:            models.NewRateFromDecimal(input.Rate),
		Costs:           models.NewRateFromDecimal(input.Costs),
		FixedFee:        models.NewMoneyFromDecimal(input.FixedFee),
		FixedCosts:      models.NewMoneyFromDecimal(input.FixedCosts),
		MinFee:          models.NewMoneyFromDecimal(input.MinFee),
		MaxFee:          optionalMoney(input.MaxFee),
		MinAmount:       optionalMoney(input.MinAmount),
		MaxAmount:       optionalMoney(input.MaxAmount),
		DailyLimit:      optionalMoney(input.DailyLimit),
		EarliestTime:    strings.TrimSpace(input.EarliestTime),
		LatestTime:      strings.TrimSpace(input.LatestTime),
		RollMode:        input.RollMode,
		SettleCycle:     input.SettleCycle,
		Status:          input.Status,
		DiyOrderSubject: strings.TrimSpace(input.DiyOrderSubject),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.channelRepo.CreateChannel(channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// UpdateChannel 更新支付渠道
func (s *ChannelService) UpdateChannel(id uint, input ChannelInput) (*models.PaymentChannel, error) {
	channel, err := s.channelRepo.GetChannelByID(id)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if err := validateChannelInput(code, input); err != nil {
		return nil, err
	}
	if code != channel.Code {
		existing, err := s.channelRepo.GetChannelByCode(code)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrChannelCodeExists
		}
	}

	channel.Code = code
	channel.Name = strings.TrimSpace(input.Name)
	channel.PaymentType = input.PaymentType
	channel.Gateway = strings.ToLower(strings.TrimSpace(input.Gateway))
	channel.Rate = models.NewRateFromDecimal(input.Rate)
	channel.Costs = models.NewRateFromDecimal(input.Costs)
	channel.FixedFee = models.NewMoneyFromDecimal(input.FixedFee)
	channel.FixedCosts = models.NewMoneyFromDecimal(input.FixedCosts)
	channel.MinFee = models.NewMoneyFromDecimal(input.MinFee)
	channel.MaxFee = optionalMoney(input.MaxFee)
	channel.MinAmount = optionalMoney(input.MinAmount)
	channel.MaxAmount = optionalMoney(input.MaxAmount)
	channel.DailyLimit = optionalMoney(input.DailyLimit)
	channel.EarliestTime = strings.TrimSpace(input.EarliestTime)
	channel.LatestTime = strings.TrimSpace(input.LatestTime)
	channel.RollMode = input.RollMode
	channel.SettleCycle = input.SettleCycle
	channel.Status = input.Status
	channel.DiyOrderSubject = strings.TrimSpace(input.DiyOrderSubject)
	channel.UpdatedAt = time.Now()
	if err := s.channelRepo.UpdateChannel(channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// DeleteChannel 删除支付渠道
func (s *ChannelService) DeleteChannel(id uint) error {
	channel, err := s.channelRepo.GetChannelByID(id)
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrChannelNotFound
	}
	return s.channelRepo.DeleteChannel(id)
}

// GetChannelByID 查询渠道详情
func (s *ChannelService) GetChannelByID(id uint) (*models.PaymentChannel, error) {
	channel, err := s.channelRepo.GetChannelByID(id)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	return channel, nil
}

// ListChannels 查询渠道列表
func (s *ChannelService) ListChannels(filter repository.ChannelListFilter) ([]models.PaymentChannel, int64, error) {
	return s.channelRepo.ListChannels(filter)
}

// ChannelAccountInput 子账户创建/更新输入
type ChannelAccountInput struct {
	ChannelID       uint
	Name            string
	InheritConfig   bool
	RollWeight      int
	Rate            decimal.Decimal
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	DailyLimit      *decimal.Decimal
	EarliestTime    string
	LatestTime      string
	Config          map[string]interface{}
	Status          bool
	Maintenance     bool
	DiyOrderSubject string
}

// CreateAccount 创建渠道子账户
func (s *ChannelService) CreateAccount(input ChannelAccountInput) (*models.PaymentChannelAccount, error) {
	channel, err := s.channelRepo.GetChannelByID(input.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	if err := validateAccountInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	account := &models.PaymentChannelAccount{
		ChannelID:       input.ChannelID,
		Name:            strings.TrimSpace(input.Name),
		InheritConfig:   input.InheritConfig,
		RollWeight:      input.RollWeight,
		Rate:            models.NewRateFromDecimal(input.Rate),
		MinAmount:       optionalMoney(input.MinAmount),
		MaxAmount:       optionalMoney(input.MaxAmount),
		DailyLimit:      optionalMoney(input.DailyLimit),
		EarliestTime:    strings.TrimSpace(input.EarliestTime),
		LatestTime:      strings.TrimSpace(input.LatestTime),
		Config:          models.JSON(input.Config),
		Status:          input.Status,
		Maintenance:     input.Maintenance,
		DiyOrderSubject: strings.TrimSpace(input.DiyOrderSubject),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.channelRepo.CreateAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount 更新渠道子账户
func (s *ChannelService) UpdateAccount(id uint, input ChannelAccountInput) (*models.PaymentChannelAccount, error) {
	account, err := s.channelRepo.GetAccountByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if err := validateAccountInput(input); err != nil {
		return nil, err
	}

	account.Name = strings.TrimSpace(input.Name)
	account.InheritConfig = input.InheritConfig
	account.RollWeight = input.RollWeight
	account.Rate = models.NewRateFromDecimal(input.Rate)
	account.MinAmount = optionalMoney(input.MinAmount)
	account.MaxAmount = optionalMoney(input.MaxAmount)
	account.DailyLimit = optionalMoney(input.DailyLimit)
	account.EarliestTime = strings.TrimSpace(input.EarliestTime)
	account.LatestTime = strings.TrimSpace(input.LatestTime)
	if input.Config != nil {
		account.Config = models.JSON(input.Config)
	}
	account.Status = input.Status
	account.Maintenance = input.Maintenance
	account.DiyOrderSubject = strings.TrimSpace(input.DiyOrderSubject)
	account.UpdatedAt = time.Now()
	if err := s.channelRepo.UpdateAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount 删除渠道子账户
func (s *ChannelService) DeleteAccount(id uint) error {
	account, err := s.channelRepo.GetAccountByID(id)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	return s.channelRepo.DeleteAccount(id)
}

// GetAccountByID 查询子账户详情
func (s *ChannelService) GetAccountByID(id uint) (*models.PaymentChannelAccount, error) {
	account, err := s.channelRepo.GetAccountByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ListAccountsByChannel 查询渠道下全部子账户
func (s *ChannelService) ListAccountsByChannel(channelID uint) ([]models.PaymentChannelAccount, error) {
	return s.channelRepo.ListAccountsByChannel(channelID)
}

func validateChannelInput(code string, input ChannelInput) error {
	if !channelCodePattern.MatchString(code) {
		return fmt.Errorf("%w: 渠道编码需为 2-32 位大写字母数字", ErrPayloadInvalid)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: 渠道名称不能为空", ErrPayloadInvalid)
	}
	if !isValidPaymentType(input.PaymentType) {
		return fmt.Errorf("%w: 支付方式无效", ErrPayloadInvalid)
	}
	if strings.TrimSpace(input.Gateway) == "" {
		return fmt.Errorf("%w: 上游驱动不能为空", ErrPayloadInvalid)
	}
	if input.RollMode < constants.RollModeSequential || input.RollMode > constants.RollModeFirst {
		return fmt.Errorf("%w: 轮询模式无效", ErrPayloadInvalid)
	}
	if input.SettleCycle < constants.SettleCycleInstant || input.SettleCycle > constants.SettleCycleSwallow {
		return fmt.Errorf("%w: 结算周期无效", ErrPayloadInvalid)
	}
	if err := validateClockWindow(input.EarliestTime, input.LatestTime); err != nil {
		return err
	}
	return nil
}

func validateAccountInput(input ChannelAccountInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: 子账户名称不能为空", ErrPayloadInvalid)
	}
	if input.RollWeight < 0 {
		return fmt.Errorf("%w: 轮询权重不能为负", ErrPayloadInvalid)
	}
	return validateClockWindow(input.EarliestTime, input.LatestTime)
}

func validateClockWindow(earliest, latest string) error {
	earliest = strings.TrimSpace(earliest)
	latest = strings.TrimSpace(latest)
	if earliest != "" && !clockPattern.MatchString(earliest) {
		return fmt.Errorf("%w: 起始时刻格式需为 HH:MM", ErrPayloadInvalid)
	}
	if latest != "" && !clockPattern.MatchString(latest) {
		return fmt.Errorf("%w: 结束时刻格式需为 HH:MM", ErrPayloadInvalid)
	}
	return nil
}

func isValidPaymentType(paymentType string) bool {
	switch paymentType {
	case constants.PaymentTypeAlipay,
		constants.PaymentTypeWechatPay,
		constants.PaymentTypeBank,
		constants.PaymentTypeUnionPay,
		constants.PaymentTypeQQWallet,
		constants.PaymentTypeJDPay,
		constants.PaymentTypePayPal:
		return true
	}
	return false
}

func optionalMoney(value *decimal.Decimal) *models.Money {
	if value == nil {
		return nil
	}
	money := models.NewMoneyFromDecimal(*value)
	return &money
}
