package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// settleDelayUnit 结算周期换算为入队延迟的单位
const settleDelayUnit = 10 * time.Second

// idempotencyWindow 商户订单号幂等窗口
const idempotencyWindow = 7 * 24 * time.Hour

// orderTaskQueue 订单结算与通知任务入队能力
type orderTaskQueue interface {
	EnqueueOrderSettle(payload queue.OrderSettlePayload, delay time.Duration) error
	EnqueueOrderNotify(payload queue.OrderNotifyPayload) error
}

// OrderService 订单引擎：下单、支付确认、结算、关闭
type OrderService struct {
	cfg            *config.Config
	orderRepo      repository.OrderRepository
	walletService  *WalletService
	channelService *ChannelService
	riskService    *RiskService
	queueClient    orderTaskQueue
}

// NewOrderService 创建订单服务
func NewOrderService(
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	walletService *WalletService,
	channelService *ChannelService,
	riskService *RiskService,
	queueClient *queue.Client,
) *OrderService {
	return &OrderService{
		cfg:            cfg,
		orderRepo:      orderRepo,
		walletService:  walletService,
		channelService: channelService,
		riskService:    riskService,
		queueClient:    queueClient,
	}
}

// OrderBuyerInput 下单买家信息
type OrderBuyerInput struct {
	IP          string `json:"ip"`
	UserAgent   string `json:"user_agent"`
	UserID      string `json:"user_id"`
	BuyerOpenID string `json:"buyer_open_id"`
	Mobile      string `json:"mobile"`
	RealName    string `json:"real_name"`
	CertNo      string `json:"cert_no"`
	CertType    string `json:"cert_type"`
	MinAge      int    `json:"min_age"`
}

// OrderCreateInput 统一下单入参
type OrderCreateInput struct {
	Merchant    *models.Merchant
	OutTradeNo  string
	Subject     string
	TotalAmount decimal.Decimal
	PaymentType string
	ChannelCode string
	NotifyURL   string
	ReturnURL   string
	Attach      string
	SignType    string
	Buyer       OrderBuyerInput
}

// OrderCreateResult 下单结果，Duplicate 表示幂等命中已有订单
type OrderCreateResult struct {
	Order     *models.Order
	Channel   *models.PaymentChannel
	Account   *models.PaymentChannelAccount
	Buyer     *models.OrderBuyer
	Duplicate bool
}

// MarkPaidBuyerPatch 支付确认允许回填的买家字段
type MarkPaidBuyerPatch struct {
	IP          string
	UserAgent   string
	UserID      string
	BuyerOpenID string
	Mobile      string
}

// MarkPaidInput 支付成功确认入参
type MarkPaidInput struct {
	TradeNo        string
	APITradeNo     string
	BillTradeNo    string
	MchTradeNo     string
	PaymentTime    *time.Time
	BuyerPayAmount *decimal.Decimal
	Buyer          MarkPaidBuyerPatch
	Async          bool
}

// CreateOrder 统一下单：幂等、风控、选路、计费、落库
func (s *OrderService) CreateOrder(ctx context.Context, input OrderCreateInput) (*OrderCreateResult, error) {
	merchant := input.Merchant
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if err := validateOrderCreateInput(input); err != nil {
		return nil, err
	}
	total := input.TotalAmount.Round(2)
	now := time.Now().In(s.cfg.Location())

	// 七日内同商户订单号幂等
	existing, err := s.orderRepo.GetByMerchantOutTradeNo(merchant.ID, input.OutTradeNo, now.Add(-idempotencyWindow))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.resolveDuplicate(existing, input, total)
	}

	if err := s.riskService.CheckCreateOrder(RiskCheckInput{
		MerchantID:  merchant.ID,
		Subject:     input.Subject,
		IP:          input.Buyer.IP,
		UserID:      input.Buyer.UserID,
		BuyerOpenID: input.Buyer.BuyerOpenID,
		Mobile:      input.Buyer.Mobile,
		CertNo:      input.Buyer.CertNo,
		CertType:    input.Buyer.CertType,
	}); err != nil {
		return nil, err
	}

	channel, account, err := s.channelService.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: input.PaymentType,
		Code:        input.ChannelCode,
		Amount:      total,
		Merchant:    merchant,
	})
	if err != nil {
		return nil, err
	}

	amounts := computeOrderAmounts(merchant, channel, account, total)
	tradeNo, err := s.generateTradeNo(now)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		TradeNo:                 tradeNo,
		OutTradeNo:              input.OutTradeNo,
		MerchantID:              merchant.ID,
		PaymentType:             channel.PaymentType,
		PaymentChannelID:        channel.ID,
		PaymentChannelAccountID: account.ID,
		Subject:                 resolveOrderSubject(input.Subject, channel, account),
		TotalAmount:             models.NewMoneyFromDecimal(total),
		BuyerPayAmount:          models.NewMoneyFromDecimal(amounts.BuyerPay),
		ReceiptAmount:           models.NewMoneyFromDecimal(amounts.Receipt),
		FeeAmount:               models.NewMoneyFromDecimal(amounts.Fee),
		ProfitAmount:            models.NewMoneyFromDecimal(amounts.Profit),
		NotifyURL:               input.NotifyURL,
		ReturnURL:               input.ReturnURL,
		Attach:                  input.Attach,
		SettleCycle:             channel.SettleCycle,
		SignType:                input.SignType,
		TradeState:              constants.TradeStateWaitPay,
		SettleState:             constants.SettleStatePending,
		NotifyState:             constants.NotifyStateWaiting,
		CreateTime:              now,
	}
	buyer := &models.OrderBuyer{
		TradeNo:     tradeNo,
		MerchantID:  merchant.ID,
		IP:          input.Buyer.IP,
		UserAgent:   input.Buyer.UserAgent,
		UserID:      input.Buyer.UserID,
		BuyerOpenID: input.Buyer.BuyerOpenID,
		Mobile:      input.Buyer.Mobile,
		RealName:    input.Buyer.RealName,
		CertNo:      input.Buyer.CertNo,
		CertType:    input.Buyer.CertType,
		MinAge:      input.Buyer.MinAge,
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		if err := repo.Create(order); err != nil {
			return err
		}
		return repo.CreateBuyer(buyer)
	})
	if err != nil {
		return nil, err
	}

	// 日限额计数在订单落库后累加
	s.channelService.CommitUsage(ctx, channel.ID, account.ID, total)

	return &OrderCreateResult{Order: order, Channel: channel, Account: account, Buyer: buyer}, nil
}

// resolveDuplicate 处理幂等窗口内命中的已有订单
func (s *OrderService) resolveDuplicate(existing *models.Order, input OrderCreateInput, total decimal.Decimal) (*OrderCreateResult, error) {
	switch existing.TradeState {
	case constants.TradeStateSuccess, constants.TradeStateFinished, constants.TradeStateFrozen:
		return nil, fmt.Errorf("%w: %s", ErrOrderDuplicatePaid, existing.TradeNo)
	case constants.TradeStateClosed:
		return nil, fmt.Errorf("%w: %s", ErrOrderDuplicateClosed, existing.TradeNo)
	}
	if !existing.TotalAmount.Equal(total) ||
		existing.NotifyURL != input.NotifyURL ||
		existing.ReturnURL != input.ReturnURL ||
		existing.Attach != input.Attach {
		return nil, fmt.Errorf("%w: %s", ErrOrderDuplicateMismatch, input.OutTradeNo)
	}

	channel, err := s.channelService.GetChannelByID(existing.PaymentChannelID)
	if err != nil {
		return nil, err
	}
	account, err := s.channelService.GetAccountByID(existing.PaymentChannelAccountID)
	if err != nil {
		return nil, err
	}
	// 渠道自定义标题会覆盖请求标题，仅在未覆盖时参与比对
	if resolveOrderSubject(input.Subject, channel, account) != existing.Subject {
		return nil, fmt.Errorf("%w: %s", ErrOrderDuplicateMismatch, input.OutTradeNo)
	}
	buyer, err := s.orderRepo.GetBuyerByTradeNo(existing.TradeNo)
	if err != nil {
		return nil, err
	}
	return &OrderCreateResult{Order: existing, Channel: channel, Account: account, Buyer: buyer, Duplicate: true}, nil
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// MarkPaid 支付成功确认。非 WAIT_PAY 订单直接返回成功且不做任何改写。
func (s *OrderService) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Order, error) {
	probe, err := s.orderRepo.GetByTradeNo(input.TradeNo)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, ErrOrderNotFound
	}

	var order *models.Order
	var needEnqueueSettle bool
	var freshlyPaid bool
	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		// 先锁钱包再锁订单，与退款、提现保持同一加锁顺序
		if _, err := s.walletService.LockWalletTx(tx, probe.MerchantID); err != nil {
			return err
		}
		repo := s.orderRepo.WithTx(tx)
		locked, err := repo.GetByTradeNoForUpdate(input.TradeNo)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrOrderNotFound
		}
		order = locked
		if order.TradeState != constants.TradeStateWaitPay {
			// 上游重复回调：原样返回成功
			return nil
		}

		paymentTime := time.Now().In(s.cfg.Location())
		if input.PaymentTime != nil {
			paymentTime = *input.PaymentTime
		}
		order.TradeState = constants.TradeStateSuccess
		order.PaymentTime = &paymentTime
		freshlyPaid = true
		if input.APITradeNo != "" {
			order.APITradeNo = input.APITradeNo
		}
		if input.BillTradeNo != "" {
			order.BillTradeNo = input.BillTradeNo
		}
		if input.MchTradeNo != "" {
			order.MchTradeNo = input.MchTradeNo
		}
		if input.BuyerPayAmount != nil && !order.BuyerPayAmount.Equal(input.BuyerPayAmount.Round(2)) {
			// 上游核验金额为准
			order.BuyerPayAmount = models.NewMoneyFromDecimal(*input.BuyerPayAmount)
		}

		receipt := order.ReceiptAmount.Decimal
		switch {
		case order.SettleCycle <= 0:
			order.SettleState = constants.SettleStateCompleted
			if order.SettleCycle == 0 {
				if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
					MerchantID: order.MerchantID,
					Delta:      receipt,
					Type:       constants.WalletChangeOrderIncome,
					TradeNo:    order.TradeNo,
					Remark:     "订单入账",
				}); err != nil {
					return err
				}
			}
		default:
			order.SettleState = constants.SettleStateProcessing
			if _, _, err := s.walletService.ChangeUnavailableTx(tx, WalletChangeInput{
				MerchantID: order.MerchantID,
				Delta:      receipt,
				Type:       constants.WalletChangeOrderIncome,
				TradeNo:    order.TradeNo,
				Remark:     "订单入账（待结算）",
			}); err != nil {
				return err
			}
			needEnqueueSettle = true
		}

		if err := s.patchBuyerTx(repo, order.TradeNo, input.Buyer); err != nil {
			return err
		}
		return repo.Update(order)
	})
	if err != nil {
		return nil, err
	}

	log := paymentLogger("trade_no", order.TradeNo, "merchant_id", order.MerchantID)
	if needEnqueueSettle {
		delay := time.Duration(order.SettleCycle) * settleDelayUnit
		if err := s.queueClient.EnqueueOrderSettle(queue.OrderSettlePayload{TradeNo: order.TradeNo}, delay); err != nil {
			log.Errorw("order_enqueue_settle_failed", "error", err)
			order.SettleState = constants.SettleStateFailed
			if updErr := s.orderRepo.Update(order); updErr != nil {
				log.Errorw("order_settle_state_writeback_failed", "error", updErr)
			}
		}
	}

	// 重复回调不重复投递通知
	if input.Async && freshlyPaid && order.NotifyURL != "" {
		if err := s.queueClient.EnqueueOrderNotify(queue.OrderNotifyPayload{TradeNo: order.TradeNo}); err != nil {
			log.Warnw("order_enqueue_notify_failed", "error", err)
		}
	}
	return order, nil
}

// patchBuyerTx 回填买家信息，仅允许白名单字段且只覆盖非空值
func (s *OrderService) patchBuyerTx(repo *repository.GormOrderRepository, tradeNo string, patch MarkPaidBuyerPatch) error {
	if patch.IP == "" && patch.UserAgent == "" && patch.UserID == "" && patch.BuyerOpenID == "" && patch.Mobile == "" {
		return nil
	}
	buyer, err := repo.GetBuyerByTradeNo(tradeNo)
	if err != nil {
		return err
	}
	if buyer == nil {
		return nil
	}
	if patch.IP != "" {
		buyer.IP = patch.IP
	}
	if patch.UserAgent != "" {
		buyer.UserAgent = patch.UserAgent
	}
	if patch.UserID != "" {
		buyer.UserID = patch.UserID
	}
	if patch.BuyerOpenID != "" {
		buyer.BuyerOpenID = patch.BuyerOpenID
	}
	if patch.Mobile != "" {
		buyer.Mobile = patch.Mobile
	}
	return repo.UpdateBuyer(buyer)
}

// CloseOrder 关闭待支付订单，已关闭订单幂等返回
func (s *OrderService) CloseOrder(tradeNo string) (*models.Order, error) {
	var order *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		locked, err := repo.GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrOrderNotFound
		}
		order = locked
		if order.TradeState == constants.TradeStateClosed {
			return nil
		}
		if order.TradeState != constants.TradeStateWaitPay {
			return fmt.Errorf("%w: %s 不允许关闭", ErrOrderStateInvalid, order.TradeState)
		}
		now := time.Now().In(s.cfg.Location())
		order.TradeState = constants.TradeStateClosed
		order.CloseTime = &now
		return repo.Update(order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FreezeOrder 冻结已支付订单
func (s *OrderService) FreezeOrder(tradeNo string) (*models.Order, error) {
	return s.transition(tradeNo, constants.TradeStateFrozen)
}

// UnfreezeOrder 解冻订单恢复为已支付
func (s *OrderService) UnfreezeOrder(tradeNo string) (*models.Order, error) {
	return s.transition(tradeNo, constants.TradeStateSuccess)
}

// FinishOrder 将订单置为终态
func (s *OrderService) FinishOrder(tradeNo string) (*models.Order, error) {
	return s.transition(tradeNo, constants.TradeStateFinished)
}

func (s *OrderService) transition(tradeNo, target string) (*models.Order, error) {
	var order *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		locked, err := repo.GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrOrderNotFound
		}
		order = locked
		if !isTransitionAllowed(order.TradeState, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderStateInvalid, order.TradeState, target)
		}
		order.TradeState = target
		return repo.Update(order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SettleOrder 将在途入账转入可用余额并完成结算
func (s *OrderService) SettleOrder(ctx context.Context, tradeNo string) error {
	probe, err := s.orderRepo.GetByTradeNo(tradeNo)
	if err != nil {
		return err
	}
	if probe == nil {
		return ErrOrderNotFound
	}

	return s.orderRepo.Transaction(func(tx *gorm.DB) error {
		if _, err := s.walletService.LockWalletTx(tx, probe.MerchantID); err != nil {
			return err
		}
		repo := s.orderRepo.WithTx(tx)
		order, err := repo.GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		switch order.SettleState {
		case constants.SettleStateCompleted:
			return nil
		case constants.SettleStateProcessing, constants.SettleStateFailed:
		default:
			return fmt.Errorf("%w: 结算状态 %s", ErrOrderStateInvalid, order.SettleState)
		}

		if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
			MerchantID:        order.MerchantID,
			Delta:             order.ReceiptAmount.Decimal,
			Type:              constants.WalletChangeOrderSettle,
			TradeNo:           order.TradeNo,
			Remark:            "订单结算入账",
			ReduceCounterpart: true,
		}); err != nil {
			return err
		}
		order.SettleState = constants.SettleStateCompleted
		return repo.Update(order)
	})
}

// MarkSettleFailed 结算失败回写状态，供队列重试与人工介入
func (s *OrderService) MarkSettleFailed(tradeNo string) {
	order, err := s.orderRepo.GetByTradeNo(tradeNo)
	if err != nil || order == nil {
		logger.Errorw("order_settle_failed_fetch_failed", "trade_no", tradeNo, "error", err)
		return
	}
	if order.SettleState != constants.SettleStateProcessing {
		return
	}
	order.SettleState = constants.SettleStateFailed
	if err := s.orderRepo.Update(order); err != nil {
		logger.Errorw("order_settle_failed_writeback_failed", "trade_no", tradeNo, "error", err)
	}
}

// RetrySettle 管理端重推结算任务
func (s *OrderService) RetrySettle(tradeNo string) error {
	order, err := s.GetOrder(tradeNo)
	if err != nil {
		return err
	}
	if order.SettleState != constants.SettleStateFailed {
		return fmt.Errorf("%w: 结算状态 %s", ErrOrderStateInvalid, order.SettleState)
	}
	order.SettleState = constants.SettleStateProcessing
	if err := s.orderRepo.Update(order); err != nil {
		return err
	}
	if err := s.queueClient.EnqueueOrderSettle(queue.OrderSettlePayload{TradeNo: tradeNo}, 0); err != nil {
		order.SettleState = constants.SettleStateFailed
		if updErr := s.orderRepo.Update(order); updErr != nil {
			logger.Errorw("order_settle_state_writeback_failed", "trade_no", tradeNo, "error", updErr)
		}
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// GetOrder 按交易号查询订单
func (s *OrderService) GetOrder(tradeNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByTradeNo(tradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetMerchantOrder 商户侧查询：平台交易号或商户订单号二选一
func (s *OrderService) GetMerchantOrder(merchantID uint, tradeNo, outTradeNo string) (*models.Order, error) {
	if tradeNo != "" {
		order, err := s.GetOrder(tradeNo)
		if err != nil {
			return nil, err
		}
		if order.MerchantID != merchantID {
			return nil, ErrOrderNotFound
		}
		return order, nil
	}
	if outTradeNo == "" {
		return nil, fmt.Errorf("%w: 缺少订单号", ErrPayloadInvalid)
	}
	order, err := s.orderRepo.GetByMerchantOutTradeNo(merchantID, outTradeNo, time.Time{})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderBuyer 查询订单买家信息
func (s *OrderService) GetOrderBuyer(tradeNo string) (*models.OrderBuyer, error) {
	return s.orderRepo.GetBuyerByTradeNo(tradeNo)
}

// ListOrders 分页查询订单
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.List(filter)
}

func (s *OrderService) generateTradeNo(now time.Time) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		tradeNo := GenerateTradeNo(now)
		exists, err := s.orderRepo.ExistsByTradeNo(tradeNo)
		if err != nil {
			return "", err
		}
		if !exists {
			return tradeNo, nil
		}
	}
	return "", ErrTradeNoGenerateFailed
}

// orderAmounts 下单计费结果
type orderAmounts struct {
	Fee      decimal.Decimal
	Cost     decimal.Decimal
	Receipt  decimal.Decimal
	Profit   decimal.Decimal
	BuyerPay decimal.Decimal
}

// computeOrderAmounts 计费：商户协议费率 > 子账户费率（不继承时）> 渠道费率
func computeOrderAmounts(merchant *models.Merchant, channel *models.PaymentChannel, account *models.PaymentChannelAccount, total decimal.Decimal) orderAmounts {
	rate := channel.Rate.Decimal
	if !account.InheritConfig {
		rate = account.Rate.Decimal
	}
	if merchantRate := merchant.GetRate(channel.ID, account.ID); merchantRate != nil {
		rate = merchantRate.Decimal
	}

	fee := total.Mul(rate).Add(channel.FixedFee.Decimal).RoundBank(2)
	if fee.LessThan(channel.MinFee.Decimal) {
		fee = channel.MinFee.Decimal
	}
	if channel.MaxFee != nil && fee.GreaterThan(channel.MaxFee.Decimal) {
		fee = channel.MaxFee.Decimal
	}
	if fee.GreaterThan(total) {
		fee = total
	}

	cost := total.Mul(channel.Costs.Decimal).Add(channel.FixedCosts.Decimal).RoundBank(2)
	receipt := total.Sub(fee)
	if receipt.IsNegative() {
		receipt = decimal.Zero
	}
	profit := fee.Sub(cost)

	buyerPay := total
	if merchant.BuyerPayFee {
		buyerPay = total.Add(fee)
	}
	return orderAmounts{Fee: fee, Cost: cost, Receipt: receipt, Profit: profit, BuyerPay: buyerPay}
}

// resolveOrderSubject 渠道/子账户自定义标题覆盖请求标题
func resolveOrderSubject(requested string, channel *models.PaymentChannel, account *models.PaymentChannelAccount) string {
	if account.DiyOrderSubject != "" {
		return account.DiyOrderSubject
	}
	if channel.DiyOrderSubject != "" {
		return channel.DiyOrderSubject
	}
	return requested
}

// isTransitionAllowed 交易状态机
func isTransitionAllowed(from, to string) bool {
	allowed := map[string][]string{
		constants.TradeStateWaitPay: {constants.TradeStateSuccess, constants.TradeStateClosed},
		constants.TradeStateSuccess: {constants.TradeStateRefund, constants.TradeStateFinished, constants.TradeStateFrozen},
		constants.TradeStateRefund:  {constants.TradeStateRefund, constants.TradeStateFinished},
		constants.TradeStateFrozen:  {constants.TradeStateSuccess, constants.TradeStateFinished},
	}
	for _, target := range allowed[from] {
		if target == to {
			return true
		}
	}
	return false
}

func validateOrderCreateInput(input OrderCreateInput) error {
	if strings.TrimSpace(input.OutTradeNo) == "" {
		return fmt.Errorf("%w: 缺少商户订单号", ErrPayloadInvalid)
	}
	if len(input.OutTradeNo) > 64 {
		return fmt.Errorf("%w: 商户订单号过长", ErrPayloadInvalid)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return fmt.Errorf("%w: 缺少商品标题", ErrPayloadInvalid)
	}
	if !input.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: 金额必须大于 0", ErrOrderAmountInvalid)
	}
	if !isValidPaymentType(input.PaymentType) {
		return fmt.Errorf("%w: 未知支付方式 %s", ErrPayloadInvalid, input.PaymentType)
	}
	return nil
}
