package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/payment"
	"github.com/paygate-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundService 退款引擎：可退余额校验、钱包扣减、手续费按比例返还、
// 订单状态推进与原路退款。原路退款在事务内调用，失败整体回滚。
type RefundService struct {
	cfg            *config.Config
	orderRepo      repository.OrderRepository
	refundRepo     repository.RefundRepository
	walletService  *WalletService
	channelService *ChannelService
	registry       *payment.Registry
}

// NewRefundService 创建退款服务
func NewRefundService(
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	refundRepo repository.RefundRepository,
	walletService *WalletService,
	channelService *ChannelService,
	registry *payment.Registry,
) *RefundService {
	return &RefundService{
		cfg:            cfg,
		orderRepo:      orderRepo,
		refundRepo:     refundRepo,
		walletService:  walletService,
		channelService: channelService,
		registry:       registry,
	}
}

// RefundHandleInput 退款入参。FeeBearer 为空时取平台默认承担方。
type RefundHandleInput struct {
	TradeNo      string
	Amount       decimal.Decimal
	InitiateType string
	Auto         bool
	FeeBearer    *bool
	OutBizNo     string
	Reason       string
}

// MerchantRefundInput 商户 API 退款入参，OutBizNo 为幂等号必填。
type MerchantRefundInput struct {
	TradeNo    string
	OutTradeNo string
	OutBizNo   string
	Amount     decimal.Decimal
	Reason     string
}

// Handle 执行退款，按钱包、订单、退款单的顺序加锁。
func (s *RefundService) Handle(ctx context.Context, input RefundHandleInput) (*models.OrderRefund, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrRefundAmountInvalid
	}
	initiateType, err := normalizeInitiateType(input.InitiateType)
	if err != nil {
		return nil, err
	}

	probe, err := s.orderRepo.GetByTradeNo(input.TradeNo)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, ErrOrderNotFound
	}

	// 原路退款的网关与子账户配置在事务外解析
	var driver payment.Driver
	var accountConfig map[string]interface{}
	if input.Auto {
		channel, err := s.channelService.GetChannelByID(probe.PaymentChannelID)
		if err != nil {
			return nil, err
		}
		account, err := s.channelService.GetAccountByID(probe.PaymentChannelAccountID)
		if err != nil {
			return nil, err
		}
		driver, err = s.registry.Get(channel.Gateway)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrGatewayDriverNotFound, channel.Gateway)
		}
		accountConfig = map[string]interface{}(account.Config)
	}

	feeBearer := s.cfg.Payment.RefundFeeBearer == constants.FeeBearerPlatform
	if input.FeeBearer != nil {
		feeBearer = *input.FeeBearer
	}

	now := time.Now().In(s.cfg.Location())
	var refund *models.OrderRefund
	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		if _, err := s.walletService.LockWalletTx(tx, probe.MerchantID); err != nil {
			return err
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByTradeNoForUpdate(input.TradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		switch order.TradeState {
		case constants.TradeStateSuccess, constants.TradeStateRefund, constants.TradeStateFinished:
		default:
			return fmt.Errorf("%w: %s", ErrRefundStateInvalid, order.TradeState)
		}
		if order.SettleState == constants.SettleStateProcessing {
			return fmt.Errorf("%w: 结算处理中", ErrRefundStateInvalid)
		}
		if input.Auto && order.APITradeNo == "" {
			return ErrRefundRequiresAPITrade
		}

		refundRepo := s.refundRepo.WithTx(tx)
		refunded, err := refundRepo.SumNonFailedByTradeNo(order.TradeNo)
		if err != nil {
			return err
		}
		refunded = refunded.Round(2)
		remaining := order.BuyerPayAmount.Decimal.Round(2).Sub(refunded)
		if amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: 可退 %s", ErrRefundExceedsRemaining, remaining.StringFixed(2))
		}
		// FINISHED 订单先核可退余额：全额退完的报超额，其余拒绝
		if order.TradeState == constants.TradeStateFinished {
			return fmt.Errorf("%w: %s", ErrRefundStateInvalid, order.TradeState)
		}

		// 先返手续费后扣款，保证逐笔变动不破坏余额非负
		refundFee := decimal.Zero
		if feeBearer && order.FeeAmount.Decimal.IsPositive() {
			refundFee = proportionalRefundFee(order.FeeAmount.Decimal, amount, order.TotalAmount.Decimal)
			if refundFee.IsPositive() {
				if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
					MerchantID: order.MerchantID,
					Delta:      refundFee,
					Type:       constants.WalletChangeRefundFee,
					TradeNo:    order.TradeNo,
					Remark:     "退款手续费返还",
				}); err != nil {
					return err
				}
			}
		}

		if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
			MerchantID: order.MerchantID,
			Delta:      amount.Neg(),
			Type:       constants.WalletChangeOrderRefund,
			TradeNo:    order.TradeNo,
			Remark:     "订单退款",
		}); err != nil {
			return err
		}

		id, err := s.generateRefundNo(refundRepo, now)
		if err != nil {
			return err
		}
		refund = &models.OrderRefund{
			ID:              id,
			TradeNo:         order.TradeNo,
			MerchantID:      order.MerchantID,
			InitiateType:    initiateType,
			RefundType:      input.Auto,
			Amount:          models.NewMoneyFromDecimal(amount),
			RefundFeeAmount: models.NewMoneyFromDecimal(refundFee),
			FeeBearer:       feeBearer,
			Reason:          strings.TrimSpace(input.Reason),
			Status:          constants.BizStatusCompleted,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if outBizNo := strings.TrimSpace(input.OutBizNo); outBizNo != "" {
			refund.OutBizNo = &outBizNo
		}
		if err := refundRepo.Create(refund); err != nil {
			return err
		}

		if refunded.Add(amount).GreaterThanOrEqual(order.BuyerPayAmount.Decimal.Round(2)) {
			order.TradeState = constants.TradeStateFinished
		} else {
			order.TradeState = constants.TradeStateRefund
		}
		if err := orderRepo.Update(order); err != nil {
			return err
		}

		if input.Auto {
			result, err := driver.Refund(ctx, payment.RefundInput{
				Order:  order,
				Refund: refund,
				Config: accountConfig,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrGatewayFailed, err)
			}
			if !result.State {
				return fmt.Errorf("%w: %s", ErrGatewayFailed, result.Message)
			}
			refund.APIRefundNo = result.APIRefundNo
			refund.UpdatedAt = time.Now().In(s.cfg.Location())
			if err := refundRepo.Update(refund); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// MerchantRefund 商户 API 退款，按 (merchant_id, out_biz_no) 幂等。
// 同号同参返回已有退款单，同号不同参返回不一致错误。
func (s *RefundService) MerchantRefund(ctx context.Context, merchant *models.Merchant, input MerchantRefundInput) (*models.OrderRefund, bool, error) {
	if merchant == nil {
		return nil, false, ErrMerchantNotFound
	}
	outBizNo := strings.TrimSpace(input.OutBizNo)
	if outBizNo == "" {
		return nil, false, fmt.Errorf("%w: 缺少退款请求号", ErrPayloadInvalid)
	}
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, false, ErrRefundAmountInvalid
	}

	order, err := s.resolveMerchantOrder(merchant.ID, input.TradeNo, input.OutTradeNo)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.refundRepo.GetByMerchantOutBizNo(merchant.ID, outBizNo)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.resolveDuplicateRefund(existing, order.TradeNo, amount)
	}

	refund, err := s.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       amount,
		InitiateType: constants.RefundInitiateAPI,
		Auto:         true,
		OutBizNo:     outBizNo,
		Reason:       input.Reason,
	})
	if err != nil {
		// 并发同号请求撞唯一索引后复查，命中则按幂等返回
		if existing, queryErr := s.refundRepo.GetByMerchantOutBizNo(merchant.ID, outBizNo); queryErr == nil && existing != nil {
			return s.resolveDuplicateRefund(existing, order.TradeNo, amount)
		}
		return nil, false, err
	}
	return refund, false, nil
}

func (s *RefundService) resolveDuplicateRefund(existing *models.OrderRefund, tradeNo string, amount decimal.Decimal) (*models.OrderRefund, bool, error) {
	if existing.TradeNo == tradeNo && existing.Amount.Decimal.Round(2).Equal(amount) {
		return existing, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s", ErrRefundMismatch, valueOrEmpty(existing.OutBizNo))
}

// GetRefund 按退款单号查询
func (s *RefundService) GetRefund(id string) (*models.OrderRefund, error) {
	refund, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// GetMerchantRefund 商户侧查询：退款单号或退款请求号二选一
func (s *RefundService) GetMerchantRefund(merchantID uint, refundID, outBizNo string) (*models.OrderRefund, error) {
	if refundID != "" {
		refund, err := s.GetRefund(refundID)
		if err != nil {
			return nil, err
		}
		if refund.MerchantID != merchantID {
			return nil, ErrRefundNotFound
		}
		return refund, nil
	}
	if strings.TrimSpace(outBizNo) == "" {
		return nil, fmt.Errorf("%w: 缺少退款单号", ErrPayloadInvalid)
	}
	refund, err := s.refundRepo.GetByMerchantOutBizNo(merchantID, outBizNo)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// ListRefundsByTradeNo 查询订单全部退款单
func (s *RefundService) ListRefundsByTradeNo(tradeNo string) ([]models.OrderRefund, error) {
	return s.refundRepo.ListByTradeNo(tradeNo)
}

// ListRefunds 分页查询退款单
func (s *RefundService) ListRefunds(filter repository.RefundListFilter) ([]models.OrderRefund, int64, error) {
	return s.refundRepo.List(filter)
}

func (s *RefundService) resolveMerchantOrder(merchantID uint, tradeNo, outTradeNo string) (*models.Order, error) {
	if tradeNo != "" {
		order, err := s.orderRepo.GetByTradeNo(tradeNo)
		if err != nil {
			return nil, err
		}
		if order == nil || order.MerchantID != merchantID {
			return nil, ErrOrderNotFound
		}
		return order, nil
	}
	if strings.TrimSpace(outTradeNo) == "" {
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

func (s *RefundService) generateRefundNo(repo *repository.GormRefundRepository, now time.Time) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := GenerateRefundNo(now)
		existing, err := repo.GetByID(id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
	}
	return "", ErrTradeNoGenerateFailed
}

// proportionalRefundFee 手续费按退款占比返还：8 位精度的比例乘手续费后
// 保留 2 位，上限不超过原手续费。
func proportionalRefundFee(fee, amount, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	ratio := amount.DivRound(total, 8)
	refundFee := fee.Mul(ratio).Round(2)
	if refundFee.GreaterThan(fee) {
		refundFee = fee
	}
	return refundFee
}

func normalizeInitiateType(raw string) (string, error) {
	switch strings.TrimSpace(raw) {
	case constants.RefundInitiateAdmin:
		return constants.RefundInitiateAdmin, nil
	case constants.RefundInitiateAPI:
		return constants.RefundInitiateAPI, nil
	case constants.RefundInitiateMerchant:
		return constants.RefundInitiateMerchant, nil
	case constants.RefundInitiateSystem:
		return constants.RefundInitiateSystem, nil
	default:
		return "", fmt.Errorf("%w: 未知退款发起方 %s", ErrPayloadInvalid, raw)
	}
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
