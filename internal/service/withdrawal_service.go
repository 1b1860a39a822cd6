package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalService 提现引擎：清账、申请提现与审核状态机。
// 申请即扣可用余额，驳回/取消/失败时原额返还并回补预付款冲抵。
type WithdrawalService struct {
	cfg            *config.Config
	withdrawalRepo repository.WithdrawalRepository
	walletService  *WalletService
}

// NewWithdrawalService 创建提现服务
func NewWithdrawalService(
	cfg *config.Config,
	withdrawalRepo repository.WithdrawalRepository,
	walletService *WalletService,
) *WithdrawalService {
	return &WithdrawalService{
		cfg:            cfg,
		withdrawalRepo: withdrawalRepo,
		walletService:  walletService,
	}
}

// SettleAccount 管理端清账：可用余额未超出预付款时直接对冲两侧，
// 超出部分生成处理中的提现单。返回 nil 记录表示纯对冲无需打款。
func (s *WithdrawalService) SettleAccount(merchantID uint, payee models.JSON) (*models.MerchantWithdrawalRecord, error) {
	if merchantID == 0 {
		return nil, ErrMerchantNotFound
	}

	now := time.Now().In(s.cfg.Location())
	var record *models.MerchantWithdrawalRecord
	err := s.withdrawalRepo.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletService.LockWalletTx(tx, merchantID)
		if err != nil {
			return err
		}
		available := wallet.AvailableBalance.Decimal.Round(2)
		prepaid := wallet.Prepaid.Decimal.Round(2)
		if !available.IsPositive() {
			return fmt.Errorf("%w: 无可清账余额", ErrWalletInsufficientAvailable)
		}

		if available.LessThanOrEqual(prepaid) {
			// 全额被预付款覆盖：双侧等额核销，不产生打款单
			if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
				MerchantID: merchantID,
				Delta:      available.Neg(),
				Type:       constants.WalletChangeSettleAccount,
				Remark:     "清账核销",
			}); err != nil {
				return err
			}
			_, _, err := s.walletService.ChangePrepaidTx(tx, WalletPrepaidChangeInput{
				MerchantID: merchantID,
				Delta:      available.Neg(),
				Type:       constants.WalletChangeSettleAccount,
				Remark:     "清账核销",
			})
			return err
		}

		record = &models.MerchantWithdrawalRecord{
			MerchantID:      merchantID,
			PayeeInfo:       payee,
			Amount:          models.NewMoneyFromDecimal(available),
			PrepaidDeducted: models.NewMoneyFromDecimal(prepaid),
			ReceivedAmount:  models.NewMoneyFromDecimal(available.Sub(prepaid)),
			Fee:             models.NewMoneyFromDecimal(decimal.Zero),
			Status:          constants.BizStatusProcessing,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.withdrawalRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
			MerchantID: merchantID,
			Delta:      available.Neg(),
			Type:       constants.WalletChangeSettleAccount,
			Remark:     fmt.Sprintf("清账提现 #%d", record.ID),
		}); err != nil {
			return err
		}
		if _, _, err := s.walletService.ChangePrepaidTx(tx, WalletPrepaidChangeInput{
			MerchantID: merchantID,
			Delta:      prepaid.Neg(),
			Type:       constants.WalletChangeSettleAccount,
			Remark:     fmt.Sprintf("清账冲抵 #%d", record.ID),
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ApplyWithdrawal 商户申请提现：扣减可用余额并生成待审核提现单
func (s *WithdrawalService) ApplyWithdrawal(merchantID uint, payee models.JSON, amount decimal.Decimal) (*models.MerchantWithdrawalRecord, error) {
	if merchantID == 0 {
		return nil, ErrMerchantNotFound
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrWithdrawalAmountInvalid
	}

	now := time.Now().In(s.cfg.Location())
	var record *models.MerchantWithdrawalRecord
	err := s.withdrawalRepo.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletService.LockWalletTx(tx, merchantID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(wallet.AvailableBalance.Decimal.Round(2)) {
			return fmt.Errorf("%w: 可提 %s", ErrWalletInsufficientAvailable, wallet.AvailableBalance.StringFixed(2))
		}

		record = &models.MerchantWithdrawalRecord{
			MerchantID:      merchantID,
			PayeeInfo:       payee,
			Amount:          models.NewMoneyFromDecimal(amount),
			PrepaidDeducted: models.NewMoneyFromDecimal(decimal.Zero),
			ReceivedAmount:  models.NewMoneyFromDecimal(amount),
			Fee:             models.NewMoneyFromDecimal(decimal.Zero),
			Status:          constants.BizStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.withdrawalRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		_, _, err = s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
			MerchantID: merchantID,
			Delta:      amount.Neg(),
			Type:       constants.WalletChangeWithdrawal,
			Remark:     fmt.Sprintf("提现申请 #%d", record.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ChangeStatus 审核状态流转。进入 REJECTED/CANCELED/FAILED 时返还资金。
func (s *WithdrawalService) ChangeStatus(id uint, target, reason string) (*models.MerchantWithdrawalRecord, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	probe, err := s.withdrawalRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, ErrWithdrawalNotFound
	}

	var record *models.MerchantWithdrawalRecord
	err = s.withdrawalRepo.Transaction(func(tx *gorm.DB) error {
		// 先锁钱包再锁提现单，避免与退款路径交叉死锁
		if _, err := s.walletService.LockWalletTx(tx, probe.MerchantID); err != nil {
			return err
		}
		repo := s.withdrawalRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrWithdrawalNotFound
		}
		record = locked
		if !isWithdrawalTransitionAllowed(record.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrWithdrawalStateInvalid, record.Status, target)
		}

		if isWithdrawalRestitution(target) {
			if _, _, err := s.walletService.ChangeAvailableTx(tx, WalletChangeInput{
				MerchantID: record.MerchantID,
				Delta:      record.Amount.Decimal,
				Type:       constants.WalletChangeWithdrawalReturn,
				Remark:     fmt.Sprintf("提现退回 #%d", record.ID),
			}); err != nil {
				return err
			}
			if record.PrepaidDeducted.Decimal.IsPositive() {
				if _, _, err := s.walletService.ChangePrepaidTx(tx, WalletPrepaidChangeInput{
					MerchantID: record.MerchantID,
					Delta:      record.PrepaidDeducted.Decimal,
					Type:       constants.WalletChangeWithdrawalReturn,
					Remark:     fmt.Sprintf("提现冲抵退回 #%d", record.ID),
				}); err != nil {
					return err
				}
			}
		}

		record.Status = target
		if target == constants.BizStatusRejected || target == constants.BizStatusFailed {
			record.RejectReason = strings.TrimSpace(reason)
		}
		record.UpdatedAt = time.Now().In(s.cfg.Location())
		return repo.Update(record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetWithdrawal 按 ID 查询提现单
func (s *WithdrawalService) GetWithdrawal(id uint) (*models.MerchantWithdrawalRecord, error) {
	record, err := s.withdrawalRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrWithdrawalNotFound
	}
	return record, nil
}

// ListWithdrawals 分页查询提现单
func (s *WithdrawalService) ListWithdrawals(filter repository.WithdrawalListFilter) ([]models.MerchantWithdrawalRecord, int64, error) {
	return s.withdrawalRepo.List(filter)
}

// isWithdrawalTransitionAllowed 提现状态机
func isWithdrawalTransitionAllowed(from, to string) bool {
	allowed := map[string][]string{
		constants.BizStatusPending:    {constants.BizStatusProcessing, constants.BizStatusRejected, constants.BizStatusCanceled},
		constants.BizStatusProcessing: {constants.BizStatusCompleted, constants.BizStatusFailed, constants.BizStatusCanceled},
	}
	for _, target := range allowed[from] {
		if target == to {
			return true
		}
	}
	return false
}

func isWithdrawalRestitution(target string) bool {
	return target == constants.BizStatusRejected ||
		target == constants.BizStatusCanceled ||
		target == constants.BizStatusFailed
}
