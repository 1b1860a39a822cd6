package service

import (
	"strings"
	"time"

	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 商户钱包账务服务
type WalletService struct {
	walletRepo repository.WalletRepository
}

// WalletChangeInput 可用/在途余额变动输入
type WalletChangeInput struct {
	MerchantID uint
	Delta      decimal.Decimal
	Type       string
	TradeNo    string
	Remark     string
	// ReduceCounterpart 入账时同步扣减对侧余额（在途结转可用、可用转回在途）
	ReduceCounterpart bool
}

// WalletPrepaidChangeInput 预付款变动输入
type WalletPrepaidChangeInput struct {
	MerchantID uint
	Delta      decimal.Decimal
	Type       string
	Remark     string
}

// NewWalletService 创建钱包账务服务
func NewWalletService(walletRepo repository.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// GetWallet 获取商户钱包（不存在时自动建户）
func (s *WalletService) GetWallet(merchantID uint) (*models.MerchantWallet, error) {
	if merchantID == 0 {
		return nil, ErrWalletNotFound
	}
	wallet, err := s.walletRepo.GetByMerchantID(merchantID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	now := time.Now()
	wallet = &models.MerchantWallet{
		MerchantID: merchantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.walletRepo.Create(wallet); err != nil {
		created, queryErr := s.walletRepo.GetByMerchantID(merchantID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, err
	}
	return wallet, nil
}

// ListRecords 查询可用/在途余额流水
func (s *WalletService) ListRecords(filter repository.WalletRecordListFilter) ([]models.MerchantWalletRecord, int64, error) {
	return s.walletRepo.ListRecords(filter)
}

// ListPrepaidRecords 查询预付款流水
func (s *WalletService) ListPrepaidRecords(filter repository.WalletRecordListFilter) ([]models.MerchantWalletPrepaidRecord, int64, error) {
	return s.walletRepo.ListPrepaidRecords(filter)
}

// ChangeAvailable 变动可用余额并写入流水
func (s *WalletService) ChangeAvailable(input WalletChangeInput) (*models.MerchantWallet, *models.MerchantWalletRecord, error) {
	var walletResult *models.MerchantWallet
	var recordResult *models.MerchantWalletRecord
	if err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		wallet, record, err := s.ChangeAvailableTx(tx, input)
		if err != nil {
			return err
		}
		walletResult = wallet
		recordResult = record
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return walletResult, recordResult, nil
}

// ChangeAvailableTx 在既有事务内变动可用余额。
// ReduceCounterpart 且 delta > 0 时同步从在途余额划出等额资金。
func (s *WalletService) ChangeAvailableTx(tx *gorm.DB, input WalletChangeInput) (*models.MerchantWallet, *models.MerchantWalletRecord, error) {
	if input.MerchantID == 0 {
		return nil, nil, ErrWalletNotFound
	}
	delta := input.Delta.Round(2)
	repo := s.walletRepo.WithTx(tx)
	now := time.Now()
	wallet, err := s.ensureWalletForUpdate(repo, input.MerchantID, now)
	if err != nil {
		return nil, nil, err
	}
	if delta.IsZero() {
		return wallet, nil, nil
	}

	oldAvailable := wallet.AvailableBalance.Decimal.Round(2)
	oldUnavailable := wallet.UnavailableBalance.Decimal.Round(2)
	newAvailable := oldAvailable.Add(delta).Round(2)
	if newAvailable.LessThan(decimal.Zero) {
		return nil, nil, ErrWalletInsufficientAvailable
	}
	newUnavailable := oldUnavailable
	deltaUnavailable := decimal.Zero
	if input.ReduceCounterpart && delta.GreaterThan(decimal.Zero) {
		deltaUnavailable = delta.Neg()
		newUnavailable = oldUnavailable.Sub(delta).Round(2)
		if newUnavailable.LessThan(decimal.Zero) {
			return nil, nil, ErrWalletInsufficientUnavailable
		}
	}

	wallet.AvailableBalance = models.NewMoneyFromDecimal(newAvailable)
	wallet.UnavailableBalance = models.NewMoneyFromDecimal(newUnavailable)
	wallet.UpdatedAt = now
	if err := repo.Update(wallet); err != nil {
		return nil, nil, err
	}

	record := &models.MerchantWalletRecord{
		MerchantID:       input.MerchantID,
		Type:             input.Type,
		OldAvailable:     models.NewMoneyFromDecimal(oldAvailable),
		DeltaAvailable:   models.NewMoneyFromDecimal(delta),
		NewAvailable:     models.NewMoneyFromDecimal(newAvailable),
		OldUnavailable:   models.NewMoneyFromDecimal(oldUnavailable),
		DeltaUnavailable: models.NewMoneyFromDecimal(deltaUnavailable),
		NewUnavailable:   models.NewMoneyFromDecimal(newUnavailable),
		TradeNo:          strings.TrimSpace(input.TradeNo),
		Remark:           strings.TrimSpace(input.Remark),
		CreatedAt:        now,
	}
	if err := repo.CreateRecord(record); err != nil {
		return nil, nil, err
	}
	return wallet, record, nil
}

// ChangeUnavailable 变动在途余额并写入流水
func (s *WalletService) ChangeUnavailable(input WalletChangeInput) (*models.MerchantWallet, *models.MerchantWalletRecord, error) {
	var walletResult *models.MerchantWallet
	var recordResult *models.MerchantWalletRecord
	if err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		wallet, record, err := s.ChangeUnavailableTx(tx, input)
		if err != nil {
			return err
		}
		walletResult = wallet
		recordResult = record
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return walletResult, recordResult, nil
}

// ChangeUnavailableTx 在既有事务内变动在途余额。
// ReduceCounterpart 且 delta > 0 时同步从可用余额划出等额资金。
func (s *WalletService) ChangeUnavailableTx(tx *gorm.DB, input WalletChangeInput) (*models.MerchantWallet, *models.MerchantWalletRecord, error) {
	if input.MerchantID == 0 {
		return nil, nil, ErrWalletNotFound
	}
	delta := input.Delta.Round(2)
	repo := s.walletRepo.WithTx(tx)
	now := time.Now()
	wallet, err := s.ensureWalletForUpdate(repo, input.MerchantID, now)
	if err != nil {
		return nil, nil, err
	}
	if delta.IsZero() {
		return wallet, nil, nil
	}

	oldAvailable := wallet.AvailableBalance.Decimal.Round(2)
	oldUnavailable := wallet.UnavailableBalance.Decimal.Round(2)
	newUnavailable := oldUnavailable.Add(delta).Round(2)
	if newUnavailable.LessThan(decimal.Zero) {
		return nil, nil, ErrWalletInsufficientUnavailable
	}
	newAvailable := oldAvailable
	deltaAvailable := decimal.Zero
	if input.ReduceCounterpart && delta.GreaterThan(decimal.Zero) {
		deltaAvailable = delta.Neg()
		newAvailable = oldAvailable.Sub(delta).Round(2)
		if newAvailable.LessThan(decimal.Zero) {
			return nil, nil, ErrWalletInsufficientAvailable
		}
	}

	wallet.AvailableBalance = models.NewMoneyFromDecimal(newAvailable)
	wallet.UnavailableBalance = models.NewMoneyFromDecimal(newUnavailable)
	wallet.UpdatedAt = now
	if err := repo.Update(wallet); err != nil {
		return nil, nil, err
	}

	record := &models.MerchantWalletRecord{
		MerchantID:       input.MerchantID,
		Type:             input.Type,
		OldAvailable:     models.NewMoneyFromDecimal(oldAvailable),
		DeltaAvailable:   models.NewMoneyFromDecimal(deltaAvailable),
		NewAvailable:     models.NewMoneyFromDecimal(newAvailable),
		OldUnavailable:   models.NewMoneyFromDecimal(oldUnavailable),
		DeltaUnavailable: models.NewMoneyFromDecimal(delta),
		NewUnavailable:   models.NewMoneyFromDecimal(newUnavailable),
		TradeNo:          strings.TrimSpace(input.TradeNo),
		Remark:           strings.TrimSpace(input.Remark),
		CreatedAt:        now,
	}
	if err := repo.CreateRecord(record); err != nil {
		return nil, nil, err
	}
	return wallet, record, nil
}

// ChangePrepaid 变动预付款并写入预付款流水
func (s *WalletService) ChangePrepaid(input WalletPrepaidChangeInput) (*models.MerchantWallet, *models.MerchantWalletPrepaidRecord, error) {
	var walletResult *models.MerchantWallet
	var recordResult *models.MerchantWalletPrepaidRecord
	if err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		wallet, record, err := s.ChangePrepaidTx(tx, input)
		if err != nil {
			return err
		}
		walletResult = wallet
		recordResult = record
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return walletResult, recordResult, nil
}

// ChangePrepaidTx 在既有事务内变动预付款
func (s *WalletService) ChangePrepaidTx(tx *gorm.DB, input WalletPrepaidChangeInput) (*models.MerchantWallet, *models.MerchantWalletPrepaidRecord, error) {
	if input.MerchantID == 0 {
		return nil, nil, ErrWalletNotFound
	}
	delta := input.Delta.Round(2)
	repo := s.walletRepo.WithTx(tx)
	now := time.Now()
	wallet, err := s.ensureWalletForUpdate(repo, input.MerchantID, now)
	if err != nil {
		return nil, nil, err
	}
	if delta.IsZero() {
		return wallet, nil, nil
	}

	oldPrepaid := wallet.Prepaid.Decimal.Round(2)
	newPrepaid := oldPrepaid.Add(delta).Round(2)
	if newPrepaid.LessThan(decimal.Zero) {
		return nil, nil, ErrWalletInsufficientPrepaid
	}

	wallet.Prepaid = models.NewMoneyFromDecimal(newPrepaid)
	wallet.UpdatedAt = now
	if err := repo.Update(wallet); err != nil {
		return nil, nil, err
	}

	record := &models.MerchantWalletPrepaidRecord{
		MerchantID:   input.MerchantID,
		Type:         input.Type,
		OldPrepaid:   models.NewMoneyFromDecimal(oldPrepaid),
		DeltaPrepaid: models.NewMoneyFromDecimal(delta),
		NewPrepaid:   models.NewMoneyFromDecimal(newPrepaid),
		Remark:       strings.TrimSpace(input.Remark),
		CreatedAt:    now,
	}
	if err := repo.CreatePrepaidRecord(record); err != nil {
		return nil, nil, err
	}
	return wallet, record, nil
}

// LockWalletTx 在既有事务内锁定钱包行。涉及订单的资金事务先锁钱包再锁订单。
func (s *WalletService) LockWalletTx(tx *gorm.DB, merchantID uint) (*models.MerchantWallet, error) {
	return s.ensureWalletForUpdate(s.walletRepo.WithTx(tx), merchantID, time.Now())
}

func (s *WalletService) ensureWalletForUpdate(repo *repository.GormWalletRepository, merchantID uint, now time.Time) (*models.MerchantWallet, error) {
	wallet, err := repo.GetByMerchantIDForUpdate(merchantID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = &models.MerchantWallet{
		MerchantID: merchantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(wallet); err != nil {
		created, queryErr := repo.GetByMerchantIDForUpdate(merchantID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, err
	}
	return wallet, nil
}
