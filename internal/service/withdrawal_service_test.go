package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWithdrawalServiceTest(t *testing.T) (*WithdrawalService, *WalletService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:withdrawal_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.MerchantWallet{},
		&models.MerchantWalletRecord{},
		&models.MerchantWalletPrepaidRecord{},
		&models.MerchantWithdrawalRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"

	walletSvc := NewWalletService(repository.NewWalletRepository(db))
	withdrawalSvc := NewWithdrawalService(cfg, repository.NewWithdrawalRepository(db), walletSvc)
	return withdrawalSvc, walletSvc, db
}

func seedWithdrawalWallet(t *testing.T, walletSvc *WalletService, merchantID uint, available, prepaid float64) {
	t.Helper()
	if available > 0 {
		if _, _, err := walletSvc.ChangeAvailable(WalletChangeInput{
			MerchantID: merchantID,
			Delta:      decimal.NewFromFloat(available),
			Type:       constants.WalletChangeAdminAdjust,
			Remark:     "期初余额",
		}); err != nil {
			t.Fatalf("seed available failed: %v", err)
		}
	}
	if prepaid > 0 {
		if _, _, err := walletSvc.ChangePrepaid(WalletPrepaidChangeInput{
			MerchantID: merchantID,
			Delta:      decimal.NewFromFloat(prepaid),
			Type:       constants.WalletChangeAdminAdjust,
			Remark:     "期初预付款",
		}); err != nil {
			t.Fatalf("seed prepaid failed: %v", err)
		}
	}
}

func loadTestWallet(t *testing.T, db *gorm.DB, merchantID uint) *models.MerchantWallet {
	t.Helper()
	var wallet models.MerchantWallet
	if err := db.Where("merchant_id = ?", merchantID).First(&wallet).Error; err != nil {
		t.Fatalf("load wallet failed: %v", err)
	}
	return &wallet
}

func assertWithdrawalInvariant(t *testing.T, record *models.MerchantWithdrawalRecord) {
	t.Helper()
	sum := record.PrepaidDeducted.Decimal.Add(record.ReceivedAmount.Decimal)
	if !record.FeeType {
		sum = sum.Add(record.Fee.Decimal)
	}
	if !record.Amount.Decimal.Equal(sum) {
		t.Fatalf("withdrawal amount invariant broken: amount=%s prepaid=%s received=%s fee=%s",
			record.Amount.String(), record.PrepaidDeducted.String(), record.ReceivedAmount.String(), record.Fee.String())
	}
}

func TestWithdrawalServiceSettleAccountCreatesRecord(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 301, 500.00, 120.00)

	record, err := svc.SettleAccount(301, models.JSON{"bank": "招商银行", "account": "6225880112345678"})
	if err != nil {
		t.Fatalf("settle account failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a withdrawal record")
	}
	if record.Status != constants.BizStatusProcessing {
		t.Fatalf("unexpected status: %s", record.Status)
	}
	if record.Amount.String() != "500.00" || record.PrepaidDeducted.String() != "120.00" || record.ReceivedAmount.String() != "380.00" {
		t.Fatalf("unexpected amounts: amount=%s prepaid=%s received=%s",
			record.Amount.String(), record.PrepaidDeducted.String(), record.ReceivedAmount.String())
	}
	if !record.Fee.Decimal.IsZero() {
		t.Fatalf("settle account should carry zero fee: %s", record.Fee.String())
	}
	assertWithdrawalInvariant(t, record)

	wallet := loadTestWallet(t, db, 301)
	if !wallet.AvailableBalance.Decimal.IsZero() || !wallet.Prepaid.Decimal.IsZero() {
		t.Fatalf("wallet should be cleared: available=%s prepaid=%s",
			wallet.AvailableBalance.String(), wallet.Prepaid.String())
	}

	var ledger []models.MerchantWalletRecord
	if err := db.Where("merchant_id = ? AND type = ?", 301, constants.WalletChangeSettleAccount).Find(&ledger).Error; err != nil {
		t.Fatalf("load ledger failed: %v", err)
	}
	if len(ledger) != 1 || !ledger[0].DeltaAvailable.Decimal.Equal(decimal.NewFromInt(-500)) {
		t.Fatalf("unexpected settle ledger: %+v", ledger)
	}
}

func TestWithdrawalServiceSettleAccountPureOffset(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 302, 80.00, 100.00)

	record, err := svc.SettleAccount(302, nil)
	if err != nil {
		t.Fatalf("settle account failed: %v", err)
	}
	if record != nil {
		t.Fatalf("offset path should not create a record: %+v", record)
	}

	wallet := loadTestWallet(t, db, 302)
	if !wallet.AvailableBalance.Decimal.IsZero() {
		t.Fatalf("available should be cleared: %s", wallet.AvailableBalance.String())
	}
	if !wallet.Prepaid.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("prepaid should keep the uncovered part: %s", wallet.Prepaid.String())
	}

	var count int64
	if err := db.Model(&models.MerchantWithdrawalRecord{}).Where("merchant_id = ?", 302).Count(&count).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no withdrawal rows, got %d", count)
	}
}

func TestWithdrawalServiceSettleAccountRequiresBalance(t *testing.T) {
	svc, _, _ := setupWithdrawalServiceTest(t)

	// 钱包按需建档，新商户即零余额
	_, err := svc.SettleAccount(303, nil)
	if !errors.Is(err, ErrWalletInsufficientAvailable) {
		t.Fatalf("expected insufficient available, got: %v", err)
	}
}

func TestWithdrawalServiceApplyWithdrawal(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 304, 300.00, 0)

	record, err := svc.ApplyWithdrawal(304, models.JSON{"alipay": "demo@example.com"}, decimal.NewFromFloat(120.50))
	if err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}
	if record.Status != constants.BizStatusPending {
		t.Fatalf("unexpected status: %s", record.Status)
	}
	if record.ReceivedAmount.String() != "120.50" || !record.PrepaidDeducted.Decimal.IsZero() {
		t.Fatalf("unexpected amounts: received=%s prepaid=%s",
			record.ReceivedAmount.String(), record.PrepaidDeducted.String())
	}
	assertWithdrawalInvariant(t, record)

	wallet := loadTestWallet(t, db, 304)
	if wallet.AvailableBalance.String() != "179.50" {
		t.Fatalf("unexpected available after apply: %s", wallet.AvailableBalance.String())
	}

	if _, err := svc.ApplyWithdrawal(304, nil, decimal.NewFromInt(500)); !errors.Is(err, ErrWalletInsufficientAvailable) {
		t.Fatalf("expected insufficient available, got: %v", err)
	}
	if _, err := svc.ApplyWithdrawal(304, nil, decimal.Zero); !errors.Is(err, ErrWithdrawalAmountInvalid) {
		t.Fatalf("expected invalid amount, got: %v", err)
	}
	if _, err := svc.ApplyWithdrawal(304, nil, decimal.NewFromInt(-5)); !errors.Is(err, ErrWithdrawalAmountInvalid) {
		t.Fatalf("expected invalid amount for negative, got: %v", err)
	}
}

func TestWithdrawalServiceStatusGraph(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 305, 200.00, 0)

	record, err := svc.ApplyWithdrawal(305, nil, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}

	// PENDING 不能直达 COMPLETED
	if _, err := svc.ChangeStatus(record.ID, constants.BizStatusCompleted, ""); !errors.Is(err, ErrWithdrawalStateInvalid) {
		t.Fatalf("expected state invalid, got: %v", err)
	}

	updated, err := svc.ChangeStatus(record.ID, constants.BizStatusProcessing, "")
	if err != nil {
		t.Fatalf("to processing failed: %v", err)
	}
	if updated.Status != constants.BizStatusProcessing {
		t.Fatalf("unexpected status: %s", updated.Status)
	}
	// 打款中不退钱
	wallet := loadTestWallet(t, db, 305)
	if wallet.AvailableBalance.String() != "100.00" {
		t.Fatalf("processing should not touch wallet: %s", wallet.AvailableBalance.String())
	}

	updated, err = svc.ChangeStatus(record.ID, constants.BizStatusCompleted, "")
	if err != nil {
		t.Fatalf("to completed failed: %v", err)
	}
	if updated.Status != constants.BizStatusCompleted {
		t.Fatalf("unexpected status: %s", updated.Status)
	}
	wallet = loadTestWallet(t, db, 305)
	if wallet.AvailableBalance.String() != "100.00" {
		t.Fatalf("completed should not touch wallet: %s", wallet.AvailableBalance.String())
	}

	// COMPLETED 为终态
	if _, err := svc.ChangeStatus(record.ID, constants.BizStatusCanceled, ""); !errors.Is(err, ErrWithdrawalStateInvalid) {
		t.Fatalf("expected terminal state, got: %v", err)
	}

	if _, err := svc.ChangeStatus(9999, constants.BizStatusProcessing, ""); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

func TestWithdrawalServiceRejectRestoresFunds(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 306, 250.00, 0)

	record, err := svc.ApplyWithdrawal(306, nil, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}
	if wallet := loadTestWallet(t, db, 306); wallet.AvailableBalance.String() != "150.00" {
		t.Fatalf("unexpected available after apply: %s", wallet.AvailableBalance.String())
	}

	updated, err := svc.ChangeStatus(record.ID, constants.BizStatusRejected, "收款资料不全")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if updated.Status != constants.BizStatusRejected || updated.RejectReason != "收款资料不全" {
		t.Fatalf("unexpected record after reject: status=%s reason=%s", updated.Status, updated.RejectReason)
	}

	wallet := loadTestWallet(t, db, 306)
	if wallet.AvailableBalance.String() != "250.00" {
		t.Fatalf("reject should restore available: %s", wallet.AvailableBalance.String())
	}

	var ledger []models.MerchantWalletRecord
	if err := db.Where("merchant_id = ? AND type = ?", 306, constants.WalletChangeWithdrawalReturn).Find(&ledger).Error; err != nil {
		t.Fatalf("load ledger failed: %v", err)
	}
	if len(ledger) != 1 || !ledger[0].DeltaAvailable.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected return ledger: %+v", ledger)
	}
}

func TestWithdrawalServiceFailureRestoresPrepaidOffset(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 307, 500.00, 120.00)

	record, err := svc.SettleAccount(307, nil)
	if err != nil {
		t.Fatalf("settle account failed: %v", err)
	}

	updated, err := svc.ChangeStatus(record.ID, constants.BizStatusFailed, "银行退票")
	if err != nil {
		t.Fatalf("fail withdrawal failed: %v", err)
	}
	if updated.RejectReason != "银行退票" {
		t.Fatalf("expected reject reason stored, got: %s", updated.RejectReason)
	}

	wallet := loadTestWallet(t, db, 307)
	if wallet.AvailableBalance.String() != "500.00" {
		t.Fatalf("failed withdrawal should restore available: %s", wallet.AvailableBalance.String())
	}
	if wallet.Prepaid.String() != "120.00" {
		t.Fatalf("failed withdrawal should restore prepaid: %s", wallet.Prepaid.String())
	}
}

func TestWithdrawalServiceCancelKeepsReasonEmpty(t *testing.T) {
	svc, walletSvc, db := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 308, 90.00, 0)

	record, err := svc.ApplyWithdrawal(308, nil, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}

	updated, err := svc.ChangeStatus(record.ID, constants.BizStatusCanceled, "商户撤回")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != constants.BizStatusCanceled {
		t.Fatalf("unexpected status: %s", updated.Status)
	}
	if updated.RejectReason != "" {
		t.Fatalf("cancel should not record a reject reason: %s", updated.RejectReason)
	}
	if wallet := loadTestWallet(t, db, 308); wallet.AvailableBalance.String() != "90.00" {
		t.Fatalf("cancel should restore available: %s", wallet.AvailableBalance.String())
	}
}

func TestWithdrawalServiceGetAndList(t *testing.T) {
	svc, walletSvc, _ := setupWithdrawalServiceTest(t)
	seedWithdrawalWallet(t, walletSvc, 309, 400.00, 0)
	seedWithdrawalWallet(t, walletSvc, 310, 400.00, 0)

	first, err := svc.ApplyWithdrawal(309, nil, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}
	if _, err := svc.ApplyWithdrawal(310, nil, decimal.NewFromInt(70)); err != nil {
		t.Fatalf("apply withdrawal failed: %v", err)
	}

	got, err := svc.GetWithdrawal(first.ID)
	if err != nil {
		t.Fatalf("get withdrawal failed: %v", err)
	}
	if got.MerchantID != 309 {
		t.Fatalf("unexpected merchant: %d", got.MerchantID)
	}
	if _, err := svc.GetWithdrawal(9999); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}

	records, total, err := svc.ListWithdrawals(repository.WithdrawalListFilter{MerchantID: 309, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list withdrawals failed: %v", err)
	}
	if total != 1 || len(records) != 1 || records[0].ID != first.ID {
		t.Fatalf("unexpected list result: total=%d len=%d", total, len(records))
	}

	records, total, err = svc.ListWithdrawals(repository.WithdrawalListFilter{Status: constants.BizStatusPending, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("unexpected status list: total=%d len=%d", total, len(records))
	}
}
