package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWalletServiceTest(t *testing.T) (*WalletService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.MerchantWallet{},
		&models.MerchantWalletRecord{},
		&models.MerchantWalletPrepaidRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	walletRepo := repository.NewWalletRepository(db)
	return NewWalletService(walletRepo), db
}

func TestWalletServiceChangeAvailable(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)

	wallet, record, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID: 201,
		Delta:      decimal.NewFromFloat(97.50),
		Type:       constants.WalletChangeOrderIncome,
		TradeNo:    "P240601120000000001ABCDE",
		Remark:     "订单入账",
	})
	if err != nil {
		t.Fatalf("change available failed: %v", err)
	}
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromFloat(97.50)) {
		t.Fatalf("unexpected available balance: %s", wallet.AvailableBalance.String())
	}
	if record == nil {
		t.Fatal("expected a wallet record")
	}
	if !record.OldAvailable.Decimal.IsZero() || !record.NewAvailable.Decimal.Equal(decimal.NewFromFloat(97.50)) {
		t.Fatalf("unexpected record amounts: old=%s new=%s", record.OldAvailable.String(), record.NewAvailable.String())
	}
	if !record.NewAvailable.Decimal.Sub(record.OldAvailable.Decimal).Equal(record.DeltaAvailable.Decimal) {
		t.Fatalf("record delta mismatch: %+v", record)
	}
	if !record.DeltaUnavailable.Decimal.IsZero() {
		t.Fatalf("unavailable should be untouched: %s", record.DeltaUnavailable.String())
	}
}

func TestWalletServiceChangeAvailableInsufficient(t *testing.T) {
	svc, db := setupWalletServiceTest(t)

	if _, _, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID: 202,
		Delta:      decimal.NewFromInt(10),
		Type:       constants.WalletChangeOrderIncome,
	}); err != nil {
		t.Fatalf("seed balance failed: %v", err)
	}

	_, _, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID: 202,
		Delta:      decimal.NewFromInt(-20),
		Type:       constants.WalletChangeOrderRefund,
	})
	if !errors.Is(err, ErrWalletInsufficientAvailable) {
		t.Fatalf("expected insufficient available, got: %v", err)
	}

	var wallet models.MerchantWallet
	if err := db.Where("merchant_id = ?", 202).First(&wallet).Error; err != nil {
		t.Fatalf("load wallet failed: %v", err)
	}
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("failed change must roll back, balance: %s", wallet.AvailableBalance.String())
	}
	var count int64
	if err := db.Model(&models.MerchantWalletRecord{}).Where("merchant_id = ?", 202).Count(&count).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the seed record, got %d", count)
	}
}

func TestWalletServiceSettleMovesUnavailableToAvailable(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)

	if _, _, err := svc.ChangeUnavailable(WalletChangeInput{
		MerchantID: 203,
		Delta:      decimal.NewFromInt(80),
		Type:       constants.WalletChangeOrderIncome,
		TradeNo:    "P240601120000000002ABCDE",
	}); err != nil {
		t.Fatalf("seed unavailable failed: %v", err)
	}

	wallet, record, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID:        203,
		Delta:             decimal.NewFromInt(80),
		Type:              constants.WalletChangeOrderSettle,
		TradeNo:           "P240601120000000002ABCDE",
		ReduceCounterpart: true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !wallet.AvailableBalance.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected available: %s", wallet.AvailableBalance.String())
	}
	if !wallet.UnavailableBalance.Decimal.IsZero() {
		t.Fatalf("unexpected unavailable: %s", wallet.UnavailableBalance.String())
	}
	if !record.DeltaAvailable.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected delta available: %s", record.DeltaAvailable.String())
	}
	if !record.DeltaUnavailable.Decimal.Equal(decimal.NewFromInt(-80)) {
		t.Fatalf("unexpected delta unavailable: %s", record.DeltaUnavailable.String())
	}
}

func TestWalletServiceSettleInsufficientUnavailable(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)

	if _, _, err := svc.ChangeUnavailable(WalletChangeInput{
		MerchantID: 204,
		Delta:      decimal.NewFromInt(30),
		Type:       constants.WalletChangeOrderIncome,
	}); err != nil {
		t.Fatalf("seed unavailable failed: %v", err)
	}

	_, _, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID:        204,
		Delta:             decimal.NewFromInt(50),
		Type:              constants.WalletChangeOrderSettle,
		ReduceCounterpart: true,
	})
	if !errors.Is(err, ErrWalletInsufficientUnavailable) {
		t.Fatalf("expected insufficient unavailable, got: %v", err)
	}
}

func TestWalletServiceZeroDeltaNoRecord(t *testing.T) {
	svc, db := setupWalletServiceTest(t)

	wallet, record, err := svc.ChangeAvailable(WalletChangeInput{
		MerchantID: 205,
		Delta:      decimal.Zero,
		Type:       constants.WalletChangeAdminAdjust,
	})
	if err != nil {
		t.Fatalf("zero delta change failed: %v", err)
	}
	if record != nil {
		t.Fatalf("zero delta must not write a record: %+v", record)
	}
	if wallet == nil {
		t.Fatal("wallet should still be returned")
	}
	var count int64
	if err := db.Model(&models.MerchantWalletRecord{}).Where("merchant_id = ?", 205).Count(&count).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no records, got %d", count)
	}
}

func TestWalletServiceChangePrepaid(t *testing.T) {
	svc, _ := setupWalletServiceTest(t)

	wallet, record, err := svc.ChangePrepaid(WalletPrepaidChangeInput{
		MerchantID: 206,
		Delta:      decimal.NewFromInt(50),
		Type:       constants.WalletChangeAdminAdjust,
		Remark:     "预付款充值",
	})
	if err != nil {
		t.Fatalf("change prepaid failed: %v", err)
	}
	if !wallet.Prepaid.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected prepaid: %s", wallet.Prepaid.String())
	}
	if !record.NewPrepaid.Decimal.Sub(record.OldPrepaid.Decimal).Equal(record.DeltaPrepaid.Decimal) {
		t.Fatalf("prepaid record delta mismatch: %+v", record)
	}

	if _, _, err := svc.ChangePrepaid(WalletPrepaidChangeInput{
		MerchantID: 206,
		Delta:      decimal.NewFromInt(-60),
		Type:       constants.WalletChangeWithdrawal,
	}); !errors.Is(err, ErrWalletInsufficientPrepaid) {
		t.Fatalf("expected insufficient prepaid, got: %v", err)
	}

	wallet, _, err = svc.ChangePrepaid(WalletPrepaidChangeInput{
		MerchantID: 206,
		Delta:      decimal.NewFromInt(-50),
		Type:       constants.WalletChangeWithdrawal,
	})
	if err != nil {
		t.Fatalf("drain prepaid failed: %v", err)
	}
	if !wallet.Prepaid.Decimal.IsZero() {
		t.Fatalf("prepaid should be zero, got %s", wallet.Prepaid.String())
	}
}
