package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupChannelServiceTest(t *testing.T) (*ChannelService, *gorm.DB, *cache.MemoryPaymentCounterStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:channel_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentChannel{}, &models.PaymentChannelAccount{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"
	store := cache.NewMemoryPaymentCounterStore()
	svc := NewChannelService(cfg, repository.NewPaymentChannelRepository(db), store)
	return svc, db, store
}

func seedTestChannel(t *testing.T, db *gorm.DB, id uint, code string, rollMode int, mutate func(*models.PaymentChannel)) *models.PaymentChannel {
	t.Helper()
	now := time.Now()
	channel := &models.PaymentChannel{
		ID:          id,
		Code:        code,
		Name:        "测试渠道" + code,
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayAlipay,
		Rate:        models.NewRateFromDecimal(decimal.NewFromFloat(0.0240)),
		Costs:       models.NewRateFromDecimal(decimal.NewFromFloat(0.0100)),
		RollMode:    rollMode,
		Status:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mutate != nil {
		mutate(channel)
	}
	if err := db.Create(channel).Error; err != nil {
		t.Fatalf("create channel failed: %v", err)
	}
	return channel
}

func seedTestAccount(t *testing.T, db *gorm.DB, id, channelID uint, mutate func(*models.PaymentChannelAccount)) *models.PaymentChannelAccount {
	t.Helper()
	now := time.Now()
	account := &models.PaymentChannelAccount{
		ID:            id,
		ChannelID:     channelID,
		Name:          fmt.Sprintf("子账户-%d", id),
		InheritConfig: true,
		Status:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mutate != nil {
		mutate(account)
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	return account
}

func TestChannelServiceSequentialRotation(t *testing.T) {
	svc, db, store := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "ALIPAYA", constants.RollModeSequential, nil)
	for _, id := range []uint{3, 5, 7} {
		seedTestAccount(t, db, id, channel.ID, nil)
	}
	if err := store.SetRotationPointer(ctx, channel.ID, 3); err != nil {
		t.Fatalf("seed pointer failed: %v", err)
	}

	want := []uint{5, 7, 3, 5, 7}
	for i, expected := range want {
		_, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
			PaymentType: constants.PaymentTypeAlipay,
			Amount:      decimal.NewFromInt(10),
		})
		if err != nil {
			t.Fatalf("select %d failed: %v", i+1, err)
		}
		if account.ID != expected {
			t.Fatalf("pick %d: expected account %d, got %d", i+1, expected, account.ID)
		}
	}
}

func TestChannelServiceWeightedRoll(t *testing.T) {
	svc, db, _ := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "ALIPAYW", constants.RollModeWeighted, nil)
	seedTestAccount(t, db, 1, channel.ID, func(a *models.PaymentChannelAccount) { a.RollWeight = 0 })
	seedTestAccount(t, db, 2, channel.ID, func(a *models.PaymentChannelAccount) { a.RollWeight = 5 })

	for i := 0; i < 10; i++ {
		_, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
			PaymentType: constants.PaymentTypeAlipay,
			Amount:      decimal.NewFromInt(10),
		})
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if account.ID != 2 {
			t.Fatalf("zero-weight account must be excluded, got %d", account.ID)
		}
	}
}

func TestChannelServiceWeightedAllZeroFallsBack(t *testing.T) {
	svc, db, _ := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "ALIPAYZ", constants.RollModeWeighted, nil)
	seedTestAccount(t, db, 4, channel.ID, func(a *models.PaymentChannelAccount) { a.RollWeight = 0 })
	seedTestAccount(t, db, 6, channel.ID, func(a *models.PaymentChannelAccount) { a.RollWeight = 0 })

	_, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if account.ID != 4 {
		t.Fatalf("all-zero weights fall back to sequential first pick, got %d", account.ID)
	}
}

func TestChannelServiceAmountWindowSkipsChannel(t *testing.T) {
	svc, db, _ := setupChannelServiceTest(t)
	ctx := context.Background()

	min := decimal.NewFromInt(10)
	max := decimal.NewFromInt(50)
	first := seedTestChannel(t, db, 1, "SMALLPAY", constants.RollModeFirst, func(c *models.PaymentChannel) {
		minMoney := models.NewMoneyFromDecimal(min)
		maxMoney := models.NewMoneyFromDecimal(max)
		c.MinAmount = &minMoney
		c.MaxAmount = &maxMoney
	})
	seedTestAccount(t, db, 1, first.ID, nil)
	second := seedTestChannel(t, db, 2, "BIGPAY", constants.RollModeFirst, nil)
	seedTestAccount(t, db, 2, second.ID, nil)

	channel, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if channel.ID != second.ID || account.ID != 2 {
		t.Fatalf("expected fallthrough to second channel, got channel %d account %d", channel.ID, account.ID)
	}
}

func TestChannelServiceNoChannelForPaymentType(t *testing.T) {
	svc, db, _ := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "ALIPAYN", constants.RollModeFirst, nil)
	seedTestAccount(t, db, 1, channel.ID, nil)

	_, _, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeWechatPay,
		Amount:      decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrNoAvailableChannel) {
		t.Fatalf("expected no available channel, got: %v", err)
	}
}

func TestChannelServiceChannelDailyCapFailsHard(t *testing.T) {
	svc, db, store := setupChannelServiceTest(t)
	ctx := context.Background()

	limit := models.NewMoneyFromDecimal(decimal.NewFromInt(100))
	first := seedTestChannel(t, db, 1, "CAPPED", constants.RollModeFirst, func(c *models.PaymentChannel) {
		c.DailyLimit = &limit
	})
	seedTestAccount(t, db, 1, first.ID, nil)
	second := seedTestChannel(t, db, 2, "OPENPAY", constants.RollModeFirst, nil)
	seedTestAccount(t, db, 2, second.ID, nil)

	date := time.Now().In(time.FixedZone("CST", 8*3600)).Format(constants.TimeFormatDate)
	if err := store.AddChannelDailyAmount(ctx, first.ID, date, decimal.NewFromInt(80)); err != nil {
		t.Fatalf("seed counter failed: %v", err)
	}

	// 渠道日限额超限直接失败，不落到下一渠道
	_, _, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(30),
	})
	if !errors.Is(err, ErrNoAvailableChannel) {
		t.Fatalf("expected hard failure on channel daily cap, got: %v", err)
	}
}

func TestChannelServiceAccountDailyCapSkipsAccount(t *testing.T) {
	svc, db, store := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "ACCTCAP", constants.RollModeFirst, nil)
	limit := models.NewMoneyFromDecimal(decimal.NewFromInt(50))
	seedTestAccount(t, db, 1, channel.ID, func(a *models.PaymentChannelAccount) { a.DailyLimit = &limit })
	seedTestAccount(t, db, 2, channel.ID, nil)

	date := time.Now().In(time.FixedZone("CST", 8*3600)).Format(constants.TimeFormatDate)
	if err := store.AddAccountDailyAmount(ctx, 1, date, decimal.NewFromInt(45)); err != nil {
		t.Fatalf("seed counter failed: %v", err)
	}

	_, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if account.ID != 2 {
		t.Fatalf("capped account must be skipped, got %d", account.ID)
	}
}

func TestChannelServiceMerchantWhitelist(t *testing.T) {
	svc, db, _ := setupChannelServiceTest(t)
	ctx := context.Background()

	channel := seedTestChannel(t, db, 1, "WLPAY", constants.RollModeFirst, nil)
	seedTestAccount(t, db, 1, channel.ID, nil)
	seedTestAccount(t, db, 2, channel.ID, nil)

	merchant := &models.Merchant{
		ID: 9,
		ChannelWhitelist: models.ChannelWhitelist{
			{ChannelID: channel.ID, UseAllAccounts: false, Accounts: []models.ChannelWhitelistAccount{{AccountID: 2}}},
		},
	}

	_, account, err := svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(10),
		Merchant:    merchant,
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if account.ID != 2 {
		t.Fatalf("whitelist must restrict to account 2, got %d", account.ID)
	}

	outsider := &models.Merchant{
		ID:               10,
		ChannelWhitelist: models.ChannelWhitelist{{ChannelID: 999, UseAllAccounts: true}},
	}
	_, _, err = svc.SelectAccount(ctx, ChannelSelectInput{
		PaymentType: constants.PaymentTypeAlipay,
		Amount:      decimal.NewFromInt(10),
		Merchant:    outsider,
	})
	if !errors.Is(err, ErrNoAvailableAccount) {
		t.Fatalf("non-whitelisted channel must exhaust, got: %v", err)
	}
}

func TestChannelServiceCreateChannelValidation(t *testing.T) {
	svc, _, _ := setupChannelServiceTest(t)

	input := ChannelInput{
		Code:        "alipay01",
		Name:        "支付宝主渠道",
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayAlipay,
		Rate:        decimal.NewFromFloat(0.0240),
		Status:      true,
	}
	channel, err := svc.CreateChannel(input)
	if err != nil {
		t.Fatalf("create channel failed: %v", err)
	}
	if channel.Code != "ALIPAY01" {
		t.Fatalf("code must be upper-cased, got %s", channel.Code)
	}

	if _, err := svc.CreateChannel(input); !errors.Is(err, ErrChannelCodeExists) {
		t.Fatalf("expected duplicate code error, got: %v", err)
	}

	bad := input
	bad.Code = "x"
	if _, err := svc.CreateChannel(bad); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for short code, got: %v", err)
	}

	badClock := input
	badClock.Code = "ALIPAY02"
	badClock.EarliestTime = "25:00"
	if _, err := svc.CreateChannel(badClock); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for clock, got: %v", err)
	}
}
