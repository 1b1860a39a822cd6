package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/provider"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type workerFixture struct {
	consumer  *Consumer
	orderSvc  *service.OrderService
	walletSvc *service.WalletService
	db        *gorm.DB
}

func setupWorkerTest(t *testing.T) *workerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Merchant{}, &models.MerchantWallet{}, &models.MerchantWalletRecord{}, &models.MerchantWalletPrepaidRecord{},
		&models.Order{}, &models.OrderBuyer{}, &models.OrderNotification{},
		&models.PaymentChannel{}, &models.PaymentChannelAccount{},
		&models.Blacklist{}, &models.RiskLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"

	orderRepo := repository.NewOrderRepository(db)
	walletSvc := service.NewWalletService(repository.NewWalletRepository(db))
	channelSvc := service.NewChannelService(cfg, repository.NewPaymentChannelRepository(db), cache.NewMemoryPaymentCounterStore())
	riskSvc := service.NewRiskService(cfg, repository.NewBlacklistRepository(db), orderRepo)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	orderSvc := service.NewOrderService(cfg, orderRepo, walletSvc, channelSvc, riskSvc, queueClient)
	notifySvc := service.NewNotifyService(cfg, orderRepo, queueClient)

	container := &provider.Container{
		Config:        cfg,
		OrderRepo:     orderRepo,
		OrderService:  orderSvc,
		NotifyService: notifySvc,
	}
	return &workerFixture{
		consumer:  NewConsumer(container),
		orderSvc:  orderSvc,
		walletSvc: walletSvc,
		db:        db,
	}
}

// seedPaidOrder 下单并支付，结算周期 2 档（队列未启用时结算状态落 FAILED 待 worker 接手）
func (f *workerFixture) seedPaidOrder(t *testing.T) string {
	t.Helper()
	merchant := &models.Merchant{
		ID:             1,
		MerchantNumber: "M2024WORKER0001",
		Name:           "结算商户",
		Status:         true,
		Competence:     models.StringArray{constants.CompetencePay},
	}
	if err := f.db.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant failed: %v", err)
	}
	channel := &models.PaymentChannel{
		ID:          1,
		Code:        "ALIPAY01",
		Name:        "测试渠道",
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayAlipay,
		Rate:        models.NewRateFromDecimal(decimal.NewFromFloat(0.0240)),
		FixedFee:    models.NewMoneyFromDecimal(decimal.NewFromFloat(0.10)),
		SettleCycle: 2,
		RollMode:    constants.RollModeFirst,
		Status:      true,
	}
	if err := f.db.Create(channel).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	account := &models.PaymentChannelAccount{ID: 1, ChannelID: 1, Name: "主账户", InheritConfig: true, Status: true}
	if err := f.db.Create(account).Error; err != nil {
		t.Fatalf("seed account failed: %v", err)
	}

	ctx := context.Background()
	result, err := f.orderSvc.CreateOrder(ctx, service.OrderCreateInput{
		Merchant:    merchant,
		OutTradeNo:  "WORKER-001",
		Subject:     "foo",
		TotalAmount: decimal.RequireFromString("100.00"),
		PaymentType: constants.PaymentTypeAlipay,
		SignType:    constants.SignTypeSHA3,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := f.orderSvc.MarkPaid(ctx, service.MarkPaidInput{TradeNo: result.Order.TradeNo}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	return result.Order.TradeNo
}

func TestConsumerHandleOrderSettle(t *testing.T) {
	f := setupWorkerTest(t)
	tradeNo := f.seedPaidOrder(t)

	payload := fmt.Sprintf(`{"trade_no":%q}`, tradeNo)
	task := asynq.NewTask(queue.TaskOrderSettle, []byte(payload))
	if err := f.consumer.handleOrderSettle(context.Background(), task); err != nil {
		t.Fatalf("settle task failed: %v", err)
	}

	order, err := f.orderSvc.GetOrder(tradeNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.SettleState != constants.SettleStateCompleted {
		t.Fatalf("expected COMPLETED, got %s", order.SettleState)
	}
	wallet, err := f.walletSvc.GetWallet(order.MerchantID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if wallet.AvailableBalance.String() != "97.50" || wallet.UnavailableBalance.String() != "0.00" {
		t.Fatalf("settle must move funds, got avail=%s unavail=%s", wallet.AvailableBalance, wallet.UnavailableBalance)
	}

	// 重复消费不得二次入账
	if err := f.consumer.handleOrderSettle(context.Background(), task); err != nil {
		t.Fatalf("repeat settle task failed: %v", err)
	}
	wallet, _ = f.walletSvc.GetWallet(order.MerchantID)
	if wallet.AvailableBalance.String() != "97.50" {
		t.Fatalf("repeat settle must not recredit, got %s", wallet.AvailableBalance)
	}
}

func TestConsumerHandleOrderSettleBenignSkips(t *testing.T) {
	f := setupWorkerTest(t)

	t.Run("order not found", func(t *testing.T) {
		task := asynq.NewTask(queue.TaskOrderSettle, []byte(`{"trade_no":"P000000000000000000ZZZZZ"}`))
		if err := f.consumer.handleOrderSettle(context.Background(), task); err != nil {
			t.Fatalf("missing order must be swallowed: %v", err)
		}
	})

	t.Run("empty trade_no", func(t *testing.T) {
		task := asynq.NewTask(queue.TaskOrderSettle, []byte(`{"trade_no":""}`))
		if err := f.consumer.handleOrderSettle(context.Background(), task); err != nil {
			t.Fatalf("empty payload must be swallowed: %v", err)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		task := asynq.NewTask(queue.TaskOrderSettle, []byte("not-json"))
		if err := f.consumer.handleOrderSettle(context.Background(), task); err == nil {
			t.Fatal("malformed payload must return error")
		}
	})
}

func TestConsumerHandleOrderNotifySkips(t *testing.T) {
	f := setupWorkerTest(t)

	t.Run("order not found", func(t *testing.T) {
		task := asynq.NewTask(queue.TaskOrderNotify, []byte(`{"trade_no":"P000000000000000000ZZZZZ"}`))
		if err := f.consumer.handleOrderNotify(context.Background(), task); err != nil {
			t.Fatalf("missing order must be swallowed: %v", err)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		task := asynq.NewTask(queue.TaskOrderNotify, []byte("{"))
		if err := f.consumer.handleOrderNotify(context.Background(), task); err == nil {
			t.Fatal("malformed payload must return error")
		}
	})
}

func TestNewServiceGuards(t *testing.T) {
	if _, err := NewService(&config.QueueConfig{Enabled: false}, NewConsumer(nil)); err == nil {
		t.Fatal("disabled queue must fail")
	}
	if _, err := NewService(&config.QueueConfig{Enabled: true}, nil); err == nil {
		t.Fatal("nil consumer must fail")
	}
}
