package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type orderServiceFixture struct {
	svc       *OrderService
	walletSvc *WalletService
	db        *gorm.DB
}

func setupOrderServiceTest(t *testing.T) *orderServiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Merchant{}, &models.MerchantWallet{}, &models.MerchantWalletRecord{}, &models.MerchantWalletPrepaidRecord{},
		&models.Order{}, &models.OrderBuyer{},
		&models.PaymentChannel{}, &models.PaymentChannelAccount{},
		&models.Blacklist{}, &models.RiskLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"

	orderRepo := repository.NewOrderRepository(db)
	walletSvc := NewWalletService(repository.NewWalletRepository(db))
	channelSvc := NewChannelService(cfg, repository.NewPaymentChannelRepository(db), cache.NewMemoryPaymentCounterStore())
	riskSvc := NewRiskService(cfg, repository.NewBlacklistRepository(db), orderRepo)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	svc := NewOrderService(cfg, orderRepo, walletSvc, channelSvc, riskSvc, queueClient)
	return &orderServiceFixture{svc: svc, walletSvc: walletSvc, db: db}
}

func (f *orderServiceFixture) seedMerchant(t *testing.T, id uint, buyerPayFee bool) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		ID:             id,
		MerchantNumber: fmt.Sprintf("M2024TEST%07d", id),
		Name:           fmt.Sprintf("商户-%d", id),
		Status:         true,
		BuyerPayFee:    buyerPayFee,
		Competence:     models.StringArray{constants.CompetencePay, constants.CompetenceRefund, constants.CompetenceWithdraw},
	}
	if err := f.db.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant failed: %v", err)
	}
	return merchant
}

// seedChannel 按 S2 费率建渠道：rate 2.40%、固定 0.10、成本 1.00%
func (f *orderServiceFixture) seedChannel(t *testing.T, channelID, accountID uint, settleCycle int) {
	t.Helper()
	channel := &models.PaymentChannel{
		ID:          channelID,
		Code:        fmt.Sprintf("ALIPAY%02d", channelID),
		Name:        "测试渠道",
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayAlipay,
		Rate:        models.NewRateFromDecimal(decimal.NewFromFloat(0.0240)),
		Costs:       models.NewRateFromDecimal(decimal.NewFromFloat(0.0100)),
		FixedFee:    models.NewMoneyFromDecimal(decimal.NewFromFloat(0.10)),
		SettleCycle: settleCycle,
		RollMode:    constants.RollModeFirst,
		Status:      true,
	}
	if err := f.db.Create(channel).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	account := &models.PaymentChannelAccount{
		ID:            accountID,
		ChannelID:     channelID,
		Name:          "主账户",
		InheritConfig: true,
		Status:        true,
	}
	if err := f.db.Create(account).Error; err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
}

func (f *orderServiceFixture) createInput(merchant *models.Merchant, outTradeNo string, amount string) OrderCreateInput {
	total, _ := decimal.NewFromString(amount)
	return OrderCreateInput{
		Merchant:    merchant,
		OutTradeNo:  outTradeNo,
		Subject:     "foo",
		TotalAmount: total,
		PaymentType: constants.PaymentTypeAlipay,
		NotifyURL:   "https://merchant.example.com/notify",
		ReturnURL:   "https://merchant.example.com/return",
		Attach:      "attach-1",
		SignType:    constants.SignTypeSHA3,
		Buyer:       OrderBuyerInput{IP: "198.51.100.7", UserID: "buyer-1"},
	}
}

func TestOrderServiceCreateIdempotent(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	first, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-001", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !regexp.MustCompile(`^P\d{18}[A-Z]{5}$`).MatchString(first.Order.TradeNo) {
		t.Fatalf("unexpected trade_no: %s", first.Order.TradeNo)
	}
	if first.Duplicate {
		t.Fatal("first create must not be duplicate")
	}

	second, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-001", "100.00"))
	if err != nil {
		t.Fatalf("identical repeat must succeed: %v", err)
	}
	if !second.Duplicate || second.Order.TradeNo != first.Order.TradeNo {
		t.Fatalf("identical repeat must return the same order, got %s", second.Order.TradeNo)
	}

	_, err = f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-001", "101.00"))
	if !errors.Is(err, ErrOrderDuplicateMismatch) {
		t.Fatalf("changed amount must conflict, got: %v", err)
	}
}

func TestOrderServiceFeeMath(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-FEE", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	order := result.Order
	if order.FeeAmount.String() != "2.50" {
		t.Fatalf("fee: expected 2.50, got %s", order.FeeAmount)
	}
	if order.ReceiptAmount.String() != "97.50" {
		t.Fatalf("receipt: expected 97.50, got %s", order.ReceiptAmount)
	}
	if order.ProfitAmount.String() != "1.50" {
		t.Fatalf("profit: expected 1.50, got %s", order.ProfitAmount)
	}
	if order.BuyerPayAmount.String() != "100.00" {
		t.Fatalf("buyer pay: expected 100.00, got %s", order.BuyerPayAmount)
	}

	payer := f.seedMerchant(t, 2, true)
	result, err = f.svc.CreateOrder(ctx, f.createInput(payer, "ORD-FEE-2", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Order.BuyerPayAmount.String() != "102.50" {
		t.Fatalf("buyer-borne fee: expected 102.50, got %s", result.Order.BuyerPayAmount)
	}
}

func TestOrderServiceMarkPaidInstantSettle(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-PAY", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tradeNo := result.Order.TradeNo

	order, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo, APITradeNo: "UP-1001"})
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if order.TradeState != constants.TradeStateSuccess {
		t.Fatalf("expected SUCCESS, got %s", order.TradeState)
	}
	if order.SettleState != constants.SettleStateCompleted {
		t.Fatalf("instant settle expected COMPLETED, got %s", order.SettleState)
	}
	if order.PaymentTime == nil {
		t.Fatal("payment time must be set")
	}

	wallet, err := f.walletSvc.GetWallet(merchant.ID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	if wallet.AvailableBalance.String() != "97.50" {
		t.Fatalf("available: expected 97.50, got %s", wallet.AvailableBalance)
	}

	// 重复回调：余额与订单均不再变化
	again, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo, APITradeNo: "UP-9999"})
	if err != nil {
		t.Fatalf("duplicate callback must succeed: %v", err)
	}
	if again.APITradeNo != "UP-1001" {
		t.Fatalf("duplicate callback must not rewrite fields, got %s", again.APITradeNo)
	}
	wallet, _ = f.walletSvc.GetWallet(merchant.ID)
	if wallet.AvailableBalance.String() != "97.50" {
		t.Fatalf("duplicate callback must not recredit, got %s", wallet.AvailableBalance)
	}
	var recordCount int64
	f.db.Model(&models.MerchantWalletRecord{}).Where("merchant_id = ?", merchant.ID).Count(&recordCount)
	if recordCount != 1 {
		t.Fatalf("expected a single wallet record, got %d", recordCount)
	}
}

type recordingTaskQueue struct {
	settleCount int
	notifyCount int
}

func (q *recordingTaskQueue) EnqueueOrderSettle(queue.OrderSettlePayload, time.Duration) error {
	q.settleCount++
	return nil
}

func (q *recordingTaskQueue) EnqueueOrderNotify(queue.OrderNotifyPayload) error {
	q.notifyCount++
	return nil
}

func TestOrderServiceMarkPaidDuplicateCallbackNotifiesOnce(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	taskQueue := &recordingTaskQueue{}
	f.svc.queueClient = taskQueue

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-NOTIFY", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tradeNo := result.Order.TradeNo

	if _, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo, Async: true}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if taskQueue.notifyCount != 1 {
		t.Fatalf("expected one notify task, got %d", taskQueue.notifyCount)
	}
	if taskQueue.settleCount != 0 {
		t.Fatalf("instant settle must not enqueue settle task, got %d", taskQueue.settleCount)
	}

	// 上游重复回调只确认成功，不再重复投递通知
	if _, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo, Async: true}); err != nil {
		t.Fatalf("duplicate callback must succeed: %v", err)
	}
	if taskQueue.notifyCount != 1 {
		t.Fatalf("duplicate callback must not re-enqueue notify, got %d", taskQueue.notifyCount)
	}
}

func TestOrderServiceMarkPaidDeferredSettle(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 2)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-DEF", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tradeNo := result.Order.TradeNo

	order, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo})
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	// 队列未启用：入账仍进在途，结算状态标记失败待重试
	if order.SettleState != constants.SettleStateFailed {
		t.Fatalf("expected FAILED without queue, got %s", order.SettleState)
	}
	wallet, _ := f.walletSvc.GetWallet(merchant.ID)
	if wallet.UnavailableBalance.String() != "97.50" || wallet.AvailableBalance.String() != "0.00" {
		t.Fatalf("deferred settle must credit unavailable, got avail=%s unavail=%s", wallet.AvailableBalance, wallet.UnavailableBalance)
	}

	if err := f.svc.SettleOrder(ctx, tradeNo); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	wallet, _ = f.walletSvc.GetWallet(merchant.ID)
	if wallet.AvailableBalance.String() != "97.50" || wallet.UnavailableBalance.String() != "0.00" {
		t.Fatalf("settle must move funds, got avail=%s unavail=%s", wallet.AvailableBalance, wallet.UnavailableBalance)
	}
	settled, _ := f.svc.GetOrder(tradeNo)
	if settled.SettleState != constants.SettleStateCompleted {
		t.Fatalf("expected COMPLETED, got %s", settled.SettleState)
	}

	// 结算幂等
	if err := f.svc.SettleOrder(ctx, tradeNo); err != nil {
		t.Fatalf("repeat settle must be a no-op: %v", err)
	}
	wallet, _ = f.walletSvc.GetWallet(merchant.ID)
	if wallet.AvailableBalance.String() != "97.50" {
		t.Fatalf("repeat settle must not recredit, got %s", wallet.AvailableBalance)
	}
}

func TestOrderServiceCloseAndStateMachine(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-CLOSE", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tradeNo := result.Order.TradeNo

	if _, err := f.svc.FreezeOrder(tradeNo); !errors.Is(err, ErrOrderStateInvalid) {
		t.Fatalf("WAIT_PAY cannot freeze, got: %v", err)
	}

	closed, err := f.svc.CloseOrder(tradeNo)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.TradeState != constants.TradeStateClosed || closed.CloseTime == nil {
		t.Fatalf("close must set CLOSED and close_time")
	}
	if _, err := f.svc.CloseOrder(tradeNo); err != nil {
		t.Fatalf("repeat close must be idempotent: %v", err)
	}

	// 已关闭订单收到回调：返回成功但不改写
	after, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: tradeNo})
	if err != nil {
		t.Fatalf("callback on closed order must not error: %v", err)
	}
	if after.TradeState != constants.TradeStateClosed {
		t.Fatalf("closed order must stay closed, got %s", after.TradeState)
	}

	// 冻结/解冻/完结链路
	paidResult, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-FRZ", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: paidResult.Order.TradeNo}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if _, err := f.svc.FreezeOrder(paidResult.Order.TradeNo); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	if _, err := f.svc.UnfreezeOrder(paidResult.Order.TradeNo); err != nil {
		t.Fatalf("unfreeze failed: %v", err)
	}
	if _, err := f.svc.FinishOrder(paidResult.Order.TradeNo); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if _, err := f.svc.FreezeOrder(paidResult.Order.TradeNo); !errors.Is(err, ErrOrderStateInvalid) {
		t.Fatalf("FINISHED is terminal, got: %v", err)
	}
}

func TestOrderServiceDuplicateAfterStateChange(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-DUP", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.MarkPaid(ctx, MarkPaidInput{TradeNo: result.Order.TradeNo}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-DUP", "100.00")); !errors.Is(err, ErrOrderDuplicatePaid) {
		t.Fatalf("paid duplicate must conflict, got: %v", err)
	}

	closedResult, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-DUP-2", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.CloseOrder(closedResult.Order.TradeNo); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-DUP-2", "100.00")); !errors.Is(err, ErrOrderDuplicateClosed) {
		t.Fatalf("closed duplicate must conflict, got: %v", err)
	}
}

func TestOrderServiceMarkPaidBuyerPatch(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()
	merchant := f.seedMerchant(t, 1, false)
	f.seedChannel(t, 1, 1, 0)

	result, err := f.svc.CreateOrder(ctx, f.createInput(merchant, "ORD-BUYER", "100.00"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.svc.MarkPaid(ctx, MarkPaidInput{
		TradeNo: result.Order.TradeNo,
		Buyer:   MarkPaidBuyerPatch{BuyerOpenID: "2088-upstream", Mobile: "13800138000"},
	}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	buyer, err := f.svc.GetOrderBuyer(result.Order.TradeNo)
	if err != nil {
		t.Fatalf("get buyer failed: %v", err)
	}
	if buyer.BuyerOpenID != "2088-upstream" || buyer.Mobile != "13800138000" {
		t.Fatalf("buyer patch missing: %+v", buyer)
	}
	if buyer.IP != "198.51.100.7" {
		t.Fatalf("unpatched fields must survive, got %s", buyer.IP)
	}
}
