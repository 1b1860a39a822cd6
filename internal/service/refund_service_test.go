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
	"github.com/paygate-next/internal/payment"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeRefundDriver 仅实现退款分支的网关驱动替身
type fakeRefundDriver struct {
	result    *payment.RefundResult
	err       error
	calls     int
	lastInput payment.RefundInput
}

func (d *fakeRefundDriver) Submit(ctx context.Context, input payment.SubmitInput) (*payment.SubmitResult, error) {
	return nil, errors.New("fake driver: submit not wired")
}

func (d *fakeRefundDriver) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	d.calls++
	d.lastInput = input
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func (d *fakeRefundDriver) Verify(ctx context.Context, input payment.VerifyInput) (*payment.VerifyResult, error) {
	return nil, errors.New("fake driver: verify not wired")
}

type refundServiceFixture struct {
	refundSvc *RefundService
	orderSvc  *OrderService
	walletSvc *WalletService
	driver    *fakeRefundDriver
	db        *gorm.DB
}

func setupRefundServiceTest(t *testing.T) *refundServiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:refund_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Merchant{}, &models.MerchantWallet{}, &models.MerchantWalletRecord{}, &models.MerchantWalletPrepaidRecord{},
		&models.Order{}, &models.OrderBuyer{}, &models.OrderRefund{},
		&models.PaymentChannel{}, &models.PaymentChannelAccount{},
		&models.Blacklist{}, &models.RiskLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"
	cfg.Payment.RefundFeeBearer = constants.FeeBearerMerchant

	orderRepo := repository.NewOrderRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	walletSvc := NewWalletService(repository.NewWalletRepository(db))
	channelSvc := NewChannelService(cfg, repository.NewPaymentChannelRepository(db), cache.NewMemoryPaymentCounterStore())
	riskSvc := NewRiskService(cfg, repository.NewBlacklistRepository(db), orderRepo)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	orderSvc := NewOrderService(cfg, orderRepo, walletSvc, channelSvc, riskSvc, queueClient)

	driver := &fakeRefundDriver{result: &payment.RefundResult{State: true, APIRefundNo: "UP-REFUND-1"}}
	registry := payment.NewRegistry(time.Second)
	registry.Register(constants.GatewayAlipay, driver)

	refundSvc := NewRefundService(cfg, orderRepo, refundRepo, walletSvc, channelSvc, registry)
	return &refundServiceFixture{
		refundSvc: refundSvc,
		orderSvc:  orderSvc,
		walletSvc: walletSvc,
		driver:    driver,
		db:        db,
	}
}

func (f *refundServiceFixture) seedMerchant(t *testing.T, id uint) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		ID:             id,
		MerchantNumber: fmt.Sprintf("M2024REFD%07d", id),
		Name:           fmt.Sprintf("商户-%d", id),
		Status:         true,
		Competence:     models.StringArray{constants.CompetencePay, constants.CompetenceRefund},
	}
	if err := f.db.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant failed: %v", err)
	}
	return merchant
}

// seedChannel S2 费率：rate 2.40%、固定 0.10、成本 1.00%、即时结算
func (f *refundServiceFixture) seedChannel(t *testing.T) {
	t.Helper()
	channel := &models.PaymentChannel{
		ID:          1,
		Code:        "ALIPAY01",
		Name:        "测试渠道",
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayAlipay,
		Rate:        models.NewRateFromDecimal(decimal.NewFromFloat(0.0240)),
		Costs:       models.NewRateFromDecimal(decimal.NewFromFloat(0.0100)),
		FixedFee:    models.NewMoneyFromDecimal(decimal.NewFromFloat(0.10)),
		SettleCycle: constants.SettleCycleInstant,
		RollMode:    constants.RollModeFirst,
		Status:      true,
	}
	if err := f.db.Create(channel).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	account := &models.PaymentChannelAccount{
		ID:            1,
		ChannelID:     1,
		Name:          "主账户",
		InheritConfig: true,
		Config:        models.JSON{"app_id": "2021000000000001"},
		Status:        true,
	}
	if err := f.db.Create(account).Error; err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
}

// seedPaidOrder 建一笔 100.00 已支付订单：fee 2.50、receipt 97.50 已入可用余额
func (f *refundServiceFixture) seedPaidOrder(t *testing.T, merchant *models.Merchant, outTradeNo, apiTradeNo string) *models.Order {
	t.Helper()
	ctx := context.Background()
	result, err := f.orderSvc.CreateOrder(ctx, OrderCreateInput{
		Merchant:    merchant,
		OutTradeNo:  outTradeNo,
		Subject:     "测试商品",
		TotalAmount: decimal.RequireFromString("100.00"),
		PaymentType: constants.PaymentTypeAlipay,
		NotifyURL:   "https://merchant.example.com/notify",
		SignType:    constants.SignTypeSHA3,
		Buyer:       OrderBuyerInput{IP: "198.51.100.7"},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	order, err := f.orderSvc.MarkPaid(ctx, MarkPaidInput{TradeNo: result.Order.TradeNo, APITradeNo: apiTradeNo})
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	return order
}

func (f *refundServiceFixture) availableBalance(t *testing.T, merchantID uint) string {
	t.Helper()
	wallet, err := f.walletSvc.GetWallet(merchantID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	return wallet.AvailableBalance.String()
}

func refundFeeBearer(v bool) *bool { return &v }

func TestRefundServiceFullRefundWithFeeRestitution(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-S2", "UP-1001")

	if got := f.availableBalance(t, merchant.ID); got != "97.50" {
		t.Fatalf("precondition: available = %s, want 97.50", got)
	}

	refund, err := f.refundSvc.Handle(context.Background(), RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("100.00"),
		InitiateType: constants.RefundInitiateAdmin,
		FeeBearer:    refundFeeBearer(true),
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !regexp.MustCompile(`^R\d{2}[A-Z0-9]{13}$`).MatchString(refund.ID) {
		t.Fatalf("unexpected refund id: %s", refund.ID)
	}
	if refund.RefundFeeAmount.String() != "2.50" {
		t.Fatalf("refund fee: expected 2.50, got %s", refund.RefundFeeAmount)
	}
	if refund.Status != constants.BizStatusCompleted {
		t.Fatalf("status: expected COMPLETED, got %s", refund.Status)
	}

	// 97.50 + 2.50 − 100.00 = 0.00
	if got := f.availableBalance(t, merchant.ID); got != "0.00" {
		t.Fatalf("available after full refund = %s, want 0.00", got)
	}
	final, _ := f.orderSvc.GetOrder(order.TradeNo)
	if final.TradeState != constants.TradeStateFinished {
		t.Fatalf("trade_state: expected FINISHED, got %s", final.TradeState)
	}

	var records []models.MerchantWalletRecord
	f.db.Where("merchant_id = ? AND type IN ?", merchant.ID,
		[]string{constants.WalletChangeOrderRefund, constants.WalletChangeRefundFee}).Find(&records)
	if len(records) != 2 {
		t.Fatalf("expected debit + restitution records, got %d", len(records))
	}
}

func TestRefundServicePartialAccumulation(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-S3", "UP-1002")
	ctx := context.Background()

	first, err := f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("40.00"),
		InitiateType: constants.RefundInitiateAdmin,
		FeeBearer:    refundFeeBearer(true),
	})
	if err != nil {
		t.Fatalf("first refund failed: %v", err)
	}
	// 2.50 × (40/100) = 1.00
	if first.RefundFeeAmount.String() != "1.00" {
		t.Fatalf("first refund fee: expected 1.00, got %s", first.RefundFeeAmount)
	}
	mid, _ := f.orderSvc.GetOrder(order.TradeNo)
	if mid.TradeState != constants.TradeStateRefund {
		t.Fatalf("expected REFUND after partial, got %s", mid.TradeState)
	}
	if got := f.availableBalance(t, merchant.ID); got != "58.50" {
		t.Fatalf("available after 40.00 = %s, want 58.50", got)
	}

	second, err := f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("60.00"),
		InitiateType: constants.RefundInitiateAdmin,
		FeeBearer:    refundFeeBearer(true),
	})
	if err != nil {
		t.Fatalf("second refund failed: %v", err)
	}
	if second.RefundFeeAmount.String() != "1.50" {
		t.Fatalf("second refund fee: expected 1.50, got %s", second.RefundFeeAmount)
	}
	final, _ := f.orderSvc.GetOrder(order.TradeNo)
	if final.TradeState != constants.TradeStateFinished {
		t.Fatalf("expected FINISHED after exhausting, got %s", final.TradeState)
	}
	if got := f.availableBalance(t, merchant.ID); got != "0.00" {
		t.Fatalf("available after 100.00 = %s, want 0.00", got)
	}

	_, err = f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("0.01"),
		InitiateType: constants.RefundInitiateAdmin,
	})
	if !errors.Is(err, ErrRefundExceedsRemaining) {
		t.Fatalf("exhausted order must report exceeds-remaining, got: %v", err)
	}
}

func TestRefundServiceRejectsInvalidStates(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	ctx := context.Background()

	result, err := f.orderSvc.CreateOrder(ctx, OrderCreateInput{
		Merchant:    merchant,
		OutTradeNo:  "ORD-WAIT",
		Subject:     "测试商品",
		TotalAmount: decimal.RequireFromString("100.00"),
		PaymentType: constants.PaymentTypeAlipay,
		SignType:    constants.SignTypeSHA3,
		Buyer:       OrderBuyerInput{IP: "198.51.100.7"},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	_, err = f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      result.Order.TradeNo,
		Amount:       decimal.RequireFromString("10.00"),
		InitiateType: constants.RefundInitiateAdmin,
	})
	if !errors.Is(err, ErrRefundStateInvalid) {
		t.Fatalf("WAIT_PAY must refuse refund, got: %v", err)
	}

	// 结算处理中的订单拒绝退款
	order := f.seedPaidOrder(t, merchant, "ORD-SETTLING", "UP-2001")
	if err := f.db.Model(&models.Order{}).Where("trade_no = ?", order.TradeNo).
		Update("settle_state", constants.SettleStateProcessing).Error; err != nil {
		t.Fatalf("force settle_state failed: %v", err)
	}
	_, err = f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("10.00"),
		InitiateType: constants.RefundInitiateAdmin,
	})
	if !errors.Is(err, ErrRefundStateInvalid) {
		t.Fatalf("PROCESSING settle must refuse refund, got: %v", err)
	}

	_, err = f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.Zero,
		InitiateType: constants.RefundInitiateAdmin,
	})
	if !errors.Is(err, ErrRefundAmountInvalid) {
		t.Fatalf("zero amount must be invalid, got: %v", err)
	}
}

func TestRefundServiceAutoCallsDriverInsideTransaction(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-AUTO", "UP-3001")
	ctx := context.Background()

	refund, err := f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("30.00"),
		InitiateType: constants.RefundInitiateMerchant,
		Auto:         true,
	})
	if err != nil {
		t.Fatalf("auto refund failed: %v", err)
	}
	if f.driver.calls != 1 {
		t.Fatalf("driver calls = %d, want 1", f.driver.calls)
	}
	if !refund.RefundType {
		t.Fatal("auto refund must set refund_type")
	}
	if refund.APIRefundNo != "UP-REFUND-1" {
		t.Fatalf("api_refund_no = %s", refund.APIRefundNo)
	}
	if f.driver.lastInput.Order == nil || f.driver.lastInput.Order.APITradeNo != "UP-3001" {
		t.Fatalf("driver must receive the locked order, got %+v", f.driver.lastInput.Order)
	}
	if f.driver.lastInput.Config["app_id"] != "2021000000000001" {
		t.Fatalf("driver must receive account config, got %v", f.driver.lastInput.Config)
	}

	stored, err := f.refundSvc.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if stored.APIRefundNo != "UP-REFUND-1" {
		t.Fatalf("api_refund_no must persist, got %s", stored.APIRefundNo)
	}
}

func TestRefundServiceAutoFailureRollsBackEverything(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-ROLLBACK", "UP-4001")
	ctx := context.Background()

	f.driver.err = errors.New("upstream 5xx")
	_, err := f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("30.00"),
		InitiateType: constants.RefundInitiateMerchant,
		Auto:         true,
	})
	if !errors.Is(err, ErrGatewayFailed) {
		t.Fatalf("driver failure must map to gateway error, got: %v", err)
	}

	if got := f.availableBalance(t, merchant.ID); got != "97.50" {
		t.Fatalf("wallet must roll back, got %s", got)
	}
	after, _ := f.orderSvc.GetOrder(order.TradeNo)
	if after.TradeState != constants.TradeStateSuccess {
		t.Fatalf("order state must roll back, got %s", after.TradeState)
	}
	var count int64
	f.db.Model(&models.OrderRefund{}).Where("trade_no = ?", order.TradeNo).Count(&count)
	if count != 0 {
		t.Fatalf("refund row must roll back, got %d", count)
	}

	// 受理失败（state=false）同样整体回滚
	f.driver.err = nil
	f.driver.result = &payment.RefundResult{State: false, Message: "余额不足"}
	_, err = f.refundSvc.Handle(ctx, RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("30.00"),
		InitiateType: constants.RefundInitiateMerchant,
		Auto:         true,
	})
	if !errors.Is(err, ErrGatewayFailed) {
		t.Fatalf("unaccepted refund must map to gateway error, got: %v", err)
	}
	if got := f.availableBalance(t, merchant.ID); got != "97.50" {
		t.Fatalf("wallet must roll back on unaccepted refund, got %s", got)
	}
}

func TestRefundServiceAutoRequiresAPITradeNo(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-NOAPI", "")

	_, err := f.refundSvc.Handle(context.Background(), RefundHandleInput{
		TradeNo:      order.TradeNo,
		Amount:       decimal.RequireFromString("10.00"),
		InitiateType: constants.RefundInitiateAdmin,
		Auto:         true,
	})
	if !errors.Is(err, ErrRefundRequiresAPITrade) {
		t.Fatalf("auto refund without api_trade_no must fail, got: %v", err)
	}
	if f.driver.calls != 0 {
		t.Fatalf("driver must not be called, got %d", f.driver.calls)
	}
}

func TestRefundServiceMerchantIdempotency(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-IDEM", "UP-5001")
	ctx := context.Background()

	first, duplicate, err := f.refundSvc.MerchantRefund(ctx, merchant, MerchantRefundInput{
		TradeNo:  order.TradeNo,
		OutBizNo: "REQ-001",
		Amount:   decimal.RequireFromString("25.00"),
		Reason:   "买家申请",
	})
	if err != nil {
		t.Fatalf("merchant refund failed: %v", err)
	}
	if duplicate {
		t.Fatal("first request must not be duplicate")
	}
	if first.InitiateType != constants.RefundInitiateAPI || !first.RefundType {
		t.Fatalf("api refund must be auto, got %+v", first)
	}

	second, duplicate, err := f.refundSvc.MerchantRefund(ctx, merchant, MerchantRefundInput{
		TradeNo:  order.TradeNo,
		OutBizNo: "REQ-001",
		Amount:   decimal.RequireFromString("25.00"),
	})
	if err != nil {
		t.Fatalf("identical repeat must succeed: %v", err)
	}
	if !duplicate || second.ID != first.ID {
		t.Fatalf("identical repeat must return the same refund, got %s", second.ID)
	}
	if f.driver.calls != 1 {
		t.Fatalf("repeat must not re-call driver, got %d", f.driver.calls)
	}

	_, _, err = f.refundSvc.MerchantRefund(ctx, merchant, MerchantRefundInput{
		TradeNo:  order.TradeNo,
		OutBizNo: "REQ-001",
		Amount:   decimal.RequireFromString("26.00"),
	})
	if !errors.Is(err, ErrRefundMismatch) {
		t.Fatalf("changed amount must mismatch, got: %v", err)
	}

	if _, _, err := f.refundSvc.MerchantRefund(ctx, merchant, MerchantRefundInput{
		TradeNo: order.TradeNo,
		Amount:  decimal.RequireFromString("1.00"),
	}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("missing out_biz_no must be invalid, got: %v", err)
	}
}

func TestRefundServiceMerchantQuery(t *testing.T) {
	f := setupRefundServiceTest(t)
	merchant := f.seedMerchant(t, 1)
	other := f.seedMerchant(t, 2)
	f.seedChannel(t)
	order := f.seedPaidOrder(t, merchant, "ORD-QUERY", "UP-6001")
	ctx := context.Background()

	refund, _, err := f.refundSvc.MerchantRefund(ctx, merchant, MerchantRefundInput{
		OutTradeNo: "ORD-QUERY",
		OutBizNo:   "REQ-Q1",
		Amount:     decimal.RequireFromString("10.00"),
	})
	if err != nil {
		t.Fatalf("merchant refund failed: %v", err)
	}

	byID, err := f.refundSvc.GetMerchantRefund(merchant.ID, refund.ID, "")
	if err != nil || byID.ID != refund.ID {
		t.Fatalf("query by id failed: %v", err)
	}
	byBizNo, err := f.refundSvc.GetMerchantRefund(merchant.ID, "", "REQ-Q1")
	if err != nil || byBizNo.ID != refund.ID {
		t.Fatalf("query by out_biz_no failed: %v", err)
	}
	if _, err := f.refundSvc.GetMerchantRefund(other.ID, refund.ID, ""); !errors.Is(err, ErrRefundNotFound) {
		t.Fatalf("cross-merchant query must not leak, got: %v", err)
	}

	refunds, err := f.refundSvc.ListRefundsByTradeNo(order.TradeNo)
	if err != nil || len(refunds) != 1 {
		t.Fatalf("list by trade_no: %v (%d)", err, len(refunds))
	}
}

func TestProportionalRefundFee(t *testing.T) {
	cases := []struct {
		fee, amount, total, want string
	}{
		{"2.50", "40.00", "100.00", "1.00"},
		{"2.50", "100.00", "100.00", "2.50"},
		{"2.50", "33.33", "100.00", "0.83"},
		{"0.10", "99.99", "100.00", "0.10"},
		{"2.50", "10.00", "0.00", "0.00"},
	}
	for _, tc := range cases {
		got := proportionalRefundFee(
			decimal.RequireFromString(tc.fee),
			decimal.RequireFromString(tc.amount),
			decimal.RequireFromString(tc.total),
		)
		if got.StringFixed(2) != tc.want {
			t.Errorf("proportionalRefundFee(%s, %s, %s) = %s, want %s",
				tc.fee, tc.amount, tc.total, got.StringFixed(2), tc.want)
		}
	}
}
