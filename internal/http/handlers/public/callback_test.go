package public

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/sign"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const epayTestMerchantKey = "epay-merchant-key-001"

func (f *publicHandlerFixture) seedEpayChannel(t *testing.T, channelID, accountID uint) {
	t.Helper()
	channel := &models.PaymentChannel{
		ID:          channelID,
		Code:        fmt.Sprintf("EPAY%02d", channelID),
		Name:        "易支付测试渠道",
		PaymentType: constants.PaymentTypeAlipay,
		Gateway:     constants.GatewayEpay,
		Rate:        models.NewRateFromDecimal(decimal.NewFromFloat(0.0240)),
		Costs:       models.NewRateFromDecimal(decimal.NewFromFloat(0.0100)),
		RollMode:    constants.RollModeFirst,
		Status:      true,
	}
	if err := f.db.Create(channel).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	account := &models.PaymentChannelAccount{
		ID:            accountID,
		ChannelID:     channelID,
		Name:          "易支付主账户",
		InheritConfig: true,
		Status:        true,
		Config: models.JSON{
			"gateway_url":  "https://epay.example.com",
			"merchant_id":  "1000",
			"merchant_key": epayTestMerchantKey,
		},
	}
	if err := f.db.Create(account).Error; err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
}

// epaySignedForm 按易支付 v1 口径加签：键升序、跳过 sign/sign_type 与空值、md5(content+key)
func epaySignedForm(params map[string]string, merchantKey string) url.Values {
	var keys []string
	for key, value := range params {
		if value == "" || key == "sign" || key == "sign_type" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, params[key]))
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&") + merchantKey))

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	values.Set("sign", hex.EncodeToString(sum[:]))
	values.Set("sign_type", "MD5")
	return values
}

func postGatewayCallback(t *testing.T, h *Handler, gateway, accountID string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/callback/"+gateway+"/"+accountID, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	c.Params = gin.Params{
		{Key: "gateway", Value: gateway},
		{Key: "accountID", Value: accountID},
	}
	h.GatewayCallback(c)
	return w
}

func TestGatewayCallbackEpayMarksPaid(t *testing.T) {
	f := setupPublicHandlerTest(t)
	merchant := f.seedMerchant(t, 1, constants.CompetencePay)
	f.seedEpayChannel(t, 1, 1)
	order := f.seedOrder(t, merchant.ID, "P260824140000123456ABCDE", "OUT-CB-1", constants.TradeStateWaitPay)
	if err := f.db.Create(&models.OrderBuyer{
		TradeNo:    order.TradeNo,
		MerchantID: merchant.ID,
		IP:         "198.51.100.7",
	}).Error; err != nil {
		t.Fatalf("seed buyer failed: %v", err)
	}

	form := epaySignedForm(map[string]string{
		"pid":          "1000",
		"out_trade_no": order.TradeNo,
		"trade_no":     "EP20260824001",
		"type":         "alipay",
		"money":        "100.00",
		"trade_status": "TRADE_SUCCESS",
		"buyer":        "buyer@example.com",
	}, epayTestMerchantKey)
	w := postGatewayCallback(t, f.handler, "epay", "1", form)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.CallbackBodySuccess {
		t.Fatalf("body want %q got %q", constants.CallbackBodySuccess, got)
	}

	var stored models.Order
	if err := f.db.First(&stored, "trade_no = ?", order.TradeNo).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if stored.TradeState != constants.TradeStateSuccess {
		t.Fatalf("trade_state want SUCCESS got %s", stored.TradeState)
	}
	if stored.APITradeNo != "EP20260824001" {
		t.Fatalf("api_trade_no want EP20260824001 got %s", stored.APITradeNo)
	}
	if stored.SettleState != constants.SettleStateCompleted {
		t.Fatalf("T0 order should settle instantly, got %s", stored.SettleState)
	}

	var wallet models.MerchantWallet
	if err := f.db.First(&wallet, "merchant_id = ?", merchant.ID).Error; err != nil {
		t.Fatalf("reload wallet failed: %v", err)
	}
	if wallet.AvailableBalance.StringFixed(2) != "97.50" {
		t.Fatalf("available balance want 97.50 got %s", wallet.AvailableBalance.StringFixed(2))
	}

	var buyer models.OrderBuyer
	if err := f.db.First(&buyer, "trade_no = ?", order.TradeNo).Error; err != nil {
		t.Fatalf("reload buyer failed: %v", err)
	}
	if buyer.BuyerOpenID != "buyer@example.com" {
		t.Fatalf("buyer open_id should backfill, got %q", buyer.BuyerOpenID)
	}
}

func TestGatewayCallbackDuplicateDelivery(t *testing.T) {
	f := setupPublicHandlerTest(t)
	merchant := f.seedMerchant(t, 1, constants.CompetencePay)
	f.seedEpayChannel(t, 1, 1)
	order := f.seedOrder(t, merchant.ID, "P260824150000123456ABCDE", "OUT-CB-2", constants.TradeStateWaitPay)

	form := epaySignedForm(map[string]string{
		"pid":          "1000",
		"out_trade_no": order.TradeNo,
		"trade_no":     "EP20260824002",
		"type":         "alipay",
		"money":        "100.00",
		"trade_status": "TRADE_SUCCESS",
	}, epayTestMerchantKey)

	for i := 0; i < 2; i++ {
		w := postGatewayCallback(t, f.handler, "epay", "1", form)
		if got := strings.TrimSpace(w.Body.String()); got != constants.CallbackBodySuccess {
			t.Fatalf("delivery %d: body want %q got %q", i+1, constants.CallbackBodySuccess, got)
		}
	}

	var wallet models.MerchantWallet
	if err := f.db.First(&wallet, "merchant_id = ?", merchant.ID).Error; err != nil {
		t.Fatalf("reload wallet failed: %v", err)
	}
	if wallet.AvailableBalance.StringFixed(2) != "97.50" {
		t.Fatalf("repeat delivery must credit once, balance %s", wallet.AvailableBalance.StringFixed(2))
	}
}

func TestGatewayCallbackRejectsBadSignature(t *testing.T) {
	f := setupPublicHandlerTest(t)
	merchant := f.seedMerchant(t, 1, constants.CompetencePay)
	f.seedEpayChannel(t, 1, 1)
	order := f.seedOrder(t, merchant.ID, "P260824160000123456ABCDE", "OUT-CB-3", constants.TradeStateWaitPay)

	form := epaySignedForm(map[string]string{
		"pid":          "1000",
		"out_trade_no": order.TradeNo,
		"trade_no":     "EP20260824003",
		"type":         "alipay",
		"money":        "100.00",
		"trade_status": "TRADE_SUCCESS",
	}, epayTestMerchantKey)
	form.Set("money", "1.00")
	w := postGatewayCallback(t, f.handler, "epay", "1", form)

	if got := strings.TrimSpace(w.Body.String()); got != constants.CallbackBodyFail {
		t.Fatalf("body want %q got %q", constants.CallbackBodyFail, got)
	}

	var stored models.Order
	if err := f.db.First(&stored, "trade_no = ?", order.TradeNo).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if stored.TradeState != constants.TradeStateWaitPay {
		t.Fatalf("tampered callback must not mark paid, got %s", stored.TradeState)
	}
}

func TestGatewayCallbackUnknownAccount(t *testing.T) {
	f := setupPublicHandlerTest(t)

	form := url.Values{"out_trade_no": {"P260824170000123456ABCDE"}}
	for _, accountID := range []string{"99", "0", "abc"} {
		w := postGatewayCallback(t, f.handler, "epay", accountID, form)
		if got := strings.TrimSpace(w.Body.String()); got != constants.CallbackBodyFail {
			t.Fatalf("account %s: body want %q got %q", accountID, constants.CallbackBodyFail, got)
		}
	}
}

func TestPaymentReturnRedirect(t *testing.T) {
	f := setupPublicHandlerTest(t)
	privateKey, publicKey, err := sign.GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("generate platform keys failed: %v", err)
	}
	f.cfg.Payment.PlatformPrivateKey = privateKey

	merchant := f.seedMerchant(t, 1, constants.CompetencePay)
	order := f.seedOrder(t, merchant.ID, "P260824180000123456ABCDE", "OUT-RET-1", constants.TradeStateSuccess)
	if err := f.db.Model(&models.Order{}).
		Where("trade_no = ?", order.TradeNo).
		Update("return_url", "https://shop.example.com/done?uid=7").Error; err != nil {
		t.Fatalf("set return_url failed: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/return/"+order.TradeNo, nil)
	c.Params = gin.Params{{Key: "tradeNo", Value: order.TradeNo}}
	f.handler.PaymentReturn(c)

	if w.Code != http.StatusFound {
		t.Fatalf("status want 302 got %d", w.Code)
	}
	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location failed: %v", err)
	}
	if location.Host != "shop.example.com" {
		t.Fatalf("redirect host mismatch: %s", location.Host)
	}
	query := location.Query()
	if query.Get("uid") != "7" {
		t.Fatalf("merchant query params should be kept: %s", location)
	}
	if query.Get("trade_no") != order.TradeNo || query.Get("trade_state") != constants.TradeStateSuccess {
		t.Fatalf("notify params should be appended: %s", location)
	}

	params := make(map[string]string, len(query))
	for key := range query {
		params[key] = query.Get(key)
	}
	if err := sign.Verify(sign.TypeRSA2, params, publicKey, params["sign"]); err != nil {
		t.Fatalf("redirect params must verify with platform public key: %v", err)
	}
}

func TestPaymentReturnShowsStateWithoutURL(t *testing.T) {
	f := setupPublicHandlerTest(t)
	merchant := f.seedMerchant(t, 1, constants.CompetencePay)
	order := f.seedOrder(t, merchant.ID, "P260824190000123456ABCDE", "OUT-RET-2", constants.TradeStateSuccess)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/return/"+order.TradeNo, nil)
	c.Params = gin.Params{{Key: "tradeNo", Value: order.TradeNo}}
	f.handler.PaymentReturn(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	want := order.TradeNo + " " + constants.TradeStateSuccess
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Fatalf("body want %q got %q", want, got)
	}
}

func TestPaymentReturnUnknownOrder(t *testing.T) {
	f := setupPublicHandlerTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/return/P000000000000000000XXXXX", nil)
	c.Params = gin.Params{{Key: "tradeNo", Value: "P000000000000000000XXXXX"}}
	f.handler.PaymentReturn(c)

	if resp := decodeEnvelope(t, w); resp.Code != response.CodeNotFound {
		t.Fatalf("unknown order must be NOT_FOUND, got %s", resp.Code)
	}
}
