// Package payment 定义上游网关驱动契约与注册表。
// 各网关的协议实现放在子包里，这里负责把平台订单翻译成协议输入。
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrDriverNotFound   = errors.New("未找到网关驱动")
	ErrRefundUnverified = errors.New("上游退款未受理")
)

const defaultDriverTimeout = 15 * time.Second

// 提交结果形态。
const (
	SubmitTypeRedirect = "redirect"
	SubmitTypeHTML     = "html"
	SubmitTypeJSON     = "json"
	SubmitTypePage     = "page"
	SubmitTypeError    = "error"
)

// SubmitInput 下单提交输入。Config 为子账户上的上游凭证。
type SubmitInput struct {
	Order     *models.Order
	Buyer     *models.OrderBuyer
	Config    map[string]interface{}
	Subject   string
	ReturnURL string
	NotifyURL string
}

// SubmitResult 下单提交结果。
type SubmitResult struct {
	Type    string            `json:"type"`
	URL     string            `json:"url,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	Page    string            `json:"page,omitempty"`
	Message string            `json:"message,omitempty"`
}

// RefundInput 上游退款输入。
type RefundInput struct {
	Order  *models.Order
	Refund *models.OrderRefund
	Config map[string]interface{}
}

// RefundResult 上游退款结果。
type RefundResult struct {
	State       bool
	APIRefundNo string
	Message     string
}

// VerifyInput 回调验签输入。表单网关用 Params，报文网关用 Headers+Body。
type VerifyInput struct {
	Config  map[string]interface{}
	Params  map[string]string
	Headers map[string]string
	Body    []byte
}

// VerifyBuyer 回调携带的买家标识。
type VerifyBuyer struct {
	BuyerOpenID string
	Mobile      string
}

// VerifyResult 回调验签结果。Valid 仅在验签通过且为支付完成态时为真。
type VerifyResult struct {
	Valid          bool
	TradeNo        string
	APITradeNo     string
	BillTradeNo    string
	MchTradeNo     string
	PaymentTime    *time.Time
	BuyerPayAmount *decimal.Decimal
	Buyer          VerifyBuyer
	Message        string
}

// Driver 上游网关驱动。实现方不触碰数据库，只做协议转换。
type Driver interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
	Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error)
}

// Registry 按网关标识持有驱动实例。
type Registry struct {
	timeout time.Duration
	drivers map[string]Driver
}

// NewRegistry 创建注册表并装配内置驱动。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultDriverTimeout
	}
	registry := &Registry{
		timeout: timeout,
		drivers: map[string]Driver{},
	}
	registry.Register(constants.GatewayAlipay, &alipayDriver{timeout: timeout})
	registry.Register(constants.GatewayWechatPay, &wechatpayDriver{timeout: timeout})
	registry.Register(constants.GatewayEpay, &epayDriver{timeout: timeout})
	registry.Register(constants.GatewayPayPal, &paypalDriver{timeout: timeout})
	return registry
}

// Register 注册驱动，同名覆盖。
func (r *Registry) Register(gateway string, driver Driver) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" || driver == nil {
		return
	}
	r.drivers[gateway] = driver
}

// Get 按网关标识取驱动。
func (r *Registry) Get(gateway string) (Driver, error) {
	driver, ok := r.drivers[strings.ToLower(strings.TrimSpace(gateway))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, gateway)
	}
	return driver, nil
}

// Gateways 返回已注册的网关标识（有序）。
func (r *Registry) Gateways() []string {
	gateways := make([]string, 0, len(r.drivers))
	for gateway := range r.drivers {
		gateways = append(gateways, gateway)
	}
	sort.Strings(gateways)
	return gateways
}

// ErrorResult 构造错误形态的提交结果，供网关失败时回给商户。
func ErrorResult(message string) *SubmitResult {
	return &SubmitResult{Type: SubmitTypeError, Message: message}
}

// withTimeout 给驱动调用套上统一的截止时间，已有截止时间的透传。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func parseAmount(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func buyerIP(buyer *models.OrderBuyer) string {
	if buyer == nil {
		return ""
	}
	return strings.TrimSpace(buyer.IP)
}

func formFromParams(params map[string]string) map[string][]string {
	form := make(map[string][]string, len(params))
	for key, value := range params {
		form[key] = []string{value}
	}
	return form
}

func headerFromParams(params map[string]string) http.Header {
	header := make(http.Header, len(params))
	for key, value := range params {
		header.Set(key, value)
	}
	return header
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
