package alipay

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("alipay config invalid")
	ErrSignGenerate     = errors.New("alipay sign generate failed")
	ErrRequestFailed    = errors.New("alipay request failed")
	ErrResponseInvalid  = errors.New("alipay response invalid")
	ErrSignatureInvalid = errors.New("alipay signature invalid")
)

const (
	defaultGatewayURL = "https://openapi.alipay.com/gateway.do"
	defaultTimeout    = 12 * time.Second
	timeLayout        = "2006-01-02 15:04:05"
)

// 交互方式：PC 收银台、手机网页、当面付二维码。
const (
	InteractionPage = "page"
	InteractionWAP  = "wap"
	InteractionQR   = "qr"
)

// 网关时间均为北京时间。
var gatewayZone = time.FixedZone("CST", 8*3600)

// Config 支付宝官方渠道配置。
type Config struct {
	AppID            string `json:"app_id"`
	PrivateKey       string `json:"private_key"`         // 应用私钥
	AlipayPublicKey  string `json:"alipay_public_key"`   // 支付宝公钥（回调验签）
	GatewayURL       string `json:"gateway_url"`
	SignType         string `json:"sign_type"`
	Interaction      string `json:"interaction"`         // page/wap/qr
	AppCertSN        string `json:"app_cert_sn"`         // 证书模式
	AlipayRootCertSN string `json:"alipay_root_cert_sn"` // 证书模式
}

// CreateInput 下单输入。TradeNo 作为上游侧的 out_trade_no。
type CreateInput struct {
	TradeNo   string
	Amount    string
	Subject   string
	NotifyURL string
	ReturnURL string
}

// CreateResult 下单结果。page/wap 返回跳转地址，qr 返回二维码串。
type CreateResult struct {
	PayURL     string
	QRCode     string
	OutTradeNo string
	Raw        map[string]interface{}
}

// RefundInput 退款输入。OutRequestNo 为平台退款单号，同单重试须复用。
type RefundInput struct {
	TradeNo      string
	RefundAmount string
	OutRequestNo string
	Reason       string
}

// RefundResult 退款结果。FundChange 表示本次调用发生了实际资金变动。
type RefundResult struct {
	TradeNo      string
	FundChange   bool
	BuyerLogonID string
	Raw          map[string]interface{}
}

// NotifyResult 异步通知验签解析结果。
type NotifyResult struct {
	OutTradeNo     string
	TradeNo        string
	TradeStatus    string
	TotalAmount    string
	BuyerPayAmount string
	BuyerID        string
	BuyerLogonID   string
	PaymentTime    *time.Time
	Raw            map[string]string
}

// Paid 通知是否为支付完成态。
func (r *NotifyResult) Paid() bool {
	if r == nil {
		return false
	}
	switch r.TradeStatus {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		return true
	default:
		return false
	}
}

// ParseConfig 解析配置。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("%w: app_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return fmt.Errorf("%w: private_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AlipayPublicKey) == "" {
		return fmt.Errorf("%w: alipay_public_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.GatewayURL)); err != nil {
		return fmt.Errorf("%w: gateway_url is invalid", ErrConfigInvalid)
	}
	switch cfg.SignType {
	case "RSA", "RSA2":
	default:
		return fmt.Errorf("%w: sign_type %s is not supported", ErrConfigInvalid, cfg.SignType)
	}
	switch cfg.Interaction {
	case InteractionPage, InteractionWAP, InteractionQR:
	default:
		return fmt.Errorf("%w: interaction %s is not supported", ErrConfigInvalid, cfg.Interaction)
	}
	return nil
}

// CreatePayment 发起支付宝下单，按配置的交互方式返回跳转地址或二维码。
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.TradeNo) == "" || strings.TrimSpace(input.Amount) == "" {
		return nil, fmt.Errorf("%w: order input is invalid", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.NotifyURL) == "" {
		return nil, fmt.Errorf("%w: notify_url is required", ErrConfigInvalid)
	}

	switch cfg.Interaction {
	case InteractionQR:
		return precreate(ctx, cfg, input)
	case InteractionWAP:
		return buildPayURL(cfg, input, "alipay.trade.wap.pay", "QUICK_WAP_WAY")
	default:
		return buildPayURL(cfg, input, "alipay.trade.page.pay", "FAST_INSTANT_TRADE_PAY")
	}
}

// Refund 调用 alipay.trade.refund。同一 out_request_no 重试幂等。
func Refund(ctx context.Context, cfg *Config, input RefundInput) (*RefundResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.TradeNo) == "" || strings.TrimSpace(input.RefundAmount) == "" {
		return nil, fmt.Errorf("%w: refund input is invalid", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.OutRequestNo) == "" {
		return nil, fmt.Errorf("%w: out_request_no is required", ErrConfigInvalid)
	}

	bizContent := map[string]string{
		"out_trade_no":   strings.TrimSpace(input.TradeNo),
		"refund_amount":  strings.TrimSpace(input.RefundAmount),
		"out_request_no": strings.TrimSpace(input.OutRequestNo),
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		bizContent["refund_reason"] = reason
	}
	params, err := buildSignedParams(cfg, "alipay.trade.refund", "", "", bizContent)
	if err != nil {
		return nil, err
	}

	raw, err := postGateway(ctx, cfg, params)
	if err != nil {
		return nil, err
	}
	resp, err := readGatewayResponse(raw, "alipay_trade_refund_response")
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		TradeNo:      readString(resp, "trade_no"),
		FundChange:   strings.EqualFold(readString(resp, "fund_change"), "Y"),
		BuyerLogonID: readString(resp, "buyer_logon_id"),
		Raw:          raw,
	}, nil
}

// VerifyNotify 验签并解析异步通知。验签内容剔除 sign 与 sign_type。
func VerifyNotify(cfg *Config, form map[string][]string) (*NotifyResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	sign := firstFormValue(form, "sign")
	if sign == "" {
		return nil, fmt.Errorf("%w: sign is missing", ErrSignatureInvalid)
	}
	signType := strings.ToUpper(firstFormValue(form, "sign_type"))
	if signType == "" {
		signType = cfg.SignType
	}

	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	content := buildNotifySignContent(params)
	if err := verifySignature(content, sign, cfg.AlipayPublicKey, signType); err != nil {
		return nil, err
	}

	result := &NotifyResult{
		OutTradeNo:     strings.TrimSpace(params["out_trade_no"]),
		TradeNo:        strings.TrimSpace(params["trade_no"]),
		TradeStatus:    strings.TrimSpace(params["trade_status"]),
		TotalAmount:    strings.TrimSpace(params["total_amount"]),
		BuyerPayAmount: strings.TrimSpace(params["buyer_pay_amount"]),
		BuyerID:        strings.TrimSpace(params["buyer_id"]),
		BuyerLogonID:   strings.TrimSpace(params["buyer_logon_id"]),
		Raw:            params,
	}
	if raw := strings.TrimSpace(params["gmt_payment"]); raw != "" {
		if parsed, err := time.ParseInLocation(timeLayout, raw, gatewayZone); err == nil {
			result.PaymentTime = &parsed
		}
	}
	if result.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is missing", ErrResponseInvalid)
	}
	return result, nil
}

func (c *Config) normalize() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
	c.AlipayPublicKey = strings.TrimSpace(c.AlipayPublicKey)
	c.GatewayURL = strings.TrimSpace(c.GatewayURL)
	c.SignType = strings.ToUpper(strings.TrimSpace(c.SignType))
	c.Interaction = strings.ToLower(strings.TrimSpace(c.Interaction))
	c.AppCertSN = strings.TrimSpace(c.AppCertSN)
	c.AlipayRootCertSN = strings.TrimSpace(c.AlipayRootCertSN)
	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}
	if c.SignType == "" {
		c.SignType = "RSA2"
	}
	if c.Interaction == "" {
		c.Interaction = InteractionPage
	}
}

func precreate(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	bizContent := map[string]string{
		"out_trade_no": strings.TrimSpace(input.TradeNo),
		"total_amount": strings.TrimSpace(input.Amount),
		"subject":      buildSubject(input.Subject, input.TradeNo),
	}
	params, err := buildSignedParams(cfg, "alipay.trade.precreate", input.NotifyURL, "", bizContent)
	if err != nil {
		return nil, err
	}
	raw, err := postGateway(ctx, cfg, params)
	if err != nil {
		return nil, err
	}
	resp, err := readGatewayResponse(raw, "alipay_trade_precreate_response")
	if err != nil {
		return nil, err
	}
	qrCode := readString(resp, "qr_code")
	if qrCode == "" {
		return nil, fmt.Errorf("%w: missing qr_code", ErrResponseInvalid)
	}
	return &CreateResult{
		QRCode:     qrCode,
		OutTradeNo: readString(resp, "out_trade_no"),
		Raw:        raw,
	}, nil
}

func buildPayURL(cfg *Config, input CreateInput, method, productCode string) (*CreateResult, error) {
	if strings.TrimSpace(input.ReturnURL) == "" {
		return nil, fmt.Errorf("%w: return_url is required for %s", ErrConfigInvalid, cfg.Interaction)
	}
	bizContent := map[string]string{
		"out_trade_no": strings.TrimSpace(input.TradeNo),
		"total_amount": strings.TrimSpace(input.Amount),
		"subject":      buildSubject(input.Subject, input.TradeNo),
		"product_code": productCode,
	}
	params, err := buildSignedParams(cfg, method, input.NotifyURL, input.ReturnURL, bizContent)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return &CreateResult{
		PayURL:     strings.TrimRight(cfg.GatewayURL, "?") + "?" + values.Encode(),
		OutTradeNo: strings.TrimSpace(input.TradeNo),
	}, nil
}

func buildSignedParams(cfg *Config, method, notifyURL, returnURL string, bizContent map[string]string) (map[string]string, error) {
	bizJSON, err := json.Marshal(bizContent)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal biz_content failed", ErrSignGenerate)
	}
	params := map[string]string{
		"app_id":      cfg.AppID,
		"method":      method,
		"format":      "JSON",
		"charset":     "utf-8",
		"sign_type":   cfg.SignType,
		"timestamp":   time.Now().In(gatewayZone).Format(timeLayout),
		"version":     "1.0",
		"biz_content": string(bizJSON),
	}
	if notifyURL = strings.TrimSpace(notifyURL); notifyURL != "" {
		params["notify_url"] = notifyURL
	}
	if returnURL = strings.TrimSpace(returnURL); returnURL != "" {
		params["return_url"] = returnURL
	}
	if cfg.AppCertSN != "" {
		params["app_cert_sn"] = cfg.AppCertSN
	}
	if cfg.AlipayRootCertSN != "" {
		params["alipay_root_cert_sn"] = cfg.AlipayRootCertSN
	}
	content := buildRequestSignContent(params)
	sign, err := signContent(content, cfg.PrivateKey, cfg.SignType)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign
	return params, nil
}

// 请求签名剔除 sign，通知验签额外剔除 sign_type。
func buildRequestSignContent(params map[string]string) string {
	return joinSorted(params, func(key string) bool {
		return key == "sign"
	})
}

func buildNotifySignContent(params map[string]string) string {
	return joinSorted(params, func(key string) bool {
		return key == "sign" || key == "sign_type"
	})
}

func joinSorted(params map[string]string, skip func(string) bool) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" || skip(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	return strings.Join(pairs, "&")
}

func signContent(content, privateKey, signType string) (string, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	hash, hashed := hashContent(content, signType)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, hash, hashed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignGenerate, err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func verifySignature(content, signature, publicKey, signType string) error {
	key, err := parsePublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("%w: sign decode failed", ErrSignatureInvalid)
	}
	hash, hashed := hashContent(content, signType)
	if err := rsa.VerifyPKCS1v15(key, hash, hashed, raw); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func hashContent(content, signType string) (crypto.Hash, []byte) {
	if strings.EqualFold(signType, "RSA") {
		sum := sha1.Sum([]byte(content))
		return crypto.SHA1, sum[:]
	}
	sum := sha256.Sum256([]byte(content))
	return crypto.SHA256, sum[:]
}

func postGateway(ctx context.Context, cfg *Config, params map[string]string) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	values := url.Values{}
	for key, value := range params {
		if value == "" {
			continue
		}
		values.Set(key, value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.GatewayURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readGatewayResponse(raw map[string]interface{}, key string) (map[string]interface{}, error) {
	resp, ok := raw[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrResponseInvalid, key)
	}
	if code := readString(resp, "code"); code != "10000" {
		msg := readString(resp, "sub_msg")
		if msg == "" {
			msg = readString(resp, "msg")
		}
		return nil, fmt.Errorf("%w: code %s %s", ErrResponseInvalid, code, msg)
	}
	return resp, nil
}

func buildSubject(subject, tradeNo string) string {
	subject = strings.TrimSpace(subject)
	if subject != "" {
		return subject
	}
	return "订单 " + strings.TrimSpace(tradeNo)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

func firstFormValue(form map[string][]string, key string) string {
	if values, ok := form[key]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func readString(raw map[string]interface{}, key string) string {
	value, ok := raw[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := normalizeKey(raw, "PRIVATE KEY")
	if normalized == "" {
		return nil, fmt.Errorf("%w: private_key is empty", ErrConfigInvalid)
	}
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("%w: private_key pem decode failed", ErrConfigInvalid)
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private_key type is not rsa", ErrConfigInvalid)
		}
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: parse private_key failed", ErrConfigInvalid)
}

func parsePublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := normalizeKey(raw, "PUBLIC KEY")
	if normalized == "" {
		return nil, fmt.Errorf("%w: alipay_public_key is empty", ErrConfigInvalid)
	}
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("%w: alipay_public_key pem decode failed", ErrConfigInvalid)
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: alipay_public_key type is not rsa", ErrConfigInvalid)
		}
		return key, nil
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: parse alipay_public_key failed", ErrConfigInvalid)
}

// 商户后台粘贴的密钥常为无头 Base64，补齐 PEM 头尾再解析。
func normalizeKey(raw, header string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, "\\n", "\n"))
	if normalized == "" {
		return ""
	}
	if !strings.Contains(normalized, "BEGIN") {
		return "-----BEGIN " + header + "-----\n" + wrapBase64(normalized) + "\n-----END " + header + "-----"
	}
	return normalized
}

func wrapBase64(raw string) string {
	raw = strings.Join(strings.Fields(raw), "")
	var builder strings.Builder
	for len(raw) > 64 {
		builder.WriteString(raw[:64])
		builder.WriteString("\n")
		raw = raw[64:]
	}
	builder.WriteString(raw)
	return builder.String()
}
