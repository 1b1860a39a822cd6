package epay

import (
	"context"
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paygate-next/internal/constants"
)

const (
	VersionV1 = "v1"
	VersionV2 = "v2"
)

var (
	ErrConfigInvalid     = errors.New("epay config invalid")
	ErrRequestFailed     = errors.New("epay request failed")
	ErrResponseInvalid   = errors.New("epay response invalid")
	ErrPayTypeNotOK      = errors.New("epay pay type invalid")
	ErrSignatureGenerate = errors.New("epay signature generate failed")
	ErrSignatureInvalid  = errors.New("epay signature invalid")
)

// Config 易支付聚合协议配置
type Config struct {
	GatewayURL  string `json:"gateway_url"`         // 网关地址
	EpayVersion string `json:"epay_version"`        // 版本（v1/v2）
	MerchantID  string `json:"merchant_id"`         // 商户号
	MerchantKey string `json:"merchant_key"`        // 商户密钥（v1）
	PrivateKey  string `json:"private_key"`         // 商户私钥（v2）
	PublicKey   string `json:"platform_public_key"` // 平台公钥（v2）
	SignType    string `json:"sign_type"`           // 签名类型
	APIPath     string `json:"api_path"`            // 下单接口路径
	RefundPath  string `json:"refund_path"`         // 退款接口路径
	Method      string `json:"method"`              // 支付方式（v2 method）
	Device      string `json:"device"`              // 设备类型（v1 device）
}

// CreateInput 易支付下单输入。TradeNo 作为上游侧的 out_trade_no。
type CreateInput struct {
	TradeNo     string
	Amount      string
	Subject     string
	PaymentType string
	ClientIP    string
	NotifyURL   string
	ReturnURL   string
}

// CreateResult 易支付下单结果
type CreateResult struct {
	PayURL  string
	QRCode  string
	TradeNo string
	PayType string
	Raw     map[string]interface{}
}

// RefundInput 易支付退款输入。APITradeNo 为上游交易号。
type RefundInput struct {
	TradeNo    string
	APITradeNo string
	Amount     string
}

// RefundResult 易支付退款结果
type RefundResult struct {
	Msg string
	Raw map[string]interface{}
}

// NotifyResult 回调验签解析结果
type NotifyResult struct {
	OutTradeNo  string
	TradeNo     string
	PayType     string
	Money       string
	TradeStatus string
	Buyer       string
	Raw         map[string]string
}

// Paid 通知是否为支付完成态
func (r *NotifyResult) Paid() bool {
	return r != nil && r.TradeStatus == "TRADE_SUCCESS"
}

// ParseConfig 解析配置
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

// ValidateConfig 校验易支付配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return fmt.Errorf("%w: gateway_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrConfigInvalid)
	}
	switch cfg.EpayVersion {
	case VersionV2:
		if strings.TrimSpace(cfg.PrivateKey) == "" {
			return fmt.Errorf("%w: private_key is required for v2", ErrConfigInvalid)
		}
		if strings.TrimSpace(cfg.PublicKey) == "" {
			return fmt.Errorf("%w: platform_public_key is required for v2", ErrConfigInvalid)
		}
	default:
		if strings.TrimSpace(cfg.MerchantKey) == "" {
			return fmt.Errorf("%w: merchant_key is required for v1", ErrConfigInvalid)
		}
	}
	return nil
}

// CreatePayment 发起易支付下单
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.TradeNo == "" || input.Amount == "" || input.ClientIP == "" {
		return nil, ErrConfigInvalid
	}
	if input.NotifyURL == "" || input.ReturnURL == "" {
		return nil, ErrConfigInvalid
	}
	if input.Subject == "" {
		input.Subject = input.TradeNo
	}
	payType := ResolvePayType(input.PaymentType)
	if payType == "" {
		return nil, ErrPayTypeNotOK
	}
	switch cfg.EpayVersion {
	case VersionV2:
		return createV2(ctx, cfg, input, payType)
	default:
		return createV1(ctx, cfg, input, payType)
	}
}

// Refund 发起易支付退款
func Refund(ctx context.Context, cfg *Config, input RefundInput) (*RefundResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.TradeNo == "" || input.Amount == "" {
		return nil, ErrConfigInvalid
	}
	switch cfg.EpayVersion {
	case VersionV2:
		return refundV2(ctx, cfg, input)
	default:
		return refundV1(ctx, cfg, input)
	}
}

// VerifyNotify 验证回调签名并解析通知参数
func VerifyNotify(cfg *Config, form map[string][]string) (*NotifyResult, error) {
	if cfg == nil {
		return nil, ErrConfigInvalid
	}
	sign := strings.TrimSpace(firstValue(form, "sign"))
	if sign == "" {
		return nil, ErrSignatureInvalid
	}
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	content := buildSignContent(params)
	switch cfg.EpayVersion {
	case VersionV2:
		if err := verifyRSA(content, sign, cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		expected := signMD5(content + cfg.MerchantKey)
		if !strings.EqualFold(expected, sign) {
			return nil, ErrSignatureInvalid
		}
	}
	result := &NotifyResult{
		OutTradeNo:  strings.TrimSpace(params["out_trade_no"]),
		TradeNo:     strings.TrimSpace(params["trade_no"]),
		PayType:     strings.TrimSpace(params["type"]),
		Money:       strings.TrimSpace(params["money"]),
		TradeStatus: strings.TrimSpace(params["trade_status"]),
		Buyer:       strings.TrimSpace(params["buyer"]),
		Raw:         params,
	}
	if result.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is missing", ErrResponseInvalid)
	}
	return result, nil
}

// ResolvePayType 将平台支付方式映射到易支付 type 参数。网银与银联走 bank 通道。
func ResolvePayType(paymentType string) string {
	switch strings.TrimSpace(paymentType) {
	case constants.PaymentTypeAlipay:
		return "alipay"
	case constants.PaymentTypeWechatPay:
		return "wxpay"
	case constants.PaymentTypeQQWallet:
		return "qqpay"
	case constants.PaymentTypeBank, constants.PaymentTypeUnionPay:
		return "bank"
	case constants.PaymentTypeJDPay:
		return "jdpay"
	default:
		return ""
	}
}

// IsSupportedPaymentType 判断易支付覆盖的支付方式
func IsSupportedPaymentType(paymentType string) bool {
	return ResolvePayType(paymentType) != ""
}

func (c *Config) normalize() {
	c.EpayVersion = strings.ToLower(strings.TrimSpace(c.EpayVersion))
	c.SignType = strings.TrimSpace(c.SignType)
	if c.SignType == "" {
		if c.EpayVersion == VersionV2 {
			c.SignType = "RSA"
		} else {
			c.SignType = "MD5"
		}
	}
	if c.APIPath == "" {
		if c.EpayVersion == VersionV2 {
			c.APIPath = "/api/pay/create"
		} else {
			c.APIPath = "/mapi.php"
		}
	}
	if c.RefundPath == "" {
		if c.EpayVersion == VersionV2 {
			c.RefundPath = "/api/pay/refund"
		} else {
			c.RefundPath = "/api.php"
		}
	}
	if c.Method == "" {
		c.Method = "web"
	}
	if c.Device == "" {
		c.Device = "pc"
	}
}

func createV1(ctx context.Context, cfg *Config, input CreateInput, payType string) (*CreateResult, error) {
	params := map[string]string{
		"pid":          cfg.MerchantID,
		"type":         payType,
		"out_trade_no": input.TradeNo,
		"notify_url":   input.NotifyURL,
		"return_url":   input.ReturnURL,
		"name":         input.Subject,
		"money":        input.Amount,
		"clientip":     input.ClientIP,
		"device":       cfg.Device,
	}
	signContent := buildSignContent(params)
	params["sign"] = signMD5(signContent + cfg.MerchantKey)
	params["sign_type"] = cfg.SignType

	endpoint := buildEndpoint(cfg.GatewayURL, cfg.APIPath)
	respBytes, err := postForm(ctx, endpoint, params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code      int    `json:"code"`
		Msg       string `json:"msg"`
		TradeNo   string `json:"trade_no"`
		PayURL    string `json:"payurl"`
		QRCode    string `json:"qrcode"`
		URLScheme string `json:"urlscheme"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	result := &CreateResult{
		PayURL:  strings.TrimSpace(resp.PayURL),
		QRCode:  strings.TrimSpace(resp.QRCode),
		TradeNo: strings.TrimSpace(resp.TradeNo),
		PayType: payType,
		Raw:     raw,
	}
	if result.PayURL == "" && resp.URLScheme != "" {
		result.PayURL = strings.TrimSpace(resp.URLScheme)
	}
	return result, nil
}

func createV2(ctx context.Context, cfg *Config, input CreateInput, payType string) (*CreateResult, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := map[string]string{
		"pid":          cfg.MerchantID,
		"method":       cfg.Method,
		"type":         payType,
		"out_trade_no": input.TradeNo,
		"notify_url":   input.NotifyURL,
		"return_url":   input.ReturnURL,
		"name":         input.Subject,
		"money":        input.Amount,
		"clientip":     input.ClientIP,
		"timestamp":    timestamp,
	}
	signContent := buildSignContent(params)
	sign, err := signRSA(signContent, cfg.PrivateKey)
	if err != nil {
		return nil, ErrSignatureGenerate
	}
	params["sign"] = sign
	params["sign_type"] = cfg.SignType

	endpoint := buildEndpoint(cfg.GatewayURL, cfg.APIPath)
	respBytes, err := postForm(ctx, endpoint, params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		TradeNo string `json:"trade_no"`
		PayType string `json:"pay_type"`
		PayInfo string `json:"pay_info"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	result := &CreateResult{
		TradeNo: strings.TrimSpace(resp.TradeNo),
		PayType: strings.TrimSpace(resp.PayType),
		Raw:     raw,
	}
	if strings.EqualFold(result.PayType, "qrcode") {
		result.QRCode = strings.TrimSpace(resp.PayInfo)
	} else {
		result.PayURL = strings.TrimSpace(resp.PayInfo)
	}
	return result, nil
}

// v1 退款走 api.php?act=refund，商户密钥明文随表单提交。
func refundV1(ctx context.Context, cfg *Config, input RefundInput) (*RefundResult, error) {
	params := map[string]string{
		"act":          "refund",
		"pid":          cfg.MerchantID,
		"key":          cfg.MerchantKey,
		"out_trade_no": input.TradeNo,
		"money":        input.Amount,
	}
	if input.APITradeNo != "" {
		params["trade_no"] = input.APITradeNo
	}
	endpoint := buildEndpoint(cfg.GatewayURL, cfg.RefundPath)
	respBytes, err := postForm(ctx, endpoint, params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	return &RefundResult{Msg: strings.TrimSpace(resp.Msg), Raw: raw}, nil
}

func refundV2(ctx context.Context, cfg *Config, input RefundInput) (*RefundResult, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := map[string]string{
		"pid":          cfg.MerchantID,
		"method":       "refund",
		"out_trade_no": input.TradeNo,
		"money":        input.Amount,
		"timestamp":    timestamp,
	}
	if input.APITradeNo != "" {
		params["trade_no"] = input.APITradeNo
	}
	signContent := buildSignContent(params)
	sign, err := signRSA(signContent, cfg.PrivateKey)
	if err != nil {
		return nil, ErrSignatureGenerate
	}
	params["sign"] = sign
	params["sign_type"] = cfg.SignType

	endpoint := buildEndpoint(cfg.GatewayURL, cfg.RefundPath)
	respBytes, err := postForm(ctx, endpoint, params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	return &RefundResult{Msg: strings.TrimSpace(resp.Msg), Raw: raw}, nil
}

func buildEndpoint(gatewayURL, apiPath string) string {
	base := strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	path := strings.TrimSpace(apiPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func postForm(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrRequestFailed
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func buildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

func signMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func signRSA(content, privateKey string) (string, error) {
	key, err := parseRSAPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	hashed := sha256.Sum256([]byte(content))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func verifyRSA(content, signature, publicKey string) error {
	key, err := parseRSAPublicKey(publicKey)
	if err != nil {
		return ErrSignatureInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrSignatureInvalid
	}
	hashed := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], raw); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func parseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if strings.Contains(block.Type, "PRIVATE KEY") {
			if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
				if rsaKey, ok := key.(*rsa.PrivateKey); ok {
					return rsaKey, nil
				}
			}
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrConfigInvalid
	}
	if key, err := x509.ParsePKCS8PrivateKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrConfigInvalid
}

func parseRSAPublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
			if rsaKey, ok := key.(*rsa.PublicKey); ok {
				return rsaKey, nil
			}
		}
		if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrConfigInvalid
	}
	if key, err := x509.ParsePKIXPublicKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrConfigInvalid
}

// 商户后台粘贴的密钥常为无头 Base64，剥掉 PEM 头尾逐行拼接后解码。
func decodeKeyBody(raw string) ([]byte, error) {
	lines := strings.Split(raw, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-----BEGIN ") || strings.HasPrefix(trimmed, "-----END ") {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return nil, ErrConfigInvalid
	}
	body := strings.Join(parts, "")
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrConfigInvalid
	}
	return decoded, nil
}

func firstValue(form map[string][]string, key string) string {
	if values, ok := form[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}
