package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// merchantRequest 已完成商户定位与验签的请求上下文
type merchantRequest struct {
	Merchant   *models.Merchant
	Encryption *models.MerchantEncryption
	Params     map[string]string
}

// bindMerchantRequest 解析 payload 字段、定位商户并验签。
// payload 支持两种投递方式：表单字段 payload，或 JSON 体 {"payload": ...}（对象或字符串均可）。
func (h *Handler) bindMerchantRequest(c *gin.Context) (*merchantRequest, error) {
	raw, err := extractPayloadField(c)
	if err != nil {
		return nil, err
	}
	params, err := flattenPayloadParams(raw)
	if err != nil {
		return nil, err
	}
	merchantNumber := strings.TrimSpace(params["merchant_number"])
	if merchantNumber == "" {
		return nil, fmt.Errorf("%w: 缺少 merchant_number", service.ErrPayloadInvalid)
	}
	merchant, encryption, err := h.MerchantService.ResolveActive(merchantNumber)
	if err != nil {
		return nil, err
	}
	if err := h.MerchantService.VerifySignedParams(encryption, params); err != nil {
		return nil, err
	}
	return &merchantRequest{Merchant: merchant, Encryption: encryption, Params: params}, nil
}

func respondMerchantAuthError(c *gin.Context, err error) {
	respondWithMappedError(c, err, merchantAuthErrorRules, response.CodeInternal, "error.internal")
}

// extractPayloadField 取出原始 payload 文本
func extractPayloadField(c *gin.Context) (string, error) {
	if payload := strings.TrimSpace(c.PostForm("payload")); payload != "" {
		return payload, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", service.ErrPayloadInvalid, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("%w: 缺少 payload", service.ErrPayloadInvalid)
	}
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", service.ErrPayloadInvalid, err)
	}
	trimmed := bytes.TrimSpace(envelope.Payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: 缺少 payload", service.ErrPayloadInvalid)
	}
	// payload 既可能是对象字面量，也可能是字符串形式的 JSON 文本
	var asString string
	if err := json.Unmarshal(envelope.Payload, &asString); err == nil {
		return asString, nil
	}
	return string(envelope.Payload), nil
}

// flattenPayloadParams 将 payload JSON 对象摊平为参与签名的字符串参数。
// 数字保留原始字面量，布尔转 true/false，嵌套结构压缩为 JSON 文本，null 跳过。
func flattenPayloadParams(raw string) (map[string]string, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var fields map[string]interface{}
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrPayloadInvalid, err)
	}
	params := make(map[string]string, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			params[key] = v
		case json.Number:
			params[key] = v.String()
		case bool:
			params[key] = strconv.FormatBool(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", service.ErrPayloadInvalid, err)
			}
			params[key] = string(encoded)
		}
	}
	return params, nil
}

// requirePayloadAmount 取出并解析必填金额参数
func requirePayloadAmount(params map[string]string, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(params[key])
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: 缺少 %s", service.ErrPayloadInvalid, key)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s 不是合法金额", service.ErrPayloadInvalid, key)
	}
	return amount, nil
}
