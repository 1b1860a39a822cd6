package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/sign"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// 管理端写操作统一走密文信封：{"payload": "<base64(nonce+ciphertext)>"}。
// 未配置 security.payload_key 时退化为明文 JSON，便于本地联调。
type encryptedEnvelope struct {
	Payload string `json:"payload" binding:"required"`
}

var errAdminPayloadMalformed = errors.New("管理端请求载荷无效")

func (h *Handler) payloadKey() []byte {
	if h.Config == nil || h.Config.Security.PayloadKey == "" {
		return nil
	}
	return []byte(h.Config.Security.PayloadKey)
}

// bindAdminPayload 解析管理端写请求体到 obj，并执行 binding 校验
func (h *Handler) bindAdminPayload(c *gin.Context, obj interface{}) error {
	key := h.payloadKey()
	if len(key) == 0 {
		if err := c.ShouldBindJSON(obj); err != nil {
			return fmt.Errorf("%w: %v", errAdminPayloadMalformed, err)
		}
		return nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errAdminPayloadMalformed, err)
	}

	var envelope encryptedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Payload == "" {
		return fmt.Errorf("%w: 缺少 payload 字段", errAdminPayloadMalformed)
	}

	plain, err := sign.DecodePayload(key, envelope.Payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, obj); err != nil {
		return fmt.Errorf("%w: %v", errAdminPayloadMalformed, err)
	}
	if binding.Validator != nil {
		if err := binding.Validator.ValidateStruct(obj); err != nil {
			return fmt.Errorf("%w: %v", errAdminPayloadMalformed, err)
		}
	}
	return nil
}

func respondAdminPayloadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sign.ErrCipherKeyInvalid):
		respondError(c, response.CodeInternal, "error.internal", err)
	case errors.Is(err, sign.ErrCipherInvalid):
		respondError(c, response.CodeInvalidRequest, "error.payload_invalid", nil)
	default:
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
	}
}
