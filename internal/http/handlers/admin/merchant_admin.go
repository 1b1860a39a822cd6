package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/paygate-next/internal/http/handlers/shared"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetMerchants 获取商户列表
func (h *Handler) GetMerchants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.MerchantListFilter{
		Page:           page,
		PageSize:       pageSize,
		Keyword:        strings.TrimSpace(c.Query("keyword")),
		MerchantNumber: strings.TrimSpace(c.Query("merchant_number")),
		Status:         parseBoolNullable(c.Query("status")),
	}
	from, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}
	to, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to

	merchants, total, err := h.MerchantService.ListMerchants(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, merchants, pagination)
}

// GetMerchant 获取商户详情（含钱包快照）
func (h *Handler) GetMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	merchant, err := h.MerchantService.GetMerchantByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	wallet, err := h.WalletService.GetWallet(merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, gin.H{
		"merchant": merchant,
		"wallet":   wallet,
	})
}

// CreateMerchant 创建商户（同事务初始化钱包与签名配置）
func (h *Handler) CreateMerchant(c *gin.Context) {
	var req service.MerchantInput
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	merchant, err := h.MerchantService.CreateMerchant(req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMerchantNumberExists):
			respondError(c, response.CodeConflict, "error.merchant_number_exists", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, merchant)
}

// UpdateMerchant 更新商户资料
func (h *Handler) UpdateMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req service.MerchantInput
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	merchant, err := h.MerchantService.UpdateMerchant(uint(id), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMerchantNotFound):
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, merchant)
}

// DeleteMerchant 删除商户（软删除）
func (h *Handler) DeleteMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	if err := h.MerchantService.DeleteMerchant(uint(id)); err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// GetMerchantEncryption 获取商户签名配置（含摘要密钥，仅管理端可见）
func (h *Handler) GetMerchantEncryption(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	encryption, err := h.MerchantService.GetEncryption(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, encryptionAdminView(encryption))
}

// UpdateMerchantEncryptionRequest 更新商户签名配置请求
type UpdateMerchantEncryptionRequest struct {
	Mode         string `json:"mode" binding:"required"`
	RSAPublicKey string `json:"rsa_public_key"`
}

// UpdateMerchantEncryption 更新签名模式与商户 RSA 公钥
func (h *Handler) UpdateMerchantEncryption(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req UpdateMerchantEncryptionRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	encryption, err := h.MerchantService.UpdateEncryption(uint(id), service.MerchantEncryptionInput{
		Mode:         req.Mode,
		RSAPublicKey: req.RSAPublicKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMerchantNotFound):
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, encryptionAdminView(encryption))
}

// RegenerateMerchantHashKey 重置商户摘要密钥
func (h *Handler) RegenerateMerchantHashKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	encryption, err := h.MerchantService.RegenerateHashKey(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, encryptionAdminView(encryption))
}

// RegenerateMerchantRSAKeys 平台代生成商户 RSA 密钥对，私钥仅在本次响应返回
func (h *Handler) RegenerateMerchantRSAKeys(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	privateKey, encryption, err := h.MerchantService.RegenerateRSAKeyPair(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, gin.H{
		"rsa_private_key": privateKey,
		"rsa_public_key":  encryption.RSAPublicKey,
	})
}

func encryptionAdminView(encryption *models.MerchantEncryption) gin.H {
	return gin.H{
		"merchant_id":    encryption.MerchantID,
		"mode":           encryption.Mode,
		"hash_key":       encryption.HashKey,
		"rsa_public_key": encryption.RSAPublicKey,
	}
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseBoolNullable(raw string) *bool {
	switch strings.TrimSpace(raw) {
	case "1", "true":
		v := true
		return &v
	case "0", "false":
		v := false
		return &v
	default:
		return nil
	}
}
