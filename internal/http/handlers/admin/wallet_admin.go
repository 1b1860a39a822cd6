package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetMerchantWallet 获取商户钱包快照
func (h *Handler) GetMerchantWallet(c *gin.Context) {
	merchantID, err := strconv.ParseUint(c.Param("merchantID"), 10, 64)
	if err != nil || merchantID == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	wallet, err := h.WalletService.GetWallet(uint(merchantID))
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, wallet)
}

// GetWalletRecords 获取钱包余额流水
func (h *Handler) GetWalletRecords(c *gin.Context) {
	filter, ok := h.walletRecordFilter(c)
	if !ok {
		return
	}

	records, total, err := h.WalletService.ListRecords(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: (total + int64(filter.PageSize) - 1) / int64(filter.PageSize),
	}
	response.SuccessWithPage(c, records, pagination)
}

// GetWalletPrepaidRecords 获取预付款流水
func (h *Handler) GetWalletPrepaidRecords(c *gin.Context) {
	filter, ok := h.walletRecordFilter(c)
	if !ok {
		return
	}

	records, total, err := h.WalletService.ListPrepaidRecords(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: (total + int64(filter.PageSize) - 1) / int64(filter.PageSize),
	}
	response.SuccessWithPage(c, records, pagination)
}

func (h *Handler) walletRecordFilter(c *gin.Context) (repository.WalletRecordListFilter, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID, _ := strconv.ParseUint(c.Query("merchant_id"), 10, 64)
	filter := repository.WalletRecordListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: uint(merchantID),
		Type:       strings.TrimSpace(c.Query("type")),
		TradeNo:    strings.TrimSpace(c.Query("trade_no")),
	}
	var err error
	if filter.CreatedFrom, err = parseTimeNullable(c.Query("created_from")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return filter, false
	}
	if filter.CreatedTo, err = parseTimeNullable(c.Query("created_to")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return filter, false
	}
	return filter, true
}

// AdjustWalletRequest 管理端余额调整请求
type AdjustWalletRequest struct {
	MerchantID uint            `json:"merchant_id" binding:"required"`
	Delta      decimal.Decimal `json:"delta" binding:"required"`
	Remark     string          `json:"remark" binding:"required"`
}

// AdjustWalletAvailable 调整商户可用余额（正负皆可，流水类型 ADMIN_ADJUST）
func (h *Handler) AdjustWalletAvailable(c *gin.Context) {
	var req AdjustWalletRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	wallet, record, err := h.WalletService.ChangeAvailable(service.WalletChangeInput{
		MerchantID: req.MerchantID,
		Delta:      req.Delta,
		Type:       constants.WalletChangeAdminAdjust,
		Remark:     req.Remark,
	})
	if err != nil {
		h.respondWalletAdjustError(c, err)
		return
	}

	response.Success(c, gin.H{
		"wallet": wallet,
		"record": record,
	})
}

// AdjustWalletPrepaid 调整商户预付款（正负皆可，流水类型 ADMIN_ADJUST）
func (h *Handler) AdjustWalletPrepaid(c *gin.Context) {
	var req AdjustWalletRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	wallet, record, err := h.WalletService.ChangePrepaid(service.WalletPrepaidChangeInput{
		MerchantID: req.MerchantID,
		Delta:      req.Delta,
		Type:       constants.WalletChangeAdminAdjust,
		Remark:     req.Remark,
	})
	if err != nil {
		h.respondWalletAdjustError(c, err)
		return
	}

	response.Success(c, gin.H{
		"wallet": wallet,
		"record": record,
	})
}

func (h *Handler) respondWalletAdjustError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWalletInvalidAmount):
		respondError(c, response.CodeInvalidRequest, "error.amount_invalid", nil)
	case errors.Is(err, service.ErrWalletInsufficientAvailable),
		errors.Is(err, service.ErrWalletInsufficientUnavailable),
		errors.Is(err, service.ErrWalletInsufficientPrepaid):
		respondError(c, response.CodeInsufficientFunds, "error.insufficient_funds", nil)
	default:
		respondError(c, response.CodeInternal, "error.save_failed", err)
	}
}
