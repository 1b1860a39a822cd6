package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetWithdrawals 获取提现单列表
func (h *Handler) GetWithdrawals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID, _ := strconv.ParseUint(c.Query("merchant_id"), 10, 64)
	filter := repository.WithdrawalListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: uint(merchantID),
		Status:     strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	var err error
	if filter.CreatedFrom, err = parseTimeNullable(c.Query("created_from")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}
	if filter.CreatedTo, err = parseTimeNullable(c.Query("created_to")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}

	records, total, err := h.WithdrawalService.ListWithdrawals(filter)
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
	response.SuccessWithPage(c, records, pagination)
}

// GetWithdrawal 获取提现单详情
func (h *Handler) GetWithdrawal(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	record, err := h.WithdrawalService.GetWithdrawal(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrWithdrawalNotFound) {
			respondError(c, response.CodeNotFound, "error.withdrawal_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, record)
}

// ChangeWithdrawalStatusRequest 提现审核请求
type ChangeWithdrawalStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// ChangeWithdrawalStatus 审核提现单（通过/驳回/打款完成等状态流转）
func (h *Handler) ChangeWithdrawalStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req ChangeWithdrawalStatusRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	record, err := h.WithdrawalService.ChangeStatus(uint(id), req.Status, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWithdrawalNotFound):
			respondError(c, response.CodeNotFound, "error.withdrawal_not_found", nil)
		case errors.Is(err, service.ErrWithdrawalStateInvalid):
			respondErrorWithMsg(c, response.CodeConflict, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, record)
}

// SettleMerchantAccountRequest 商户清账请求
type SettleMerchantAccountRequest struct {
	MerchantID uint                   `json:"merchant_id" binding:"required"`
	Payee      map[string]interface{} `json:"payee"`
}

// SettleMerchantAccount 管理端发起商户清账：可用余额全额转出并核销预付款
func (h *Handler) SettleMerchantAccount(c *gin.Context) {
	var req SettleMerchantAccountRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	record, err := h.WithdrawalService.SettleAccount(req.MerchantID, models.JSON(req.Payee))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMerchantNotFound):
			respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
		case errors.Is(err, service.ErrWalletInsufficientAvailable):
			respondError(c, response.CodeInsufficientFunds, "error.insufficient_funds", nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	// record 为空表示余额被预付款全额核销，无需产生打款单
	response.Success(c, record)
}
