package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetRefunds 获取退款单列表
func (h *Handler) GetRefunds(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID, _ := strconv.ParseUint(c.Query("merchant_id"), 10, 64)
	filter := repository.RefundListFilter{
		Page:         page,
		PageSize:     pageSize,
		MerchantID:   uint(merchantID),
		TradeNo:      strings.TrimSpace(c.Query("trade_no")),
		OutBizNo:     strings.TrimSpace(c.Query("out_biz_no")),
		InitiateType: strings.TrimSpace(c.Query("initiate_type")),
		Status:       strings.TrimSpace(c.Query("status")),
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

	refunds, total, err := h.RefundService.ListRefunds(filter)
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
	response.SuccessWithPage(c, refunds, pagination)
}

// GetRefund 获取退款单详情
func (h *Handler) GetRefund(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	refund, err := h.RefundService.GetRefund(id)
	if err != nil {
		if errors.Is(err, service.ErrRefundNotFound) {
			respondError(c, response.CodeNotFound, "error.refund_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, refund)
}
