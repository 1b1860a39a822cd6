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

// GetOrders 获取订单列表
func (h *Handler) GetOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID, _ := strconv.ParseUint(c.Query("merchant_id"), 10, 64)
	channelID, _ := strconv.ParseUint(c.Query("channel_id"), 10, 64)
	accountID, _ := strconv.ParseUint(c.Query("account_id"), 10, 64)

	filter := repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		MerchantID:  uint(merchantID),
		ChannelID:   uint(channelID),
		AccountID:   uint(accountID),
		TradeNo:     strings.TrimSpace(c.Query("trade_no")),
		OutTradeNo:  strings.TrimSpace(c.Query("out_trade_no")),
		APITradeNo:  strings.TrimSpace(c.Query("api_trade_no")),
		PaymentType: strings.TrimSpace(c.Query("payment_type")),
		TradeState:  strings.TrimSpace(c.Query("trade_state")),
		SettleState: strings.TrimSpace(c.Query("settle_state")),
		NotifyState: strings.TrimSpace(c.Query("notify_state")),
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
	if filter.PaymentFrom, err = parseTimeNullable(c.Query("payment_from")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}
	if filter.PaymentTo, err = parseTimeNullable(c.Query("payment_to")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}

	orders, total, err := h.OrderService.ListOrders(filter)
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
	response.SuccessWithPage(c, orders, pagination)
}

// GetOrder 获取订单详情（含买家、退款、通知记录）
func (h *Handler) GetOrder(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	if tradeNo == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	order, err := h.OrderService.GetOrder(tradeNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	buyer, err := h.OrderService.GetOrderBuyer(tradeNo)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	refunds, err := h.RefundService.ListRefundsByTradeNo(tradeNo)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	notifications, _, err := h.NotifyService.ListNotifications(repository.NotificationListFilter{
		Page:     1,
		PageSize: 100,
		TradeNo:  tradeNo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, gin.H{
		"order":         order,
		"buyer":         buyer,
		"refunds":       refunds,
		"notifications": notifications,
	})
}

// CloseOrder 关闭待支付订单
func (h *Handler) CloseOrder(c *gin.Context) {
	h.transitionOrder(c, func(tradeNo string) (interface{}, error) {
		return h.OrderService.CloseOrder(tradeNo)
	})
}

// FreezeOrder 冻结订单
func (h *Handler) FreezeOrder(c *gin.Context) {
	h.transitionOrder(c, func(tradeNo string) (interface{}, error) {
		return h.OrderService.FreezeOrder(tradeNo)
	})
}

// UnfreezeOrder 解冻订单
func (h *Handler) UnfreezeOrder(c *gin.Context) {
	h.transitionOrder(c, func(tradeNo string) (interface{}, error) {
		return h.OrderService.UnfreezeOrder(tradeNo)
	})
}

func (h *Handler) transitionOrder(c *gin.Context, fn func(tradeNo string) (interface{}, error)) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	if tradeNo == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	order, err := fn(tradeNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStateInvalid):
			respondErrorWithMsg(c, response.CodeConflict, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, order)
}

// RetryOrderSettle 重新入队结算失败的订单
func (h *Handler) RetryOrderSettle(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	if tradeNo == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	if err := h.OrderService.RetrySettle(tradeNo); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStateInvalid):
			respondErrorWithMsg(c, response.CodeConflict, err.Error(), nil)
		case errors.Is(err, service.ErrQueueUnavailable):
			respondError(c, response.CodeInternal, "error.queue_unavailable", err)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, nil)
}

// ResendOrderNotify 重置重试计数并重新入队异步通知
func (h *Handler) ResendOrderNotify(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	if tradeNo == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	order, err := h.NotifyService.ResendNotify(tradeNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		case errors.Is(err, service.ErrQueueUnavailable):
			respondError(c, response.CodeInternal, "error.queue_unavailable", err)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, order)
}

// ManualRefundRequest 管理端手动退款请求
type ManualRefundRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Auto      bool            `json:"auto"`
	FeeBearer *bool           `json:"fee_bearer"`
	Reason    string          `json:"reason"`
}

// ManualRefund 管理端对订单发起退款
func (h *Handler) ManualRefund(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	if tradeNo == "" {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req ManualRefundRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	refund, err := h.RefundService.Handle(c.Request.Context(), service.RefundHandleInput{
		TradeNo:      tradeNo,
		Amount:       req.Amount,
		InitiateType: constants.RefundInitiateAdmin,
		Auto:         req.Auto,
		FeeBearer:    req.FeeBearer,
		Reason:       req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrRefundStateInvalid):
			respondError(c, response.CodeConflict, "error.refund_state_invalid", nil)
		case errors.Is(err, service.ErrRefundAmountInvalid):
			respondError(c, response.CodeInvalidRequest, "error.amount_invalid", nil)
		case errors.Is(err, service.ErrRefundExceedsRemaining):
			respondError(c, response.CodeInvalidRequest, "error.refund_exceeds_remaining", nil)
		case errors.Is(err, service.ErrRefundRequiresAPITrade):
			respondError(c, response.CodeInvalidRequest, "error.refund_requires_api_trade", nil)
		case errors.Is(err, service.ErrWalletInsufficientAvailable),
			errors.Is(err, service.ErrWalletInsufficientUnavailable):
			respondError(c, response.CodeInsufficientFunds, "error.insufficient_funds", nil)
		case errors.Is(err, service.ErrGatewayFailed),
			errors.Is(err, service.ErrGatewayDriverNotFound):
			respondError(c, response.CodeGatewayError, "error.gateway_error", err)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, refund)
}
