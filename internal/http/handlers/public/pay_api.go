package public

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/payment"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UnifiedPay 统一下单：验签、风控、选路、落库后提交上游网关。
// 幂等命中已有 WAIT_PAY 订单时重新生成支付凭证返回。
func (h *Handler) UnifiedPay(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}
	if err := h.MerchantService.RequireCompetence(req.Merchant, constants.CompetencePay); err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	total, err := requirePayloadAmount(req.Params, "total_amount")
	if err != nil {
		respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		return
	}
	buyer, err := parseOrderBuyer(c, req.Params)
	if err != nil {
		respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		return
	}

	result, err := h.OrderService.CreateOrder(c.Request.Context(), service.OrderCreateInput{
		Merchant:    req.Merchant,
		OutTradeNo:  strings.TrimSpace(req.Params["out_trade_no"]),
		Subject:     strings.TrimSpace(req.Params["subject"]),
		TotalAmount: total,
		PaymentType: strings.TrimSpace(req.Params["payment_type"]),
		ChannelCode: strings.TrimSpace(req.Params["channel_code"]),
		NotifyURL:   strings.TrimSpace(req.Params["notify_url"]),
		ReturnURL:   strings.TrimSpace(req.Params["return_url"]),
		Attach:      req.Params["attach"],
		SignType:    strings.TrimSpace(req.Params["sign_type"]),
		Buyer:       buyer,
	})
	if err != nil {
		if errors.Is(err, service.ErrPayloadInvalid) {
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		respondWithMappedError(c, err, payCreateErrorRules, response.CodeInternal, "error.internal")
		return
	}

	submitResult, err := h.submitToGateway(c, result)
	if err != nil {
		// 订单已落库，提交失败按网关错误返回，商户可凭同一 out_trade_no 重试
		requestLog(c).Errorw("unified_pay_submit_failed",
			"trade_no", result.Order.TradeNo,
			"gateway", result.Channel.Gateway,
			"error", err,
		)
		respondError(c, response.CodeGatewayError, "error.gateway_error", err)
		return
	}

	response.Success(c, gin.H{
		"order": apiOrderView(result.Order),
		"pay":   submitResult,
	})
}

// QueryPay 订单查询，trade_no 与 out_trade_no 至少提供其一
func (h *Handler) QueryPay(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	order, err := h.OrderService.GetMerchantOrder(
		req.Merchant.ID,
		strings.TrimSpace(req.Params["trade_no"]),
		strings.TrimSpace(req.Params["out_trade_no"]),
	)
	if err != nil {
		if errors.Is(err, service.ErrPayloadInvalid) {
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, apiOrderView(order))
}

// ClosePay 关闭待支付订单
func (h *Handler) ClosePay(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}
	if err := h.MerchantService.RequireCompetence(req.Merchant, constants.CompetencePay); err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	order, err := h.OrderService.GetMerchantOrder(
		req.Merchant.ID,
		strings.TrimSpace(req.Params["trade_no"]),
		strings.TrimSpace(req.Params["out_trade_no"]),
	)
	if err != nil {
		if errors.Is(err, service.ErrPayloadInvalid) {
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.internal")
		return
	}

	closed, err := h.OrderService.CloseOrder(order.TradeNo)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, apiOrderView(closed))
}

// submitToGateway 把已落库订单提交给上游驱动
func (h *Handler) submitToGateway(c *gin.Context, result *service.OrderCreateResult) (*payment.SubmitResult, error) {
	driver, err := h.PaymentRegistry.Get(result.Channel.Gateway)
	if err != nil {
		return nil, err
	}
	return driver.Submit(c.Request.Context(), payment.SubmitInput{
		Order:     result.Order,
		Buyer:     result.Buyer,
		Config:    result.Account.Config,
		Subject:   result.Order.Subject,
		ReturnURL: h.returnBridgeURL(result.Order.TradeNo),
		NotifyURL: h.gatewayNotifyURL(result.Channel.Gateway, result.Account.ID),
	})
}

// parseOrderBuyer 解析 payload 中的 buyer JSON 对象，空缺的 IP/UA 回填请求来源
func parseOrderBuyer(c *gin.Context, params map[string]string) (service.OrderBuyerInput, error) {
	var buyer service.OrderBuyerInput
	if raw := strings.TrimSpace(params["buyer"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &buyer); err != nil {
			return buyer, fmt.Errorf("%w: buyer 不是合法 JSON 对象", service.ErrPayloadInvalid)
		}
	}
	if strings.TrimSpace(buyer.IP) == "" {
		buyer.IP = c.ClientIP()
	}
	if strings.TrimSpace(buyer.UserAgent) == "" {
		buyer.UserAgent = c.Request.UserAgent()
	}
	return buyer, nil
}

// gatewayNotifyURL 拼接上游异步回调地址
func (h *Handler) gatewayNotifyURL(gateway string, accountID uint) string {
	base := strings.TrimRight(h.Config.Site.BaseURL, "/")
	return fmt.Sprintf("%s/callback/%s/%d", base, strings.ToLower(gateway), accountID)
}

// returnBridgeURL 拼接同步跳转桥接地址
func (h *Handler) returnBridgeURL(tradeNo string) string {
	base := strings.TrimRight(h.Config.Site.BaseURL, "/")
	return base + "/return/" + tradeNo
}

// apiOrderView 商户接口订单视图，金额两位小数、时间带时区偏移
func apiOrderView(order *models.Order) gin.H {
	return gin.H{
		"trade_no":         order.TradeNo,
		"out_trade_no":     order.OutTradeNo,
		"payment_type":     order.PaymentType,
		"subject":          order.Subject,
		"total_amount":     order.TotalAmount,
		"buyer_pay_amount": order.BuyerPayAmount,
		"receipt_amount":   order.ReceiptAmount,
		"fee_amount":       order.FeeAmount,
		"attach":           order.Attach,
		"settle_cycle":     order.SettleCycle,
		"trade_state":      order.TradeState,
		"settle_state":     order.SettleState,
		"notify_state":     order.NotifyState,
		"api_trade_no":     order.APITradeNo,
		"bill_trade_no":    order.BillTradeNo,
		"create_time":      order.CreateTime.Format(constants.TimeFormatAPI),
		"payment_time":     formatAPITime(order.PaymentTime),
		"close_time":       formatAPITime(order.CloseTime),
	}
}

func formatAPITime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(constants.TimeFormatAPI)
}
