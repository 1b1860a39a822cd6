package public

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ApplyRefund 商户发起退款，按 out_biz_no 幂等，默认原路退回上游
func (h *Handler) ApplyRefund(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}
	if err := h.MerchantService.RequireCompetence(req.Merchant, constants.CompetenceRefund); err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	amount, err := requirePayloadAmount(req.Params, "amount")
	if err != nil {
		respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		return
	}

	refund, duplicate, err := h.RefundService.MerchantRefund(c.Request.Context(), req.Merchant, service.MerchantRefundInput{
		TradeNo:    strings.TrimSpace(req.Params["trade_no"]),
		OutTradeNo: strings.TrimSpace(req.Params["out_trade_no"]),
		OutBizNo:   strings.TrimSpace(req.Params["out_biz_no"]),
		Amount:     amount,
		Reason:     req.Params["reason"],
	})
	if err != nil {
		if errors.Is(err, service.ErrPayloadInvalid) {
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		rules := concatMappedHandlerErrors(orderLookupErrorRules, refundErrorRules)
		respondWithMappedError(c, err, rules, response.CodeInternal, "error.internal")
		return
	}

	response.Success(c, gin.H{
		"refund":    apiRefundView(refund),
		"duplicate": duplicate,
	})
}

// QueryRefund 退款查询，refund_id 与 out_biz_no 至少提供其一
func (h *Handler) QueryRefund(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	refund, err := h.RefundService.GetMerchantRefund(
		req.Merchant.ID,
		strings.TrimSpace(req.Params["refund_id"]),
		strings.TrimSpace(req.Params["out_biz_no"]),
	)
	if err != nil {
		if errors.Is(err, service.ErrPayloadInvalid) {
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		respondWithMappedError(c, err, refundErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, apiRefundView(refund))
}

// apiRefundView 商户接口退款单视图
func apiRefundView(refund *models.OrderRefund) gin.H {
	outBizNo := ""
	if refund.OutBizNo != nil {
		outBizNo = *refund.OutBizNo
	}
	return gin.H{
		"refund_id":         refund.ID,
		"trade_no":          refund.TradeNo,
		"out_biz_no":        outBizNo,
		"amount":            refund.Amount,
		"refund_fee_amount": refund.RefundFeeAmount,
		"fee_bearer":        refund.FeeBearer,
		"api_refund_no":     refund.APIRefundNo,
		"reason":            refund.Reason,
		"status":            refund.Status,
		"created_at":        refund.CreatedAt.Format(constants.TimeFormatAPI),
	}
}
