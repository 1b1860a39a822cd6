package public

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// MerchantBalance 商户余额快照
func (h *Handler) MerchantBalance(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	wallet, err := h.WalletService.GetWallet(req.Merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"merchant_number":     req.Merchant.MerchantNumber,
		"available_balance":   wallet.AvailableBalance,
		"unavailable_balance": wallet.UnavailableBalance,
		"prepaid":             wallet.Prepaid,
		"margin":              wallet.Margin,
		"updated_at":          wallet.UpdatedAt.Format(constants.TimeFormatAPI),
	})
}

// ApplyWithdrawal 商户申请提现，payee 为收款人信息 JSON 对象
func (h *Handler) ApplyWithdrawal(c *gin.Context) {
	req, err := h.bindMerchantRequest(c)
	if err != nil {
		respondMerchantAuthError(c, err)
		return
	}
	if err := h.MerchantService.RequireCompetence(req.Merchant, constants.CompetenceWithdraw); err != nil {
		respondMerchantAuthError(c, err)
		return
	}

	amount, err := requirePayloadAmount(req.Params, "amount")
	if err != nil {
		respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		return
	}
	payee, err := parsePayeeInfo(req.Params)
	if err != nil {
		respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		return
	}

	record, err := h.WithdrawalService.ApplyWithdrawal(req.Merchant.ID, payee, amount)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, apiWithdrawalView(record))
}

// parsePayeeInfo 解析收款人信息，缺失时拒绝受理
func parsePayeeInfo(params map[string]string) (models.JSON, error) {
	raw := strings.TrimSpace(params["payee"])
	if raw == "" {
		return nil, fmt.Errorf("%w: 缺少 payee", service.ErrPayloadInvalid)
	}
	var payee models.JSON
	if err := json.Unmarshal([]byte(raw), &payee); err != nil {
		return nil, fmt.Errorf("%w: payee 不是合法 JSON 对象", service.ErrPayloadInvalid)
	}
	if len(payee) == 0 {
		return nil, fmt.Errorf("%w: payee 不能为空", service.ErrPayloadInvalid)
	}
	return payee, nil
}

// apiWithdrawalView 商户接口提现单视图
func apiWithdrawalView(record *models.MerchantWithdrawalRecord) gin.H {
	return gin.H{
		"withdrawal_id":    record.ID,
		"amount":           record.Amount,
		"prepaid_deducted": record.PrepaidDeducted,
		"received_amount":  record.ReceivedAmount,
		"fee":              record.Fee,
		"status":           record.Status,
		"created_at":       record.CreatedAt.Format(constants.TimeFormatAPI),
	}
}
