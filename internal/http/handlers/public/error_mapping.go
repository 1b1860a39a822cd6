package public

import (
	"errors"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   string
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode string, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// merchantAuthErrorRules 商户定位与验签阶段的错误
var merchantAuthErrorRules = []mappedHandlerError{
	{target: service.ErrPayloadInvalid, code: response.CodeInvalidRequest, key: "error.payload_invalid"},
	{target: service.ErrMerchantNotFound, code: response.CodeNotFound, key: "error.merchant_not_found"},
	{target: service.ErrMerchantDisabled, code: response.CodeUnauthorized, key: "error.merchant_disabled"},
	{target: service.ErrEncryptionNotFound, code: response.CodeUnauthorized, key: "error.signature_invalid"},
	{target: service.ErrSignTypeNotAllowed, code: response.CodeUnauthorized, key: "error.sign_type_not_allowed"},
	{target: service.ErrSignatureInvalid, code: response.CodeUnauthorized, key: "error.signature_invalid"},
	{target: service.ErrMerchantCompetenceDenied, code: response.CodeUnauthorized, key: "error.competence_denied"},
}

// payCreateErrorRules 统一下单阶段的错误
var payCreateErrorRules = []mappedHandlerError{
	{target: service.ErrOrderAmountInvalid, code: response.CodeInvalidRequest, key: "error.amount_invalid"},
	{target: service.ErrOrderDuplicatePaid, code: response.CodeConflict, key: "error.order_duplicate_paid"},
	{target: service.ErrOrderDuplicateClosed, code: response.CodeConflict, key: "error.order_duplicate_closed"},
	{target: service.ErrOrderDuplicateMismatch, code: response.CodeConflict, key: "error.order_duplicate_mismatch"},
	{target: service.ErrRiskBlocked, code: response.CodeRiskBlocked, key: "error.risk_blocked"},
	{target: service.ErrNoAvailableChannel, code: response.CodeNoAvailableChannel, key: "error.no_available_channel"},
	{target: service.ErrNoAvailableAccount, code: response.CodeNoAvailableAccount, key: "error.no_available_account"},
	{target: service.ErrChannelNotFound, code: response.CodeNoAvailableChannel, key: "error.no_available_channel"},
}

// orderLookupErrorRules 订单查询/关闭阶段的错误
var orderLookupErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderStateInvalid, code: response.CodeConflict, key: "error.order_state_invalid"},
}

// refundErrorRules 商户退款阶段的错误
var refundErrorRules = []mappedHandlerError{
	{target: service.ErrRefundNotFound, code: response.CodeNotFound, key: "error.refund_not_found"},
	{target: service.ErrRefundAmountInvalid, code: response.CodeInvalidRequest, key: "error.amount_invalid"},
	{target: service.ErrRefundStateInvalid, code: response.CodeConflict, key: "error.refund_state_invalid"},
	{target: service.ErrRefundExceedsRemaining, code: response.CodeConflict, key: "error.refund_exceeds_remaining"},
	{target: service.ErrRefundMismatch, code: response.CodeConflict, key: "error.refund_mismatch"},
	{target: service.ErrRefundRequiresAPITrade, code: response.CodeInvalidRequest, key: "error.refund_requires_api_trade"},
	{target: service.ErrWalletInsufficientAvailable, code: response.CodeInsufficientFunds, key: "error.insufficient_funds"},
	{target: service.ErrWalletInsufficientUnavailable, code: response.CodeInsufficientFunds, key: "error.insufficient_funds"},
	{target: service.ErrGatewayDriverNotFound, code: response.CodeGatewayError, key: "error.gateway_error"},
	{target: service.ErrGatewayFailed, code: response.CodeGatewayError, key: "error.gateway_error"},
}

// withdrawalErrorRules 商户提现申请阶段的错误
var withdrawalErrorRules = []mappedHandlerError{
	{target: service.ErrWithdrawalAmountInvalid, code: response.CodeInvalidRequest, key: "error.amount_invalid"},
	{target: service.ErrWalletInsufficientAvailable, code: response.CodeInsufficientFunds, key: "error.insufficient_funds"},
	{target: service.ErrWalletInvalidAmount, code: response.CodeInvalidRequest, key: "error.amount_invalid"},
}
