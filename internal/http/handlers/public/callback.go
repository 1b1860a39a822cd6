package public

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/payment"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

const callbackLogValueLimit = 512

// GatewayCallback 上游异步回调入口：驱动验签通过后确认支付。
// 应答体固定 success/fail，上游依据应答决定是否重投。
func (h *Handler) GatewayCallback(c *gin.Context) {
	gateway := strings.ToLower(strings.TrimSpace(c.Param("gateway")))
	accountID, err := strconv.ParseUint(c.Param("accountID"), 10, 64)
	if err != nil || accountID == 0 {
		requestLog(c).Warnw("gateway_callback_bad_account", "gateway", gateway, "raw", c.Param("accountID"))
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}

	requestLog(c).Infow("gateway_callback_received",
		"gateway", gateway,
		"account_id", accountID,
		"method", c.Request.Method,
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)

	account, err := h.ChannelService.GetAccountByID(uint(accountID))
	if err != nil {
		requestLog(c).Warnw("gateway_callback_account_missing", "gateway", gateway, "account_id", accountID, "error", err)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}
	driver, err := h.PaymentRegistry.Get(gateway)
	if err != nil {
		requestLog(c).Warnw("gateway_callback_driver_missing", "gateway", gateway, "error", err)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}

	// 报文体与表单都可能承载回调，先留存原始报文再解析表单
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestLog(c).Warnw("gateway_callback_read_body_failed", "gateway", gateway, "error", err)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	form, err := parseCallbackForm(c)
	if err != nil {
		requestLog(c).Warnw("gateway_callback_parse_form_failed", "gateway", gateway, "error", err)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}
	params := make(map[string]string, len(form))
	for key := range form {
		params[key] = getFirstValue(form, key)
	}
	headers := make(map[string]string, len(c.Request.Header))
	for key := range c.Request.Header {
		headers[key] = c.GetHeader(key)
	}

	result, err := driver.Verify(c.Request.Context(), payment.VerifyInput{
		Config:  account.Config,
		Params:  params,
		Headers: headers,
		Body:    body,
	})
	if err != nil || result == nil || !result.Valid {
		requestLog(c).Warnw("gateway_callback_verify_rejected",
			"gateway", gateway,
			"account_id", accountID,
			"error", err,
			"raw_form", callbackRawFormForLog(form),
			"raw_body", callbackRawBodyForLog(body),
		)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}

	order, err := h.OrderService.MarkPaid(c.Request.Context(), service.MarkPaidInput{
		TradeNo:        result.TradeNo,
		APITradeNo:     result.APITradeNo,
		BillTradeNo:    result.BillTradeNo,
		MchTradeNo:     result.MchTradeNo,
		PaymentTime:    result.PaymentTime,
		BuyerPayAmount: result.BuyerPayAmount,
		Buyer: service.MarkPaidBuyerPatch{
			BuyerOpenID: result.Buyer.BuyerOpenID,
			Mobile:      result.Buyer.Mobile,
		},
		Async: true,
	})
	if err != nil {
		requestLog(c).Errorw("gateway_callback_mark_paid_failed",
			"gateway", gateway,
			"trade_no", result.TradeNo,
			"error", err,
		)
		c.String(http.StatusOK, constants.CallbackBodyFail)
		return
	}

	requestLog(c).Infow("gateway_callback_paid",
		"gateway", gateway,
		"trade_no", order.TradeNo,
		"api_trade_no", order.APITradeNo,
		"trade_state", order.TradeState,
	)
	c.String(http.StatusOK, constants.CallbackBodySuccess)
}

// PaymentReturn 同步跳转桥：把加签通知参数并入商户 return_url 后重定向
func (h *Handler) PaymentReturn(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("tradeNo"))
	order, err := h.OrderService.GetOrder(tradeNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	target, err := h.NotifyService.BuildReturnURL(order)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if target == "" {
		// 商户未配置同步跳转地址，直接展示交易状态
		c.String(http.StatusOK, "%s %s", order.TradeNo, order.TradeState)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func parseCallbackForm(c *gin.Context) (map[string][]string, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	if len(c.Request.PostForm) > 0 {
		return c.Request.PostForm, nil
	}
	return c.Request.Form, nil
}

func getFirstValue(form map[string][]string, key string) string {
	if values, ok := form[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

func truncateCallbackLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= callbackLogValueLimit {
		return raw
	}
	return raw[:callbackLogValueLimit] + "...(truncated)"
}

func callbackRawBodyForLog(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return truncateCallbackLogValue(string(body))
}

func callbackRawFormForLog(form map[string][]string) map[string]interface{} {
	result := make(map[string]interface{}, len(form))
	for key, values := range form {
		if len(values) == 0 {
			result[key] = ""
			continue
		}
		if len(values) == 1 {
			result[key] = truncateCallbackLogValue(values[0])
			continue
		}
		copied := make([]string, 0, len(values))
		for _, value := range values {
			copied = append(copied, truncateCallbackLogValue(value))
		}
		result[key] = copied
	}
	return result
}
