package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/paygate-next/internal/payment/wechatpay"
)

// wechatpayDriver 微信官方渠道适配。
type wechatpayDriver struct {
	timeout time.Duration
}

func (d *wechatpayDriver) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	cfg, err := wechatpay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := wechatpay.CreatePayment(ctx, cfg, wechatpay.CreateInput{
		TradeNo:     input.Order.TradeNo,
		Amount:      input.Order.BuyerPayAmount.String(),
		Description: input.Subject,
		ClientIP:    buyerIP(input.Buyer),
		NotifyURL:   input.NotifyURL,
		RedirectURL: input.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	if result.QRCode != "" {
		return &SubmitResult{Type: SubmitTypeJSON, Data: map[string]string{"qr_code": result.QRCode}}, nil
	}
	return &SubmitResult{Type: SubmitTypeRedirect, URL: result.PayURL}, nil
}

func (d *wechatpayDriver) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	cfg, err := wechatpay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := wechatpay.Refund(ctx, cfg, wechatpay.RefundInput{
		TradeNo:      input.Order.TradeNo,
		OutRefundNo:  input.Refund.ID,
		RefundAmount: input.Refund.Amount.String(),
		TotalAmount:  input.Order.BuyerPayAmount.String(),
		Reason:       input.Refund.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		State:       result.Accepted,
		APIRefundNo: result.RefundID,
		Message:     result.Status,
	}, nil
}

func (d *wechatpayDriver) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	cfg, err := wechatpay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	notify, err := wechatpay.VerifyNotify(ctx, cfg, input.Headers, input.Body)
	if err != nil {
		return nil, err
	}
	result := &VerifyResult{
		Valid:       notify.Paid(),
		TradeNo:     notify.OutTradeNo,
		APITradeNo:  notify.TransactionID,
		PaymentTime: notify.SuccessTime,
		Buyer:       VerifyBuyer{BuyerOpenID: notify.PayerOpenID},
	}
	result.BuyerPayAmount = parseAmount(notify.Amount)
	if !result.Valid {
		result.Message = fmt.Sprintf("trade_state %s", notify.TradeState)
	}
	return result, nil
}
