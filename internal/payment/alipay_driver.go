package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/paygate-next/internal/payment/alipay"
)

// alipayDriver 支付宝官方渠道适配。
type alipayDriver struct {
	timeout time.Duration
}

func (d *alipayDriver) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	cfg, err := alipay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := alipay.CreatePayment(ctx, cfg, alipay.CreateInput{
		TradeNo:   input.Order.TradeNo,
		Amount:    input.Order.BuyerPayAmount.String(),
		Subject:   input.Subject,
		NotifyURL: input.NotifyURL,
		ReturnURL: input.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	if result.QRCode != "" {
		return &SubmitResult{Type: SubmitTypeJSON, Data: map[string]string{"qr_code": result.QRCode}}, nil
	}
	return &SubmitResult{Type: SubmitTypeRedirect, URL: result.PayURL}, nil
}

func (d *alipayDriver) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	cfg, err := alipay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := alipay.Refund(ctx, cfg, alipay.RefundInput{
		TradeNo:      input.Order.TradeNo,
		RefundAmount: input.Refund.Amount.String(),
		OutRequestNo: input.Refund.ID,
		Reason:       input.Refund.Reason,
	})
	if err != nil {
		return nil, err
	}
	// 同单重试 fund_change=N 也算受理成功，资金在首次调用已动。
	return &RefundResult{State: true, APIRefundNo: result.TradeNo}, nil
}

func (d *alipayDriver) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	cfg, err := alipay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	notify, err := alipay.VerifyNotify(cfg, formFromParams(input.Params))
	if err != nil {
		return nil, err
	}
	result := &VerifyResult{
		Valid:       notify.Paid(),
		TradeNo:     notify.OutTradeNo,
		APITradeNo:  notify.TradeNo,
		PaymentTime: notify.PaymentTime,
		Buyer:       VerifyBuyer{BuyerOpenID: firstNonEmpty(notify.BuyerID, notify.BuyerLogonID)},
	}
	result.BuyerPayAmount = parseAmount(firstNonEmpty(notify.BuyerPayAmount, notify.TotalAmount))
	if !result.Valid {
		result.Message = fmt.Sprintf("trade_status %s", notify.TradeStatus)
	}
	return result, nil
}
