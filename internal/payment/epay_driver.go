package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/paygate-next/internal/payment/epay"
)

// epayDriver 易支付聚合渠道适配，网银、银联、QQ 钱包、京东支付走这里。
type epayDriver struct {
	timeout time.Duration
}

func (d *epayDriver) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	cfg, err := epay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := epay.CreatePayment(ctx, cfg, epay.CreateInput{
		TradeNo:     input.Order.TradeNo,
		Amount:      input.Order.BuyerPayAmount.String(),
		Subject:     input.Subject,
		PaymentType: input.Order.PaymentType,
		ClientIP:    firstNonEmpty(buyerIP(input.Buyer), "127.0.0.1"),
		NotifyURL:   input.NotifyURL,
		ReturnURL:   input.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	if result.QRCode != "" {
		return &SubmitResult{Type: SubmitTypeJSON, Data: map[string]string{"qr_code": result.QRCode}}, nil
	}
	return &SubmitResult{Type: SubmitTypeRedirect, URL: result.PayURL}, nil
}

func (d *epayDriver) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	cfg, err := epay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := epay.Refund(ctx, cfg, epay.RefundInput{
		TradeNo:    input.Order.TradeNo,
		APITradeNo: input.Order.APITradeNo,
		Amount:     input.Refund.Amount.String(),
	})
	if err != nil {
		return nil, err
	}
	// 易支付退款接口不返回独立退款单号。
	return &RefundResult{State: true, Message: result.Msg}, nil
}

func (d *epayDriver) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	cfg, err := epay.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	notify, err := epay.VerifyNotify(cfg, formFromParams(input.Params))
	if err != nil {
		return nil, err
	}
	result := &VerifyResult{
		Valid:      notify.Paid(),
		TradeNo:    notify.OutTradeNo,
		APITradeNo: notify.TradeNo,
		Buyer:      VerifyBuyer{BuyerOpenID: notify.Buyer},
	}
	result.BuyerPayAmount = parseAmount(notify.Money)
	if !result.Valid {
		result.Message = fmt.Sprintf("trade_status %s", notify.TradeStatus)
	}
	return result, nil
}
