package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/payment/paypal"
)

// paypalDriver PayPal 渠道适配。结算货币由账户配置决定，
// 回调金额不回写订单，以下单时的人民币金额为准。
type paypalDriver struct {
	timeout time.Duration
}

func (d *paypalDriver) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	cfg, err := paypal.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := paypal.CreateOrder(ctx, cfg, paypal.CreateInput{
		TradeNo:     input.Order.TradeNo,
		Amount:      input.Order.BuyerPayAmount.String(),
		Description: input.Subject,
		ReturnURL:   input.ReturnURL,
		CancelURL:   input.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Type: SubmitTypeRedirect, URL: result.ApprovalURL}, nil
}

func (d *paypalDriver) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	cfg, err := paypal.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	captureID := strings.TrimSpace(input.Order.BillTradeNo)
	if captureID == "" {
		return nil, fmt.Errorf("paypal 订单缺少捕获号, trade_no=%s", input.Order.TradeNo)
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := paypal.RefundCapture(ctx, cfg, paypal.RefundInput{
		CaptureID: captureID,
		Amount:    input.Refund.Amount.String(),
		InvoiceID: input.Refund.ID,
		Note:      input.Refund.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		State:       result.Completed,
		APIRefundNo: result.RefundID,
		Message:     result.Status,
	}, nil
}

func (d *paypalDriver) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	cfg, err := paypal.ParseConfig(input.Config)
	if err != nil {
		return nil, err
	}
	event, err := paypal.ParseWebhookEvent(input.Body)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	if err := paypal.VerifyWebhookSignature(ctx, cfg, headerFromParams(input.Headers), event.Raw); err != nil {
		return nil, err
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		// 买家批准后在此捕获，捕获完成才算支付成功。
		return d.captureApproved(ctx, cfg, event)
	case "PAYMENT.CAPTURE.COMPLETED":
		return &VerifyResult{
			Valid:       true,
			TradeNo:     event.InvoiceID(),
			APITradeNo:  event.RelatedOrderID(),
			BillTradeNo: event.CaptureID(),
			PaymentTime: event.PaidAt(),
			Buyer:       VerifyBuyer{BuyerOpenID: event.PayerEmail()},
		}, nil
	default:
		return &VerifyResult{
			Valid:   false,
			TradeNo: event.InvoiceID(),
			Message: fmt.Sprintf("event_type %s", event.EventType),
		}, nil
	}
}

func (d *paypalDriver) captureApproved(ctx context.Context, cfg *paypal.Config, event *paypal.WebhookEvent) (*VerifyResult, error) {
	orderID := event.RelatedOrderID()
	if orderID == "" {
		return nil, fmt.Errorf("paypal 事件缺少订单号, event=%s", event.ID)
	}
	capture, err := paypal.CaptureOrder(ctx, cfg, orderID)
	if err != nil {
		return nil, err
	}
	result := &VerifyResult{
		Valid:       strings.EqualFold(capture.Status, "COMPLETED"),
		TradeNo:     firstNonEmpty(capture.InvoiceID, event.InvoiceID()),
		APITradeNo:  firstNonEmpty(capture.OrderID, orderID),
		BillTradeNo: capture.CaptureID,
		PaymentTime: capture.PaidAt,
		Buyer:       VerifyBuyer{BuyerOpenID: event.PayerEmail()},
	}
	if !result.Valid {
		result.Message = fmt.Sprintf("capture status %s", capture.Status)
	}
	return result, nil
}
