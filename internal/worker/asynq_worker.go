package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/provider"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderSettle, c.handleOrderSettle)
	mux.HandleFunc(queue.TaskOrderNotify, c.handleOrderNotify)
}

func (c *Consumer) handleOrderSettle(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_settle_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderSettlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_settle_unmarshal_failed", "error", err)
		return err
	}
	if payload.TradeNo == "" {
		logger.Debugw("worker_order_settle_skip_invalid_payload", "trade_no", payload.TradeNo)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_settle_skip_order_service_nil", "trade_no", payload.TradeNo)
		return nil
	}
	if err := c.OrderService.SettleOrder(ctx, payload.TradeNo); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_order_settle_skip_order_not_found", "trade_no", payload.TradeNo)
			return nil
		case errors.Is(err, service.ErrOrderStateInvalid):
			logger.Debugw("worker_order_settle_skip_invalid_state", "trade_no", payload.TradeNo, "error", err)
			return nil
		default:
			logger.Warnw("worker_order_settle_failed", "trade_no", payload.TradeNo, "error", err)
			c.OrderService.MarkSettleFailed(payload.TradeNo)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleOrderNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.TradeNo == "" {
		logger.Debugw("worker_order_notify_skip_invalid_payload", "trade_no", payload.TradeNo)
		return nil
	}
	if c.NotifyService == nil {
		logger.Warnw("worker_order_notify_skip_notify_service_nil", "trade_no", payload.TradeNo)
		return nil
	}
	if err := c.NotifyService.Dispatch(ctx, payload.TradeNo); err != nil {
		logger.Warnw("worker_order_notify_failed", "trade_no", payload.TradeNo, "error", err)
		return err
	}
	return nil
}
