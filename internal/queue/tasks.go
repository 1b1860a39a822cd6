package queue

import (
	"encoding/json"

	"github.com/paygate-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderSettle 订单结算任务
	TaskOrderSettle = constants.TaskOrderSettle
	// TaskOrderNotify 订单异步通知任务
	TaskOrderNotify = constants.TaskOrderNotify
)

// OrderSettlePayload 订单结算任务载荷
type OrderSettlePayload struct {
	TradeNo string `json:"trade_no"`
}

// OrderNotifyPayload 订单异步通知任务载荷
type OrderNotifyPayload struct {
	TradeNo string `json:"trade_no"`
}

// NewOrderSettleTask 创建订单结算任务
func NewOrderSettleTask(payload OrderSettlePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderSettle, body), nil
}

// NewOrderNotifyTask 创建订单异步通知任务
func NewOrderNotifyTask(payload OrderNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderNotify, body), nil
}
