package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
)

// ErrDisabled 队列未启用时的入队错误。
// 结算与通知都是资金链路，未启用队列必须显式失败而不是静默丢弃。
var ErrDisabled = errors.New("队列未启用")

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueOrderSettle 推送订单结算任务，delay 为结算周期换算的延迟
func (c *Client) EnqueueOrderSettle(payload OrderSettlePayload, delay time.Duration) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if delay < 0 {
		delay = 0
	}
	task, err := NewOrderSettleTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{asynq.Queue(c.defaultQueue), asynq.ProcessIn(delay)}
	_, err = c.client.Enqueue(task, options...)
	return err
}

// EnqueueOrderNotify 立即推送订单通知任务
func (c *Client) EnqueueOrderNotify(payload OrderNotifyPayload) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	task, err := NewOrderNotifyTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{asynq.Queue(c.defaultQueue)}
	_, err = c.client.Enqueue(task, options...)
	return err
}

// EnqueueOrderNotifyAt 定时推送订单通知任务（重试退避由调用方计算）
func (c *Client) EnqueueOrderNotifyAt(payload OrderNotifyPayload, processAt time.Time) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	task, err := NewOrderNotifyTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{asynq.Queue(c.defaultQueue), asynq.ProcessAt(processAt)}
	_, err = c.client.Enqueue(task, options...)
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
