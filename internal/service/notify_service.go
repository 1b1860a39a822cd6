package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/sign"

	"github.com/google/uuid"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	notifyRetryBaseDelay = time.Minute
	notifyResponseLimit  = 2048
)

// orderNotifyQueue 通知任务入队能力
type orderNotifyQueue interface {
	EnqueueOrderNotify(payload queue.OrderNotifyPayload) error
	EnqueueOrderNotifyAt(payload queue.OrderNotifyPayload, processAt time.Time) error
}

// NotifyService 异步通知引擎：构造 rsa2 签名参数、投递商户通知地址、
// 记录逐次投递流水并按指数退避自排下一次重试。
type NotifyService struct {
	cfg         *config.Config
	orderRepo   repository.OrderRepository
	queueClient orderNotifyQueue
	httpClient  *http.Client
}

// NewNotifyService 创建通知服务
func NewNotifyService(cfg *config.Config, orderRepo repository.OrderRepository, queueClient *queue.Client) *NotifyService {
	timeout := defaultNotifyTimeout
	if cfg != nil && cfg.Payment.NotifyTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Payment.NotifyTimeoutSeconds) * time.Second
	}
	return &NotifyService{
		cfg:         cfg,
		orderRepo:   orderRepo,
		queueClient: queueClient,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// BuildNotifyParams 构造通知参数并以平台私钥做 rsa2 签名
func (s *NotifyService) BuildNotifyParams(order *models.Order) (map[string]string, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	loc := s.cfg.Location()
	params := map[string]string{
		"trade_no":         order.TradeNo,
		"out_trade_no":     order.OutTradeNo,
		"bill_trade_no":    order.BillTradeNo,
		"total_amount":     order.TotalAmount.String(),
		"buyer_pay_amount": order.BuyerPayAmount.String(),
		"receipt_amount":   order.ReceiptAmount.String(),
		"attach":           order.Attach,
		"trade_state":      order.TradeState,
		"create_time":      order.CreateTime.In(loc).Format(time.RFC3339),
		"timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"sign_type":        sign.TypeRSA2,
	}
	if order.PaymentTime != nil {
		params["payment_time"] = order.PaymentTime.In(loc).Format(time.RFC3339)
	}
	_, signature, err := sign.Sign(sign.TypeRSA2, params, s.cfg.Payment.PlatformPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("平台签名失败: %w", err)
	}
	params["sign"] = signature
	return params, nil
}

// Dispatch 队列工作协程入口：投递一次通知并处理后续重试。
// 投递失败不向队列返回错误，重试节奏由本服务自排；返回错误仅代表系统故障。
func (s *NotifyService) Dispatch(ctx context.Context, tradeNo string) error {
	order, err := s.orderRepo.GetByTradeNo(strings.TrimSpace(tradeNo))
	if err != nil {
		return err
	}
	if order == nil {
		logger.Warnw("notify_order_not_found", "trade_no", tradeNo)
		return nil
	}
	if order.NotifyURL == "" || order.NotifyState == constants.NotifyStateSuccess {
		return nil
	}
	log := paymentLogger("trade_no", order.TradeNo, "merchant_id", order.MerchantID)

	params, err := s.BuildNotifyParams(order)
	if err != nil {
		return err
	}

	status, body, elapsed, deliverErr := s.deliver(ctx, order.NotifyURL, params)
	delivered := deliverErr == nil &&
		status == http.StatusOK &&
		strings.EqualFold(strings.TrimSpace(body), constants.CallbackBodySuccess)

	response := body
	if deliverErr != nil {
		response = deliverErr.Error()
	}
	record := &models.OrderNotification{
		ID:              uuid.NewString(),
		TradeNo:         order.TradeNo,
		Status:          delivered,
		HTTPStatus:      status,
		RequestDuration: elapsed,
		Response:        response,
		CreatedAt:       time.Now().In(s.cfg.Location()),
	}
	if err := s.orderRepo.CreateNotification(record); err != nil {
		log.Errorw("notify_record_create_failed", "error", err)
	}

	if delivered {
		order.NotifyState = constants.NotifyStateSuccess
		order.NotifyNextRetryTime = nil
		return s.orderRepo.Update(order)
	}
	log.Warnw("notify_delivery_unconfirmed",
		"http_status", status,
		"retry_count", order.NotifyRetryCount,
		"error", deliverErr)
	return s.scheduleRetry(order)
}

// ResendNotify 管理端手工重发：清零重试计数并立即入队
func (s *NotifyService) ResendNotify(tradeNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByTradeNo(strings.TrimSpace(tradeNo))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.NotifyURL == "" {
		return nil, fmt.Errorf("%w: 订单未配置通知地址", ErrPayloadInvalid)
	}
	order.NotifyRetryCount = 0
	order.NotifyState = constants.NotifyStateWaiting
	order.NotifyNextRetryTime = nil
	if err := s.orderRepo.Update(order); err != nil {
		return nil, err
	}
	if err := s.queueClient.EnqueueOrderNotify(queue.OrderNotifyPayload{TradeNo: order.TradeNo}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return order, nil
}

// BuildReturnURL 同步跳转地址：通知参数加签后并入 return_url 查询串
func (s *NotifyService) BuildReturnURL(order *models.Order) (string, error) {
	if order == nil {
		return "", ErrOrderNotFound
	}
	if strings.TrimSpace(order.ReturnURL) == "" {
		return "", nil
	}
	params, err := s.BuildNotifyParams(order)
	if err != nil {
		return "", err
	}
	return appendURLQuery(order.ReturnURL, params), nil
}

// ListNotifications 查询通知投递流水
func (s *NotifyService) ListNotifications(filter repository.NotificationListFilter) ([]models.OrderNotification, int64, error) {
	return s.orderRepo.ListNotifications(filter)
}

// deliver 表单投递一次，返回 HTTP 状态码、响应体与耗时毫秒
func (s *NotifyService) deliver(ctx context.Context, notifyURL string, params map[string]string) (int, string, int, error) {
	values := url.Values{}
	for key, value := range params {
		if value == "" {
			continue
		}
		values.Set(key, value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, strings.NewReader(values.Encode()))
	if err != nil {
		return 0, "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	elapsed := int(time.Since(started).Milliseconds())
	if err != nil {
		return 0, "", elapsed, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, notifyResponseLimit))
	if err != nil {
		return resp.StatusCode, "", elapsed, err
	}
	return resp.StatusCode, string(body), elapsed, nil
}

// scheduleRetry 投递失败后推进重试状态并定时入队，重试耗尽置 FAILED
func (s *NotifyService) scheduleRetry(order *models.Order) error {
	retried := order.NotifyRetryCount
	if retried >= constants.NotifyMaxRetry {
		order.NotifyState = constants.NotifyStateFailed
		order.NotifyNextRetryTime = nil
		return s.orderRepo.Update(order)
	}

	next := time.Now().In(s.cfg.Location()).Add(notifyRetryDelay(retried))
	order.NotifyRetryCount = retried + 1
	order.NotifyState = constants.NotifyStateWaiting
	order.NotifyNextRetryTime = &next
	if err := s.orderRepo.Update(order); err != nil {
		return err
	}
	if err := s.queueClient.EnqueueOrderNotifyAt(queue.OrderNotifyPayload{TradeNo: order.TradeNo}, next); err != nil {
		log := paymentLogger("trade_no", order.TradeNo)
		log.Errorw("notify_enqueue_retry_failed", "error", err)
		order.NotifyState = constants.NotifyStateFailed
		order.NotifyNextRetryTime = nil
		if updErr := s.orderRepo.Update(order); updErr != nil {
			log.Errorw("notify_state_writeback_failed", "error", updErr)
		}
	}
	return nil
}

// notifyRetryDelay 第 n 次重试前的等待：2^min(n,8) 分钟
func notifyRetryDelay(retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}
	if retried > constants.NotifyMaxRetry {
		retried = constants.NotifyMaxRetry
	}
	return time.Duration(1<<uint(retried)) * notifyRetryBaseDelay
}

// appendURLQuery 把通知参数并入地址查询串，商户原有查询参数保留
func appendURLQuery(rawURL string, params map[string]string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	for key, value := range params {
		if value == "" {
			continue
		}
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
