package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paygate-next/internal/constants"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const paymentCounterTTL = 24 * time.Hour

// PaymentCounterStore 支付域跨进程计数存储：轮询指针与当日累计金额
// 计数键不参与缓存前缀，保持固定格式便于运维排查
type PaymentCounterStore interface {
	GetRotationPointer(ctx context.Context, channelID uint) (uint, bool, error)
	SetRotationPointer(ctx context.Context, channelID uint, accountID uint) error
	GetChannelDailyAmount(ctx context.Context, channelID uint, date string) (decimal.Decimal, error)
	AddChannelDailyAmount(ctx context.Context, channelID uint, date string, amount decimal.Decimal) error
	GetAccountDailyAmount(ctx context.Context, accountID uint, date string) (decimal.Decimal, error)
	AddAccountDailyAmount(ctx context.Context, accountID uint, date string, amount decimal.Decimal) error
}

// NewPaymentCounterStore 根据 Redis 可用性选择实现
func NewPaymentCounterStore() PaymentCounterStore {
	if Enabled() {
		return &RedisPaymentCounterStore{client: Client()}
	}
	return NewMemoryPaymentCounterStore()
}

// RedisPaymentCounterStore Redis 实现
type RedisPaymentCounterStore struct {
	client *redis.Client
}

var incrDailyAmountScript = redis.NewScript(`
local total = redis.call("INCRBYFLOAT", KEYS[1], ARGV[1])
redis.call("EXPIRE", KEYS[1], ARGV[2])
return total
`)

func rotationPointerKey(channelID uint) string {
	return fmt.Sprintf(constants.RedisKeyAccountSort, channelID)
}

func channelDailyKey(channelID uint, date string) string {
	return fmt.Sprintf(constants.RedisKeyDailyLimitChannel, channelID, date)
}

func accountDailyKey(accountID uint, date string) string {
	return fmt.Sprintf(constants.RedisKeyDailyLimitAccount, accountID, date)
}

// GetRotationPointer 读取顺序轮询的上一次使用账户
func (s *RedisPaymentCounterStore) GetRotationPointer(ctx context.Context, channelID uint) (uint, bool, error) {
	val, err := s.client.Get(ctx, rotationPointerKey(channelID)).Uint64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint(val), true, nil
}

// SetRotationPointer 记录本次使用的账户
func (s *RedisPaymentCounterStore) SetRotationPointer(ctx context.Context, channelID uint, accountID uint) error {
	return s.client.Set(ctx, rotationPointerKey(channelID), uint64(accountID), paymentCounterTTL).Err()
}

// GetChannelDailyAmount 读取通道当日累计金额
func (s *RedisPaymentCounterStore) GetChannelDailyAmount(ctx context.Context, channelID uint, date string) (decimal.Decimal, error) {
	return s.getAmount(ctx, channelDailyKey(channelID, date))
}

// AddChannelDailyAmount 累加通道当日金额并刷新 TTL
func (s *RedisPaymentCounterStore) AddChannelDailyAmount(ctx context.Context, channelID uint, date string, amount decimal.Decimal) error {
	return s.addAmount(ctx, channelDailyKey(channelID, date), amount)
}

// GetAccountDailyAmount 读取账户当日累计金额
func (s *RedisPaymentCounterStore) GetAccountDailyAmount(ctx context.Context, accountID uint, date string) (decimal.Decimal, error) {
	return s.getAmount(ctx, accountDailyKey(accountID, date))
}

// AddAccountDailyAmount 累加账户当日金额并刷新 TTL
func (s *RedisPaymentCounterStore) AddAccountDailyAmount(ctx context.Context, accountID uint, date string, amount decimal.Decimal) error {
	return s.addAmount(ctx, accountDailyKey(accountID, date), amount)
}

func (s *RedisPaymentCounterStore) getAmount(ctx context.Context, key string) (decimal.Decimal, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("解析计数值失败: %w", err)
	}
	return amount, nil
}

func (s *RedisPaymentCounterStore) addAmount(ctx context.Context, key string, amount decimal.Decimal) error {
	ttlSeconds := int(paymentCounterTTL / time.Second)
	return incrDailyAmountScript.Run(ctx, s.client, []string{key}, amount.String(), ttlSeconds).Err()
}

// MemoryPaymentCounterStore 进程内实现，Redis 未启用时使用（含测试）
type MemoryPaymentCounterStore struct {
	mu       sync.Mutex
	pointers map[uint]memoryEntry
	amounts  map[string]memoryAmountEntry
}

type memoryEntry struct {
	accountID uint
	expiresAt time.Time
}

type memoryAmountEntry struct {
	amount    decimal.Decimal
	expiresAt time.Time
}

// NewMemoryPaymentCounterStore 创建进程内计数存储
func NewMemoryPaymentCounterStore() *MemoryPaymentCounterStore {
	return &MemoryPaymentCounterStore{
		pointers: make(map[uint]memoryEntry),
		amounts:  make(map[string]memoryAmountEntry),
	}
}

// GetRotationPointer 读取顺序轮询指针
func (s *MemoryPaymentCounterStore) GetRotationPointer(ctx context.Context, channelID uint) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pointers[channelID]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.pointers, channelID)
		return 0, false, nil
	}
	return entry.accountID, true, nil
}

// SetRotationPointer 记录轮询指针
func (s *MemoryPaymentCounterStore) SetRotationPointer(ctx context.Context, channelID uint, accountID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[channelID] = memoryEntry{accountID: accountID, expiresAt: time.Now().Add(paymentCounterTTL)}
	return nil
}

// GetChannelDailyAmount 读取通道当日累计金额
func (s *MemoryPaymentCounterStore) GetChannelDailyAmount(ctx context.Context, channelID uint, date string) (decimal.Decimal, error) {
	return s.getAmount(channelDailyKey(channelID, date)), nil
}

// AddChannelDailyAmount 累加通道当日金额
func (s *MemoryPaymentCounterStore) AddChannelDailyAmount(ctx context.Context, channelID uint, date string, amount decimal.Decimal) error {
	s.addAmount(channelDailyKey(channelID, date), amount)
	return nil
}

// GetAccountDailyAmount 读取账户当日累计金额
func (s *MemoryPaymentCounterStore) GetAccountDailyAmount(ctx context.Context, accountID uint, date string) (decimal.Decimal, error) {
	return s.getAmount(accountDailyKey(accountID, date)), nil
}

// AddAccountDailyAmount 累加账户当日金额
func (s *MemoryPaymentCounterStore) AddAccountDailyAmount(ctx context.Context, accountID uint, date string, amount decimal.Decimal) error {
	s.addAmount(accountDailyKey(accountID, date), amount)
	return nil
}

func (s *MemoryPaymentCounterStore) getAmount(key string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.amounts[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.amounts, key)
		return decimal.Zero
	}
	return entry.amount
}

func (s *MemoryPaymentCounterStore) addAmount(key string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.amounts[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = memoryAmountEntry{amount: decimal.Zero}
	}
	entry.amount = entry.amount.Add(amount)
	entry.expiresAt = time.Now().Add(paymentCounterTTL)
	s.amounts[key] = entry
}
