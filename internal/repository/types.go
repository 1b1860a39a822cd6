package repository

import "time"

// MerchantListFilter 查询商户列表的过滤条件
type MerchantListFilter struct {
	Page           int
	PageSize       int
	Keyword        string
	MerchantNumber string
	Status         *bool
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	ChannelID   uint
	AccountID   uint
	TradeNo     string
	OutTradeNo  string
	APITradeNo  string
	PaymentType string
	TradeState  string
	SettleState string
	NotifyState string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	PaymentFrom *time.Time
	PaymentTo   *time.Time
}

// RefundListFilter 查询退款列表的过滤条件
type RefundListFilter struct {
	Page         int
	PageSize     int
	MerchantID   uint
	TradeNo      string
	OutBizNo     string
	InitiateType string
	Status       string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// WithdrawalListFilter 查询提现列表的过滤条件
type WithdrawalListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// WalletRecordListFilter 查询钱包流水的过滤条件
type WalletRecordListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Type        string
	TradeNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ChannelListFilter 查询支付通道列表的过滤条件
type ChannelListFilter struct {
	Page        int
	PageSize    int
	Keyword     string
	PaymentType string
	Gateway     string
	Status      *bool
}

// NotificationListFilter 查询通知记录列表的过滤条件
type NotificationListFilter struct {
	Page     int
	PageSize int
	TradeNo  string
	Status   *bool
}

// BlacklistListFilter 查询黑名单列表的过滤条件
type BlacklistListFilter struct {
	Page       int
	PageSize   int
	EntityType string
	Keyword    string
	Origin     string
}

// RiskLogListFilter 查询风控日志列表的过滤条件
type RiskLogListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Type        *int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AuthzAuditLogListFilter 查询权限审计日志列表的过滤条件
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	Object          string
	Method          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
