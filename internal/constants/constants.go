package constants

// 订单交易状态常量
const (
	TradeStateWaitPay  = "WAIT_PAY"
	TradeStateSuccess  = "SUCCESS"
	TradeStateRefund   = "REFUND"
	TradeStateFinished = "FINISHED"
	TradeStateFrozen   = "FROZEN"
	TradeStateClosed   = "CLOSED"
)

// 订单结算状态常量
const (
	SettleStatePending    = "PENDING"
	SettleStateProcessing = "PROCESSING"
	SettleStateCompleted  = "COMPLETED"
	SettleStateFailed     = "FAILED"
)

// 订单通知状态常量
const (
	NotifyStateWaiting = "WAITING"
	NotifyStateSuccess = "SUCCESS"
	NotifyStateFailed  = "FAILED"
)

// 退款 / 提现状态常量
const (
	BizStatusPending    = "PENDING"
	BizStatusProcessing = "PROCESSING"
	BizStatusCompleted  = "COMPLETED"
	BizStatusFailed     = "FAILED"
	BizStatusRejected   = "REJECTED"
	BizStatusCanceled   = "CANCELED"
)

// 退款发起方常量
const (
	RefundInitiateAdmin    = "admin"
	RefundInitiateAPI      = "api"
	RefundInitiateMerchant = "merchant"
	RefundInitiateSystem   = "system"
)

// 支付方式常量（对外枚举字符串）
const (
	PaymentTypeAlipay    = "Alipay"
	PaymentTypeWechatPay = "WechatPay"
	PaymentTypeBank      = "Bank"
	PaymentTypeUnionPay  = "UnionPay"
	PaymentTypeQQWallet  = "QQWallet"
	PaymentTypeJDPay     = "JDPay"
	PaymentTypePayPal    = "PayPal"
	PaymentTypeNone      = "None"
)

// 上游驱动标识常量
const (
	GatewayAlipay    = "alipay"
	GatewayWechatPay = "wechatpay"
	GatewayEpay      = "epay"
	GatewayPayPal    = "paypal"
)

// 子账户轮询模式常量
const (
	RollModeSequential = 0
	RollModeRandom     = 1
	RollModeWeighted   = 2
	RollModeFirst      = 3
)

// 结算周期常量（整数 ↔ 周期语义）
const (
	SettleCycleInstant = 0
	SettleCycleD0      = 1
	SettleCycleD1      = 2
	SettleCycleD2      = 3
	SettleCycleT0      = 4
	SettleCycleT1      = 5
	SettleCycleT2      = 6
	SettleCycleD3      = 7
	SettleCycleD7      = 8
	SettleCycleD14     = 9
	SettleCycleD30     = 10
	SettleCycleT3      = 11
	SettleCycleT7      = 12
	SettleCycleT14     = 13
	SettleCycleT30     = 14
	SettleCycleSwallow = 15
)

// 钱包变动类型常量
const (
	WalletChangeOrderIncome      = "ORDER_INCOME"
	WalletChangeOrderSettle      = "ORDER_SETTLE"
	WalletChangeOrderRefund      = "ORDER_REFUND"
	WalletChangeRefundFee        = "REFUND_FEE"
	WalletChangeWithdrawal       = "WITHDRAWAL"
	WalletChangeWithdrawalReturn = "WITHDRAWAL_RETURN"
	WalletChangeSettleAccount    = "SETTLE_ACCOUNT"
	WalletChangeAdminAdjust      = "ADMIN_ADJUST"
)

// 商户加密模式常量
const (
	EncryptionModeOpen     = "open"
	EncryptionModeOnlyXXH  = "only_xxh"
	EncryptionModeOnlySHA3 = "only_sha3"
	EncryptionModeOnlySM3  = "only_sm3"
	EncryptionModeOnlyRSA2 = "only_rsa2"
)

// 签名算法常量
const (
	SignTypeXXH  = "xxh"
	SignTypeSHA3 = "sha3"
	SignTypeSM3  = "sm3"
	SignTypeRSA2 = "rsa2"
)

// 商户能力常量
const (
	CompetencePay      = "pay"
	CompetenceRefund   = "refund"
	CompetenceWithdraw = "withdraw"
)

// 黑名单实体类型常量
const (
	BlacklistTypeUserID            = "USER_ID"
	BlacklistTypeBankCard          = "BANK_CARD"
	BlacklistTypeIDCard            = "ID_CARD"
	BlacklistTypeMobile            = "MOBILE"
	BlacklistTypeIPAddress         = "IP_ADDRESS"
	BlacklistTypeDeviceFingerprint = "DEVICE_FINGERPRINT"
)

// 黑名单来源常量
const (
	BlacklistOriginManualReview   = "MANUAL_REVIEW"
	BlacklistOriginAutoDetection  = "AUTO_DETECTION"
	BlacklistOriginThirdParty     = "THIRD_PARTY"
	BlacklistOriginSystemAlert    = "SYSTEM_ALERT"
	BlacklistOriginMerchantReport = "MERCHANT_REPORT"
)

// 风控日志类型常量
const (
	RiskLogTypeBlacklist        = 0
	RiskLogTypeSubjectKeyword   = 1
	RiskLogTypeOrderSuccessRate = 2
	RiskLogTypeDailyLimit       = 3
)

// 买家证件类型常量
const (
	CertTypeIdentityCard    = "IDENTITY_CARD"
	CertTypePassport        = "PASSPORT"
	CertTypeHKMacaoPass     = "HK_MACAO_PASS"
	CertTypeTaiwanPass      = "TAIWAN_PASS"
	CertTypeMilitaryID      = "MILITARY_ID"
	CertTypeResidencePermit = "RESIDENCE_PERMIT"
)

// 手续费承担方常量
const (
	FeeBearerMerchant = "merchant"
	FeeBearerPlatform = "platform"
)

// 回调应答常量
const (
	CallbackBodySuccess = "success"
	CallbackBodyFail    = "fail"
)

// 通知重试常量
const (
	NotifyMaxRetry = 8
)

// 队列常量
const (
	QueueDefault    = "default"
	TaskOrderSettle = "order:settle"
	TaskOrderNotify = "order:notify"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "pg"
)

// 轮询与日限额 Redis 键常量
const (
	RedisKeyAccountSort       = "PaymentChannelAccountSort:%d"
	RedisKeyDailyLimitChannel = "PaymentDailyLimit:channel:%d:%s"
	RedisKeyDailyLimitAccount = "PaymentDailyLimit:account:%d:%s"
)

// 时间格式常量
const (
	TimeFormatAPI        = "2006-01-02T15:04:05Z07:00"
	TimeFormatAdmin      = "2006-01-02 15:04:05"
	TimeFormatHourMinute = "15:04"
	TimeFormatDate       = "2006-01-02"
)

// 站点语言常量
const (
	LocaleZhCN = "zh-CN"
	LocaleEnUS = "en-US"
)

// 支持的站点语言顺序（含回退顺序）
var SupportedLocales = []string{LocaleZhCN, LocaleEnUS}
