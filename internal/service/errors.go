package service

import "errors"

// 商户与签名
var (
	ErrMerchantNotFound         = errors.New("商户不存在")
	ErrMerchantDisabled         = errors.New("商户已被禁用")
	ErrMerchantNumberExists     = errors.New("商户号已存在")
	ErrMerchantNumberGenerate   = errors.New("商户号生成失败")
	ErrMerchantCompetenceDenied = errors.New("商户无此业务权限")
	ErrEncryptionNotFound       = errors.New("商户签名配置不存在")
	ErrSignTypeNotAllowed       = errors.New("商户不允许使用该签名方式")
	ErrSignatureInvalid         = errors.New("签名验证失败")
	ErrPayloadInvalid           = errors.New("请求载荷解析失败")
)

// 订单
var (
	ErrOrderNotFound          = errors.New("订单不存在")
	ErrOrderDuplicatePaid     = errors.New("订单已支付，请勿重复下单")
	ErrOrderDuplicateClosed   = errors.New("原订单已关闭，请更换商户订单号")
	ErrOrderDuplicateMismatch = errors.New("商户订单号已存在且参数不一致")
	ErrOrderStateInvalid      = errors.New("订单状态不允许此操作")
	ErrOrderAmountInvalid     = errors.New("订单金额无效")
	ErrTradeNoGenerateFailed  = errors.New("平台单号生成失败")
)

// 钱包
var (
	ErrWalletNotFound                = errors.New("商户钱包不存在")
	ErrWalletInvalidAmount           = errors.New("钱包变动金额无效")
	ErrWalletInsufficientAvailable   = errors.New("可用余额不足")
	ErrWalletInsufficientUnavailable = errors.New("不可用余额不足")
	ErrWalletInsufficientPrepaid     = errors.New("预付余额不足")
)

// 通道选择
var (
	ErrChannelNotFound    = errors.New("支付通道不存在")
	ErrChannelCodeExists  = errors.New("通道编码已存在")
	ErrAccountNotFound    = errors.New("收款账户不存在")
	ErrNoAvailableChannel = errors.New("暂无可用支付通道")
	ErrNoAvailableAccount = errors.New("暂无可用收款账户")
)

// 风控
var (
	ErrRiskBlocked                = errors.New("交易触发风控，已拦截")
	ErrBlacklistExists            = errors.New("黑名单条目已存在")
	ErrBlacklistNotFound          = errors.New("黑名单条目不存在")
	ErrBlacklistEntityInvalid     = errors.New("黑名单实体类型或来源无效")
	ErrRiskBuyerIdentifierMissing = errors.New("缺少买家标识")
)

// 退款
var (
	ErrRefundNotFound         = errors.New("退款单不存在")
	ErrRefundStateInvalid     = errors.New("订单状态不允许退款")
	ErrRefundExceedsRemaining = errors.New("退款金额超出可退余额")
	ErrRefundMismatch         = errors.New("退款请求与已有记录不一致")
	ErrRefundRequiresAPITrade = errors.New("原路退款缺少上游单号")
	ErrRefundAmountInvalid    = errors.New("退款金额无效")
)

// 提现
var (
	ErrWithdrawalNotFound      = errors.New("提现单不存在")
	ErrWithdrawalStateInvalid  = errors.New("提现单状态不允许此操作")
	ErrWithdrawalAmountInvalid = errors.New("提现金额无效")
)

// 上游网关
var (
	ErrGatewayDriverNotFound = errors.New("未注册的支付网关驱动")
	ErrGatewayFailed         = errors.New("上游支付网关异常")
	ErrCallbackInvalid       = errors.New("回调验签失败")
)

// 管理端鉴权
var (
	ErrInvalidCredentials   = errors.New("用户名或密码错误")
	ErrWeakPassword         = errors.New("密码强度不足")
	ErrCaptchaRequired      = errors.New("请先完成验证码")
	ErrCaptchaInvalid       = errors.New("验证码错误或已过期")
	ErrCaptchaConfigInvalid = errors.New("验证码配置无效")
	ErrAdminNotFound        = errors.New("管理员不存在")
)

// 队列
var (
	ErrQueueUnavailable = errors.New("异步队列不可用")
)
