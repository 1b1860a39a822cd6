package i18n

var messages = map[string]map[string]string{
	LocaleZH: {
		"error.invalid_request":             "请求参数无效",
		"error.payload_invalid":             "请求载荷解析失败",
		"error.unauthorized":                "未授权访问",
		"error.forbidden":                   "无权执行此操作",
		"error.not_found":                   "资源不存在",
		"error.conflict":                    "资源状态冲突",
		"error.internal":                    "系统繁忙，请稍后再试",
		"error.token_invalid":               "登录凭证无效",
		"error.token_revoked":               "登录凭证已失效，请重新登录",
		"error.auth_header_missing":         "缺少认证头",
		"error.auth_header_invalid":         "认证头格式错误",
		"error.jwt_secret_missing":          "服务端未配置签名密钥",
		"error.admin_disabled":              "管理员账号已被禁用",
		"error.rate_limited":                "操作过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable":      "限流服务不可用",
		"error.captcha_invalid":             "验证码错误或已过期",
		"error.login_failed":                "用户名或密码错误",
		"error.password_weak":               "密码强度不足",
		"error.signature_invalid":           "签名验证失败",
		"error.sign_type_not_allowed":       "商户不允许使用该签名方式",
		"error.merchant_not_found":          "商户不存在",
		"error.merchant_disabled":           "商户已被禁用",
		"error.competence_denied":           "商户无此业务权限",
		"error.order_not_found":             "订单不存在",
		"error.order_duplicate_paid":        "订单已支付，请勿重复下单",
		"error.order_duplicate_closed":      "原订单已关闭，请更换商户订单号",
		"error.order_duplicate_mismatch":    "商户订单号已存在且参数不一致",
		"error.order_state_invalid":         "订单状态不允许此操作",
		"error.insufficient_funds":          "账户余额不足",
		"error.risk_blocked":                "交易触发风控，已拦截",
		"error.no_available_channel":        "暂无可用支付通道",
		"error.no_available_account":        "暂无可用收款账户",
		"error.gateway_error":               "上游支付网关异常",
		"error.refund_not_found":            "退款单不存在",
		"error.refund_exceeds_remaining":    "退款金额超出可退余额",
		"error.refund_state_invalid":        "订单状态不允许退款",
		"error.refund_mismatch":             "退款请求与已有记录不一致",
		"error.withdrawal_not_found":        "提现单不存在",
		"error.withdrawal_state_invalid":    "提现单状态不允许此操作",
		"error.amount_invalid":              "金额无效",
		"error.blacklist_exists":            "黑名单条目已存在",
		"error.blacklist_not_found":         "黑名单条目不存在",
		"error.merchant_number_exists":      "商户号已存在",
		"error.channel_code_exists":         "通道编码已存在",
		"error.channel_not_found":           "支付通道不存在",
		"error.account_not_found":           "收款账户不存在",
		"error.refund_requires_api_trade":   "原路退款缺少上游单号",
		"error.queue_unavailable":           "异步队列不可用，请稍后再试",
		"error.captcha_required":            "请先完成验证码",
		"error.captcha_unavailable":         "验证码服务未启用",
		"error.captcha_generate_failed":     "验证码生成失败",
		"error.captcha_config_invalid":      "验证码配置无效",
		"error.login_too_many":              "登录尝试过多，请 %d 秒后重试",
		"error.password_old_invalid":        "原密码错误",
		"error.admin_id_invalid":            "管理员身份缺失",
		"error.admin_id_type_invalid":       "管理员身份无效",
		"error.fetch_failed":                "查询失败",
		"error.save_failed":                 "保存失败",
		"error.blacklist_entity_invalid":    "黑名单对象类型或取值无效",
		"error.buyer_identifier_missing":    "缺少买家标识",
		"error.password_min_length":         "密码长度不能少于 %d 位",
		"error.password_require_upper":      "密码需包含大写字母",
		"error.password_require_lower":      "密码需包含小写字母",
		"error.password_require_number":     "密码需包含数字",
		"error.password_require_special":    "密码需包含特殊字符",
		"error.admin_username_invalid":      "管理员用户名不合法",
		"error.admin_username_exists":       "管理员用户名已存在",
		"error.admin_delete_self_forbidden": "不能删除当前登录的管理员",
		"error.admin_delete_protected":      "内置超级管理员不可删除",
		"error.admin_delete_last_forbidden": "至少保留一名管理员",
	},
	LocaleEN: {
		"error.invalid_request":             "invalid request",
		"error.payload_invalid":             "failed to decode request payload",
		"error.unauthorized":                "unauthorized",
		"error.forbidden":                   "forbidden",
		"error.not_found":                   "resource not found",
		"error.conflict":                    "resource state conflict",
		"error.internal":                    "internal error, please retry later",
		"error.token_invalid":               "invalid token",
		"error.token_revoked":               "token revoked, please login again",
		"error.auth_header_missing":         "missing authorization header",
		"error.auth_header_invalid":         "malformed authorization header",
		"error.jwt_secret_missing":          "server signing secret not configured",
		"error.admin_disabled":              "admin account disabled",
		"error.rate_limited":                "too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":      "rate limiter unavailable",
		"error.captcha_invalid":             "captcha invalid or expired",
		"error.login_failed":                "incorrect username or password",
		"error.password_weak":               "password does not meet policy",
		"error.signature_invalid":           "signature verification failed",
		"error.sign_type_not_allowed":       "sign type not allowed for this merchant",
		"error.merchant_not_found":          "merchant not found",
		"error.merchant_disabled":           "merchant disabled",
		"error.competence_denied":           "merchant lacks this competence",
		"error.order_not_found":             "order not found",
		"error.order_duplicate_paid":        "order already paid",
		"error.order_duplicate_closed":      "original order closed, use a new out_trade_no",
		"error.order_duplicate_mismatch":    "out_trade_no exists with different parameters",
		"error.order_state_invalid":         "order state does not permit this operation",
		"error.insufficient_funds":          "insufficient balance",
		"error.risk_blocked":                "transaction blocked by risk control",
		"error.no_available_channel":        "no available payment channel",
		"error.no_available_account":        "no available payment account",
		"error.gateway_error":               "upstream gateway error",
		"error.refund_not_found":            "refund not found",
		"error.refund_exceeds_remaining":    "refund amount exceeds refundable remainder",
		"error.refund_state_invalid":        "order state does not permit refund",
		"error.refund_mismatch":             "refund request conflicts with existing record",
		"error.withdrawal_not_found":        "withdrawal not found",
		"error.withdrawal_state_invalid":    "withdrawal state does not permit this operation",
		"error.amount_invalid":              "invalid amount",
		"error.blacklist_exists":            "blacklist entry already exists",
		"error.blacklist_not_found":         "blacklist entry not found",
		"error.merchant_number_exists":      "merchant number already exists",
		"error.channel_code_exists":         "channel code already exists",
		"error.channel_not_found":           "payment channel not found",
		"error.account_not_found":           "payment account not found",
		"error.refund_requires_api_trade":   "gateway refund requires an upstream trade number",
		"error.queue_unavailable":           "task queue unavailable, please retry later",
		"error.captcha_required":            "captcha required",
		"error.captcha_unavailable":         "captcha service disabled",
		"error.captcha_generate_failed":     "failed to generate captcha",
		"error.captcha_config_invalid":      "captcha configuration invalid",
		"error.login_too_many":              "too many login attempts, retry in %d seconds",
		"error.password_old_invalid":        "current password incorrect",
		"error.admin_id_invalid":            "admin identity missing",
		"error.admin_id_type_invalid":       "admin identity invalid",
		"error.fetch_failed":                "query failed",
		"error.save_failed":                 "save failed",
		"error.blacklist_entity_invalid":    "invalid blacklist entity type or value",
		"error.buyer_identifier_missing":    "buyer identifier required",
		"error.password_min_length":         "password must be at least %d characters",
		"error.password_require_upper":      "password must contain an uppercase letter",
		"error.password_require_lower":      "password must contain a lowercase letter",
		"error.password_require_number":     "password must contain a digit",
		"error.password_require_special":    "password must contain a special character",
		"error.admin_username_invalid":      "invalid admin username",
		"error.admin_username_exists":       "admin username already exists",
		"error.admin_delete_self_forbidden": "cannot delete the currently logged-in admin",
		"error.admin_delete_protected":      "built-in super admin cannot be deleted",
		"error.admin_delete_last_forbidden": "at least one admin must remain",
	},
}
