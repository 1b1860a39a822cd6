package response

// 业务码为固定枚举字符串，所有响应 HTTP 状态恒为 200
const (
	CodeSuccess            = "SUCCESS"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeRiskBlocked        = "RISK_BLOCKED"
	CodeNoAvailableChannel = "NO_AVAILABLE_CHANNEL"
	CodeNoAvailableAccount = "NO_AVAILABLE_ACCOUNT"
	CodeGatewayError       = "GATEWAY_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL"
)
