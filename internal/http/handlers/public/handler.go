package public

import "github.com/paygate-next/internal/provider"

// Handler 商户侧对外接口处理器入口
// 说明：该处理器承载签名商户 API、网关回调与同步跳转，不参与管理端鉴权。
type Handler struct {
	*provider.Container
}

// New 创建商户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
