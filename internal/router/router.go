package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paygate-next/internal/authz"
	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	adminhandlers "github.com/paygate-next/internal/http/handlers/admin"
	publichandlers "github.com/paygate-next/internal/http/handlers/public"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按商户侧/管理侧分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pg"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		MessageKey:    "error.login_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 商户签名 API：POST + payload 签名验证，鉴权在 Handler 内完成
	api := r.Group("/api")
	{
		api.POST("/pay/unified", publicHandler.UnifiedPay)
		api.POST("/pay/query", publicHandler.QueryPay)
		api.POST("/pay/close", publicHandler.ClosePay)
		api.POST("/refund/apply", publicHandler.ApplyRefund)
		api.POST("/refund/query", publicHandler.QueryRefund)
		api.POST("/merchant/balance", publicHandler.MerchantBalance)
		api.POST("/withdrawal/apply", publicHandler.ApplyWithdrawal)
	}

	// 网关异步回调与同步跳转（渠道侧调用，不走签名校验）
	r.POST("/callback/:gateway/:accountID", publicHandler.GatewayCallback)
	r.GET("/callback/:gateway/:accountID", publicHandler.GatewayCallback)
	r.GET("/return/:tradeNo", publicHandler.PaymentReturn)

	// 管理员接口
	apiV1 := r.Group("/api/v1")
	{
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)
			admin.GET("/login/captcha", adminHandler.GetLoginCaptcha)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword) // 修改密码

				// 权限管理
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/admins", adminHandler.ListAuthzAdmins)
				authorized.GET("/authz/audit-logs", adminHandler.ListAuthzAuditLogs)
				authorized.POST("/authz/admins", adminHandler.CreateAuthzAdmin)
				authorized.PUT("/authz/admins/:id", adminHandler.UpdateAuthzAdmin)
				authorized.DELETE("/authz/admins/:id", adminHandler.DeleteAuthzAdmin)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
				authorized.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)

				// 商户管理
				authorized.GET("/merchants", adminHandler.GetMerchants)
				authorized.POST("/merchants", adminHandler.CreateMerchant)
				authorized.GET("/merchants/:id", adminHandler.GetMerchant)
				authorized.PUT("/merchants/:id", adminHandler.UpdateMerchant)
				authorized.DELETE("/merchants/:id", adminHandler.DeleteMerchant)
				authorized.GET("/merchants/:id/encryption", adminHandler.GetMerchantEncryption)
				authorized.PUT("/merchants/:id/encryption", adminHandler.UpdateMerchantEncryption)
				authorized.POST("/merchants/:id/encryption/hash-key", adminHandler.RegenerateMerchantHashKey)
				authorized.POST("/merchants/:id/encryption/rsa-keys", adminHandler.RegenerateMerchantRSAKeys)

				// 渠道与渠道账号
				authorized.GET("/channels", adminHandler.GetChannels)
				authorized.POST("/channels", adminHandler.CreateChannel)
				authorized.GET("/channels/:id", adminHandler.GetChannel)
				authorized.PUT("/channels/:id", adminHandler.UpdateChannel)
				authorized.DELETE("/channels/:id", adminHandler.DeleteChannel)
				authorized.POST("/channel-accounts", adminHandler.CreateChannelAccount)
				authorized.PUT("/channel-accounts/:id", adminHandler.UpdateChannelAccount)
				authorized.DELETE("/channel-accounts/:id", adminHandler.DeleteChannelAccount)

				// 订单管理
				authorized.GET("/orders", adminHandler.GetOrders)
				authorized.GET("/orders/:tradeNo", adminHandler.GetOrder)
				authorized.POST("/orders/:tradeNo/close", adminHandler.CloseOrder)
				authorized.POST("/orders/:tradeNo/freeze", adminHandler.FreezeOrder)
				authorized.POST("/orders/:tradeNo/unfreeze", adminHandler.UnfreezeOrder)
				authorized.POST("/orders/:tradeNo/settle-retry", adminHandler.RetryOrderSettle)
				authorized.POST("/orders/:tradeNo/notify-resend", adminHandler.ResendOrderNotify)
				authorized.POST("/orders/:tradeNo/refund", adminHandler.ManualRefund)

				// 退款与提现
				authorized.GET("/refunds", adminHandler.GetRefunds)
				authorized.GET("/refunds/:id", adminHandler.GetRefund)
				authorized.GET("/withdrawals", adminHandler.GetWithdrawals)
				authorized.GET("/withdrawals/:id", adminHandler.GetWithdrawal)
				authorized.PUT("/withdrawals/:id/status", adminHandler.ChangeWithdrawalStatus)
				authorized.POST("/withdrawals/settle-account", adminHandler.SettleMerchantAccount)

				// 钱包管理
				authorized.GET("/wallets/:merchantID", adminHandler.GetMerchantWallet)
				authorized.GET("/wallet-records", adminHandler.GetWalletRecords)
				authorized.GET("/wallet-prepaid-records", adminHandler.GetWalletPrepaidRecords)
				authorized.POST("/wallets/adjust-available", adminHandler.AdjustWalletAvailable)
				authorized.POST("/wallets/adjust-prepaid", adminHandler.AdjustWalletPrepaid)

				// 风控管理
				authorized.GET("/blacklists", adminHandler.GetBlacklists)
				authorized.POST("/blacklists", adminHandler.CreateBlacklist)
				authorized.PUT("/blacklists/:id", adminHandler.UpdateBlacklist)
				authorized.DELETE("/blacklists/:id", adminHandler.DeleteBlacklist)
				authorized.GET("/risk-logs", adminHandler.GetRiskLogs)
				authorized.GET("/risk/buyer-summary", adminHandler.GetBuyerSummary)

				// 通知记录
				authorized.GET("/notifications", adminHandler.GetNotifications)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" || item.Path == "/api/v1/admin/login/captcha" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
