package provider

import (
	"time"

	"github.com/paygate-next/internal/authz"
	"github.com/paygate-next/internal/cache"
	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/payment"
	"github.com/paygate-next/internal/queue"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo          repository.AdminRepository
	MerchantRepo       repository.MerchantRepository
	WalletRepo         repository.WalletRepository
	OrderRepo          repository.OrderRepository
	RefundRepo         repository.RefundRepository
	WithdrawalRepo     repository.WithdrawalRepository
	PaymentChannelRepo repository.PaymentChannelRepository
	BlacklistRepo      repository.BlacklistRepository
	AuthzAuditLogRepo  repository.AuthzAuditLogRepository

	// Services
	AuthzService      *authz.Service
	AuthService       *service.AuthService
	CaptchaService    *service.CaptchaService
	AuthzAuditService *service.AuthzAuditService
	MerchantService   *service.MerchantService
	WalletService     *service.WalletService
	ChannelService    *service.ChannelService
	RiskService       *service.RiskService
	OrderService      *service.OrderService
	RefundService     *service.RefundService
	WithdrawalService *service.WithdrawalService
	NotifyService     *service.NotifyService

	// 支付网关驱动注册表
	PaymentRegistry *payment.Registry
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.MerchantRepo = repository.NewMerchantRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(db)
	c.PaymentChannelRepo = repository.NewPaymentChannelRepository(db)
	c.BlacklistRepo = repository.NewBlacklistRepository(db)
	c.AuthzAuditLogRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditLogRepo)

	c.WalletService = service.NewWalletService(c.WalletRepo)
	c.MerchantService = service.NewMerchantService(c.Config, c.MerchantRepo, c.WalletRepo)
	c.ChannelService = service.NewChannelService(c.Config, c.PaymentChannelRepo, cache.NewPaymentCounterStore())
	c.RiskService = service.NewRiskService(c.Config, c.BlacklistRepo, c.OrderRepo)
	c.OrderService = service.NewOrderService(c.Config, c.OrderRepo, c.WalletService, c.ChannelService, c.RiskService, c.QueueClient)

	c.PaymentRegistry = payment.NewRegistry(time.Duration(c.Config.Payment.DriverTimeoutSeconds) * time.Second)
	c.RefundService = service.NewRefundService(c.Config, c.OrderRepo, c.RefundRepo, c.WalletService, c.ChannelService, c.PaymentRegistry)
	c.WithdrawalService = service.NewWithdrawalService(c.Config, c.WithdrawalRepo, c.WalletService)
	c.NotifyService = service.NewNotifyService(c.Config, c.OrderRepo, c.QueueClient)
}
