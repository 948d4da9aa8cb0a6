package provider

import (
	"github.com/emarket-next/internal/authz"
	"github.com/emarket-next/internal/cache"
	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/metrics"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/queue"
	"github.com/emarket-next/internal/repository"
	"github.com/emarket-next/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.ShopMetrics

	// Repositories
	AdminRepo              repository.AdminRepository
	UserRepo               repository.UserRepository
	ProductRepo            repository.ProductRepository
	VariantRepo            repository.VariantRepository
	CategoryRepo           repository.CategoryRepository
	CartRepo               repository.CartRepository
	OrderRepo              repository.OrderRepository
	PaymentTransactionRepo repository.PaymentTransactionRepository
	ShippingRepo           repository.ShippingSettingRepository
	PasswordResetCodeRepo  repository.PasswordResetCodeRepository
	ContactMessageRepo     repository.ContactMessageRepository

	// Services
	AuthzService         *authz.Service
	AuthService          *service.AuthService
	UserAuthService      *service.UserAuthService
	EmailService         *service.EmailService
	PasswordResetService *service.PasswordResetService
	ContactService       *service.ContactService
	CaptchaService       *service.CaptchaService
	CatalogService       *service.CatalogService
	CartService          *service.CartService
	ShippingService      *service.ShippingService
	CheckoutService      *service.CheckoutService
	PaymentService       *service.PaymentService
	OrderService         *service.OrderService
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
	} else {
		logger.Infow("provider_queue_disabled")
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.NewShopMetrics(prometheus.DefaultRegisterer)
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
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.VariantRepo = repository.NewVariantRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentTransactionRepo = repository.NewPaymentTransactionRepository(db)
	c.ShippingRepo = repository.NewShippingSettingRepository(db)
	c.PasswordResetCodeRepo = repository.NewPasswordResetCodeRepository(db)
	c.ContactMessageRepo = repository.NewContactMessageRepository(db)
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

	gateway := service.NewOpayGateway(c.Config.OPay)
	if err := gateway.Validate(); err != nil {
		logger.Warnw("provider_opay_config_invalid", "error", err)
	}

	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.CatalogService = service.NewCatalogService(c.Config.Catalog, c.ProductRepo, c.VariantRepo, c.CategoryRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.VariantRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo, c.CartService)
	c.EmailService = service.NewEmailService(c.Config.Email)
	if !c.Config.Email.Enabled {
		logger.Infow("provider_email_disabled")
	}
	c.PasswordResetService = service.NewPasswordResetService(c.Config, c.UserRepo, c.PasswordResetCodeRepo, c.EmailService)
	c.ContactService = service.NewContactService(c.ContactMessageRepo)
	c.ShippingService = service.NewShippingService(c.ShippingRepo, c.Config.Checkout.DefaultShippingCost)
	c.CheckoutService = service.NewCheckoutService(c.Config, c.CartRepo, c.PaymentTransactionRepo, c.ShippingService, gateway, c.QueueClient, c.Metrics)
	c.PaymentService = service.NewPaymentService(c.Config, c.PaymentTransactionRepo, c.CartRepo, c.VariantRepo, c.OrderRepo, c.QueueClient, c.Metrics)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.PaymentTransactionRepo)
}
