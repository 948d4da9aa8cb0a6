package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/emarket-next/internal/authz"
	"github.com/emarket-next/internal/cache"
	"github.com/emarket-next/internal/config"
	adminhandlers "github.com/emarket-next/internal/http/handlers/admin"
	publichandlers "github.com/emarket-next/internal/http/handlers/public"
	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "emk"
	}
	redisClient := cache.Client()

	loginRule := RuleFromConfig(fmt.Sprintf("%s:rate:login", redisPrefix), cfg.Security.LoginRateLimit)
	loginRule.MessageKey = "error.login_too_many"
	adminLoginRule := RuleFromConfig(fmt.Sprintf("%s:rate:admin_login", redisPrefix), cfg.Security.LoginRateLimit)
	adminLoginRule.MessageKey = "error.login_too_many"
	checkoutRule := RuleFromConfig(fmt.Sprintf("%s:rate:checkout", redisPrefix), cfg.Security.CheckoutRateLimit)
	checkoutRule.MessageKey = "error.checkout_too_many"
	passwordResetRule := RuleFromConfig(fmt.Sprintf("%s:rate:password_reset", redisPrefix), cfg.Security.ResetRateLimit)
	passwordResetRule.MessageKey = "error.rate_limited"
	contactRule := RuleFromConfig(fmt.Sprintf("%s:rate:contact", redisPrefix), cfg.Security.ContactRateLimit)
	contactRule.MessageKey = "error.rate_limited"
	// 回调限流：Redis 故障时放行，超限返回真实 429 以便网关重试
	webhookRule := RuleFromConfig(fmt.Sprintf("%s:rate:opay_callback", redisPrefix), cfg.Security.WebhookRateLimit)
	webhookRule.MessageKey = "error.rate_limited"
	webhookRule.FailOpen = true
	webhookRule.HTTPStatus = true

	secureCookie := strings.EqualFold(strings.TrimSpace(cfg.Server.Mode), gin.ReleaseMode)
	optionalUser := OptionalUserJWTMiddleware(cfg.UserJWT.SecretKey, c.UserRepo)
	guestSession := GuestSessionMiddleware(secureCookie)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", func(ctx *gin.Context) {
			response.Success(ctx, gin.H{"status": "ok"})
		})
		if cfg.Metrics.Enabled && c.Metrics != nil {
			metricsPath := strings.TrimSpace(cfg.Metrics.Path)
			if metricsPath == "" {
				metricsPath = "/metrics"
			}
			apiV1.GET(metricsPath, gin.WrapH(c.Metrics.Handler()))
		}

		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.GetProducts)
			public.GET("/products/swiper", publicHandler.GetSwiperProducts)
			public.GET("/products/search/:keyword", publicHandler.SearchProducts)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
			public.GET("/sales", publicHandler.GetSales)
			public.GET("/sales/swiper", publicHandler.GetSaleSwiper)
			public.GET("/categories", publicHandler.GetCategories)
			public.GET("/brands", publicHandler.GetBrands)
			public.GET("/shipping", publicHandler.GetShippingSettings)
			public.GET("/orders/reference/:reference", publicHandler.GetOrderByReference)
			public.GET("/captcha/config", publicHandler.GetCaptchaConfig)
			public.GET("/captcha/image", publicHandler.GetImageCaptcha)
		}

		// 支付回调（网关调用，无需鉴权）
		apiV1.POST("/payments/opay/callback", RateLimitMiddleware(redisClient, webhookRule, KeyByIP), publicHandler.OpayCallback)

		// 购物车与结算：已登录用户按用户归属，否则按游客会话归属
		shop := apiV1.Group("")
		shop.Use(optionalUser, guestSession)
		{
			shop.GET("/cart", publicHandler.GetCart)
			shop.POST("/cart/items", publicHandler.AddCartItem)
			shop.PATCH("/cart/items/:id", publicHandler.UpdateCartItem)
			shop.DELETE("/cart/items/:id", publicHandler.DeleteCartItem)
			shop.POST("/checkout", RateLimitMiddleware(redisClient, checkoutRule, KeyByCartIdentity), publicHandler.Checkout)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		auth.Use(guestSession)
		{
			auth.POST("/register", publicHandler.UserRegister)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
			auth.POST("/password/forgot", RateLimitMiddleware(redisClient, passwordResetRule, KeyByIPAndJSONField("email")), publicHandler.ForgotPassword)
			auth.POST("/password/verify", RateLimitMiddleware(redisClient, passwordResetRule, KeyByIPAndJSONField("email")), publicHandler.VerifyResetCode)
			auth.POST("/password/reset", RateLimitMiddleware(redisClient, passwordResetRule, KeyByIPAndJSONField("email")), publicHandler.ResetPassword)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("/user")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/profile", publicHandler.GetProfile)
			user.PUT("/profile", publicHandler.UpdateProfile)
			user.PUT("/password", publicHandler.ChangePassword)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
		}

		// 联系我们（登录用户）
		apiV1.POST("/contact", UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo), RateLimitMiddleware(redisClient, contactRule, KeyByIP), publicHandler.SubmitContactMessage)

		// 管理后台
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			authorized := admin.Group("")
			authorized.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			authorized.Use(AdminRBACMiddleware(c.AuthzService))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.GET("/authz/roles/:role/policies", adminHandler.ListRolePolicies)
				authorized.POST("/authz/roles/:role/policies", adminHandler.GrantRolePolicy)
				authorized.DELETE("/authz/roles/:role/policies", adminHandler.RevokeRolePolicy)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAdminRoles)

				// 联系留言
				authorized.GET("/contact-messages", adminHandler.ListContactMessages)

				// 订单管理
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:id", adminHandler.AdminGetOrder)
				authorized.PATCH("/orders/:id/status", adminHandler.AdminUpdateOrderStatus)
				authorized.DELETE("/orders/:id", adminHandler.AdminDeleteOrder)

				// 支付流水
				authorized.GET("/payment-transactions", adminHandler.GetPaymentTransactions)
				authorized.GET("/payment-transactions/export", adminHandler.ExportPaymentTransactions)
				authorized.DELETE("/payment-transactions/:id", adminHandler.DeletePaymentTransaction)

				// 运费设置
				authorized.GET("/shipping-settings", adminHandler.GetShippingSettings)
				authorized.POST("/shipping-settings", adminHandler.CreateShippingSetting)
				authorized.PUT("/shipping-settings/:id", adminHandler.UpdateShippingSetting)
				authorized.DELETE("/shipping-settings/:id", adminHandler.DeleteShippingSetting)

				// 分类管理
				authorized.GET("/categories", adminHandler.GetAdminCategories)
				authorized.POST("/categories", adminHandler.CreateCategory)
				authorized.PUT("/categories/:id", adminHandler.UpdateCategory)
				authorized.DELETE("/categories/:id", adminHandler.DeleteCategory)

				// 商品与规格管理
				authorized.GET("/products", adminHandler.GetAdminProducts)
				authorized.GET("/products/:id", adminHandler.GetAdminProduct)
				authorized.POST("/products", adminHandler.CreateProduct)
				authorized.PUT("/products/:id", adminHandler.UpdateProduct)
				authorized.DELETE("/products/:id", adminHandler.DeleteProduct)
				authorized.POST("/products/:id/variants", adminHandler.CreateVariant)
				authorized.PUT("/variants/:id", adminHandler.UpdateVariant)
				authorized.DELETE("/variants/:id", adminHandler.DeleteVariant)
			}
		}
	}

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
		if item.Path == "/api/v1/admin/login" {
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
