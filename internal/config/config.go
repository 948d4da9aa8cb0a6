package config

import (
	"fmt"
	"strings"

	"github.com/emarket-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	UserJWT  JWTConfig      `mapstructure:"user_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	OPay     OPayConfig     `mapstructure:"opay"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string             `mapstructure:"driver"`    // 数据库驱动（sqlite/postgres）
	DSN      string             `mapstructure:"dsn"`       // 数据库连接串
	LogLevel string             `mapstructure:"log_level"` // silent / error / warn / info
	Pool     DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit    RateLimitConfig      `mapstructure:"login_rate_limit"`
	CheckoutRateLimit RateLimitConfig      `mapstructure:"checkout_rate_limit"`
	WebhookRateLimit  RateLimitConfig      `mapstructure:"webhook_rate_limit"`
	ResetRateLimit    RateLimitConfig      `mapstructure:"reset_rate_limit"`
	ContactRateLimit  RateLimitConfig      `mapstructure:"contact_rate_limit"`
	PasswordPolicy    PasswordPolicyConfig `mapstructure:"password_policy"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// PasswordPolicyConfig 密码策略配置
type PasswordPolicyConfig struct {
	MinLength      int  `mapstructure:"min_length"`
	RequireUpper   bool `mapstructure:"require_upper"`
	RequireLower   bool `mapstructure:"require_lower"`
	RequireNumber  bool `mapstructure:"require_number"`
	RequireSpecial bool `mapstructure:"require_special"`
}

// CaptchaConfig 图片验证码配置
type CaptchaConfig struct {
	Enabled       bool               `mapstructure:"enabled"`
	Scenes        CaptchaSceneConfig `mapstructure:"scenes"`
	Length        int                `mapstructure:"length"`
	Width         int                `mapstructure:"width"`
	Height        int                `mapstructure:"height"`
	NoiseCount    int                `mapstructure:"noise_count"`
	ShowLine      int                `mapstructure:"show_line"`
	ExpireSeconds int                `mapstructure:"expire_seconds"`
	MaxStore      int                `mapstructure:"max_store"`
}

// CaptchaSceneConfig 验证码场景开关
type CaptchaSceneConfig struct {
	Login         bool `mapstructure:"login"`
	Register      bool `mapstructure:"register"`
	GuestCheckout bool `mapstructure:"guest_checkout"`
}

// OPayConfig OPay 收银台配置
type OPayConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	Sandbox         bool   `mapstructure:"sandbox"`
	PublicKey       string `mapstructure:"public_key"`
	SecretKey       string `mapstructure:"secret_key"`
	MerchantID      string `mapstructure:"merchant_id"`
	Country         string `mapstructure:"country"`
	Currency        string `mapstructure:"currency"`
	ExpireMinutes   int    `mapstructure:"expire_minutes"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	VerifySignature bool   `mapstructure:"verify_signature"`
}

// CheckoutConfig 结算配置
type CheckoutConfig struct {
	FrontendURL          string `mapstructure:"frontend_url"`
	BackendURL           string `mapstructure:"backend_url"`
	TombstoneTTLHours    int    `mapstructure:"tombstone_ttl_hours"`
	PendingExpireMinutes int    `mapstructure:"pending_expire_minutes"`
	DefaultShippingCost  string `mapstructure:"default_shipping_cost"`
}

// CatalogConfig 商品目录配置
type CatalogConfig struct {
	CacheTTLSeconds         int    `mapstructure:"cache_ttl_seconds"`
	PageSize                int    `mapstructure:"page_size"`
	SearchPageSize          int    `mapstructure:"search_page_size"`
	SalesPageSize           int    `mapstructure:"sales_page_size"`
	SalesMinDiscountPercent string `mapstructure:"sales_min_discount_percent"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EmailConfig SMTP 发信配置
type EmailConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Username  string          `mapstructure:"username"`
	Password  string          `mapstructure:"password"`
	From      string          `mapstructure:"from"`
	FromName  string          `mapstructure:"from_name"`
	UseTLS    bool            `mapstructure:"use_tls"` // STARTTLS
	UseSSL    bool            `mapstructure:"use_ssl"` // 隐式 TLS（465）
	ResetCode ResetCodeConfig `mapstructure:"reset_code"`
}

// ResetCodeConfig 找回密码验证码配置
type ResetCodeConfig struct {
	ExpireMinutes       int `mapstructure:"expire_minutes"`
	SendIntervalSeconds int `mapstructure:"send_interval_seconds"`
	MaxAttempts         int `mapstructure:"max_attempts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/emarket.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("user_jwt.secret", "user-change-me-in-production")
	v.SetDefault("user_jwt.expire_hours", 168)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "emk")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Accept-Language",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
		"X-Session-Key",
	})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID", "X-Session-Key"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.login_rate_limit.block_seconds", 900)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_attempts", 10)
	v.SetDefault("security.checkout_rate_limit.block_seconds", 300)
	v.SetDefault("security.webhook_rate_limit.window_seconds", 60)
	v.SetDefault("security.webhook_rate_limit.max_attempts", 120)
	v.SetDefault("security.webhook_rate_limit.block_seconds", 0)
	v.SetDefault("security.reset_rate_limit.window_seconds", 600)
	v.SetDefault("security.reset_rate_limit.max_attempts", 10)
	v.SetDefault("security.reset_rate_limit.block_seconds", 900)
	v.SetDefault("security.contact_rate_limit.window_seconds", 3600)
	v.SetDefault("security.contact_rate_limit.max_attempts", 5)
	v.SetDefault("security.contact_rate_limit.block_seconds", 0)
	v.SetDefault("security.password_policy.min_length", 8)
	v.SetDefault("security.password_policy.require_upper", false)
	v.SetDefault("security.password_policy.require_lower", true)
	v.SetDefault("security.password_policy.require_number", true)
	v.SetDefault("security.password_policy.require_special", false)
	v.SetDefault("captcha.enabled", false)
	v.SetDefault("captcha.scenes.login", false)
	v.SetDefault("captcha.scenes.register", false)
	v.SetDefault("captcha.scenes.guest_checkout", false)
	v.SetDefault("captcha.length", 5)
	v.SetDefault("captcha.width", 240)
	v.SetDefault("captcha.height", 80)
	v.SetDefault("captcha.noise_count", 2)
	v.SetDefault("captcha.show_line", 2)
	v.SetDefault("captcha.expire_seconds", 300)
	v.SetDefault("captcha.max_store", 10240)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 587)
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.from_name", "eMarket")
	v.SetDefault("email.reset_code.expire_minutes", 10)
	v.SetDefault("email.reset_code.send_interval_seconds", 60)
	v.SetDefault("email.reset_code.max_attempts", 5)
	v.SetDefault("opay.base_url", "")
	v.SetDefault("opay.sandbox", true)
	v.SetDefault("opay.public_key", "")
	v.SetDefault("opay.secret_key", "")
	v.SetDefault("opay.merchant_id", "")
	v.SetDefault("opay.country", "EG")
	v.SetDefault("opay.currency", "EGP")
	v.SetDefault("opay.expire_minutes", 30)
	v.SetDefault("opay.timeout_seconds", 30)
	v.SetDefault("opay.verify_signature", false)
	v.SetDefault("checkout.frontend_url", "http://localhost:5173")
	v.SetDefault("checkout.backend_url", "http://localhost:8080")
	v.SetDefault("checkout.tombstone_ttl_hours", 72)
	v.SetDefault("checkout.pending_expire_minutes", 60)
	v.SetDefault("checkout.default_shipping_cost", "60.00")
	v.SetDefault("catalog.cache_ttl_seconds", 300)
	v.SetDefault("catalog.page_size", 24)
	v.SetDefault("catalog.search_page_size", 24)
	v.SetDefault("catalog.sales_page_size", 10)
	v.SetDefault("catalog.sales_min_discount_percent", "5")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 从 config.yml 加载配置
func Load() *Config {
	cfg, err := LoadWith(viper.GetViper())
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

// LoadWith 使用指定 viper 实例加载配置（测试可传入独立实例）
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")     // 从当前目录查找
	v.AddConfigPath("./")    // 备用路径
	v.AddConfigPath("../")   // 如果从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹

	setDefaults(v)

	// 环境变量支持，例如 server.port -> SERVER_PORT
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
