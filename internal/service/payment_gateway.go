package service

import (
	"context"
	"time"

	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/payment/opay"
)

// CashierGateway 收银台网关
type CashierGateway interface {
	CreateCashier(ctx context.Context, input opay.CreateInput) (*opay.CashierResult, error)
}

// OpayGateway 基于配置的 OPay 收银台
type OpayGateway struct {
	cfg opay.Config
}

// NewOpayGateway 从应用配置构建 OPay 网关
func NewOpayGateway(cfg config.OPayConfig) *OpayGateway {
	gatewayCfg := opay.Config{
		BaseURL:       cfg.BaseURL,
		Sandbox:       cfg.Sandbox,
		PublicKey:     cfg.PublicKey,
		SecretKey:     cfg.SecretKey,
		MerchantID:    cfg.MerchantID,
		Country:       cfg.Country,
		Currency:      cfg.Currency,
		ExpireMinutes: cfg.ExpireMinutes,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	gatewayCfg.Normalize()
	return &OpayGateway{cfg: gatewayCfg}
}

// Config 返回归一化后的网关配置副本
func (g *OpayGateway) Config() opay.Config {
	if g == nil {
		return opay.Config{}
	}
	return g.cfg
}

// CreateCashier 创建收银台
func (g *OpayGateway) CreateCashier(ctx context.Context, input opay.CreateInput) (*opay.CashierResult, error) {
	cfg := g.Config()
	return opay.CreateCashier(ctx, &cfg, input)
}

// Validate 校验网关必填配置
func (g *OpayGateway) Validate() error {
	cfg := g.Config()
	return opay.ValidateConfig(&cfg)
}
