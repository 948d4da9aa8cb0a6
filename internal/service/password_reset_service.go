package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/emarket-next/internal/cache"
	"github.com/emarket-next/internal/config"
	"github.com/emarket-next/internal/constants"
	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const resetCodeLength = 6

// PasswordResetMailer 找回密码邮件发送方
type PasswordResetMailer interface {
	SendPasswordResetCode(toEmail, code string, expireMinutes int, locale string) error
}

// PasswordResetService 邮箱验证码找回密码
type PasswordResetService struct {
	cfg      config.ResetCodeConfig
	policy   config.PasswordPolicyConfig
	userRepo repository.UserRepository
	codeRepo repository.PasswordResetCodeRepository
	mailer   PasswordResetMailer
	now      func() time.Time
}

// NewPasswordResetService 创建找回密码服务
func NewPasswordResetService(cfg *config.Config, userRepo repository.UserRepository, codeRepo repository.PasswordResetCodeRepository, mailer PasswordResetMailer) *PasswordResetService {
	return &PasswordResetService{
		cfg:      cfg.Email.ResetCode,
		policy:   cfg.Security.PasswordPolicy,
		userRepo: userRepo,
		codeRepo: codeRepo,
		mailer:   mailer,
		now:      time.Now,
	}
}

// ResetPasswordInput 重置密码输入
type ResetPasswordInput struct {
	Email           string
	Code            string
	Password        string
	ConfirmPassword string
}

// ForgotPassword 生成 6 位验证码并发到用户邮箱
func (s *PasswordResetService) ForgotPassword(email, locale string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	if strings.ToLower(user.Status) != constants.UserStatusActive {
		return ErrUserDisabled
	}

	now := s.now()
	latest, err := s.codeRepo.GetLatest(normalized)
	if err != nil {
		return err
	}
	if latest != nil && latest.ConsumedAt == nil && now.Sub(latest.SentAt) < s.sendInterval() {
		return ErrResetCodeTooFrequent
	}

	code, err := randomNumericCode(resetCodeLength)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return ErrEmailServiceDisabled
	}
	if err := s.mailer.SendPasswordResetCode(normalized, code, s.expireMinutes(), locale); err != nil {
		return err
	}

	record := &models.PasswordResetCode{
		UserID:    user.ID,
		Email:     normalized,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(time.Duration(s.expireMinutes()) * time.Minute),
		SentAt:    now,
	}
	if err := s.codeRepo.Create(record); err != nil {
		return err
	}
	logger.Infow("password_reset_code_sent", "user_id", user.ID)
	return nil
}

// VerifyResetCode 校验验证码但不消费，返回对应用户
func (s *PasswordResetService) VerifyResetCode(email, code string) (*models.User, error) {
	user, _, err := s.verify(email, code)
	return user, err
}

// ResetPassword 验证码通过后重置密码，旧 Token 全部失效
func (s *PasswordResetService) ResetPassword(input ResetPasswordInput) error {
	if input.Password != input.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := validatePassword(s.policy, input.Password); err != nil {
		return err
	}
	user, record, err := s.verify(input.Email, input.Code)
	if err != nil {
		return err
	}
	// 并发重置只允许一个请求消费验证码
	consumed, err := s.codeRepo.Consume(record.ID, s.now())
	if err != nil {
		return err
	}
	if !consumed {
		return ErrResetCodeInvalid
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.TokenVersion++
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	_ = cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))
	logger.Infow("password_reset_completed", "user_id", user.ID)
	return nil
}

func (s *PasswordResetService) verify(email, code string) (*models.User, *models.PasswordResetCode, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	code = strings.TrimSpace(code)
	if len(code) != resetCodeLength {
		return nil, nil, ErrResetCodeInvalid
	}
	record, err := s.codeRepo.GetLatest(normalized)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.ConsumedAt != nil {
		return nil, nil, ErrResetCodeInvalid
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, nil, ErrResetCodeExpired
	}
	if record.AttemptCount >= s.maxAttempts() {
		return nil, nil, ErrResetCodeAttemptsExceeded
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, err
		}
		if incErr := s.codeRepo.IncrementAttempt(record.ID); incErr != nil {
			return nil, nil, incErr
		}
		return nil, nil, ErrResetCodeInvalid
	}

	user, err := s.userRepo.GetByID(record.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.Email != normalized {
		return nil, nil, ErrResetCodeInvalid
	}
	return user, record, nil
}

func (s *PasswordResetService) expireMinutes() int {
	if s.cfg.ExpireMinutes <= 0 {
		return 10
	}
	return s.cfg.ExpireMinutes
}

func (s *PasswordResetService) sendInterval() time.Duration {
	if s.cfg.SendIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.cfg.SendIntervalSeconds) * time.Second
}

func (s *PasswordResetService) maxAttempts() int {
	if s.cfg.MaxAttempts <= 0 {
		return 5
	}
	return s.cfg.MaxAttempts
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
