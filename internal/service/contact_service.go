package service

import (
	"strings"
	"unicode/utf8"

	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"
)

const (
	contactNameMaxLen    = 150
	contactSubjectMaxLen = 200
	contactMessageMaxLen = 5000
)

// ContactService 联系我们留言
type ContactService struct {
	repo repository.ContactMessageRepository
}

// NewContactService 创建留言服务
func NewContactService(repo repository.ContactMessageRepository) *ContactService {
	return &ContactService{repo: repo}
}

// ContactMessageInput 留言输入
type ContactMessageInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Submit 保存登录用户的留言
func (s *ContactService) Submit(userID uint, input ContactMessageInput) (*models.ContactMessage, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	name := strings.TrimSpace(input.Name)
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Message)
	if name == "" || body == "" {
		return nil, ErrContactInvalid
	}
	if utf8.RuneCountInString(name) > contactNameMaxLen ||
		utf8.RuneCountInString(subject) > contactSubjectMaxLen ||
		utf8.RuneCountInString(body) > contactMessageMaxLen {
		return nil, ErrContactInvalid
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	message := &models.ContactMessage{
		UserID:  userID,
		Name:    name,
		Email:   email,
		Subject: subject,
		Message: body,
	}
	if err := s.repo.Create(message); err != nil {
		return nil, err
	}
	logger.Infow("contact_message_received", "user_id", userID, "contact_message_id", message.ID)
	return message, nil
}

// List 后台分页查看留言
func (s *ContactService) List(page, pageSize int, keyword string) ([]models.ContactMessage, int64, error) {
	return s.repo.List(repository.ContactMessageListFilter{
		Page:     page,
		PageSize: pageSize,
		Keyword:  keyword,
	})
}
