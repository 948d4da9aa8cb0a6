package models

import "time"

// PasswordResetCode 找回密码验证码
// 明文只出现在邮件里，表中保存 bcrypt 哈希
type PasswordResetCode struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	Email        string     `gorm:"type:varchar(255);index:idx_reset_email_sent;not null" json:"email"`
	CodeHash     string     `gorm:"not null" json:"-"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`
	ConsumedAt   *time.Time `json:"consumed_at"`
	AttemptCount int        `gorm:"not null;default:0" json:"attempt_count"`
	SentAt       time.Time  `gorm:"index:idx_reset_email_sent;not null" json:"sent_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName 指定表名
func (PasswordResetCode) TableName() string {
	return "password_reset_codes"
}
