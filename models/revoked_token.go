package models

import (
	"time"
)

// RevokedToken 已注销的刷新令牌（按 jti 记录）
type RevokedToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	JTI       string    `json:"jti" gorm:"uniqueIndex;size:64;not null"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 设置表名
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
