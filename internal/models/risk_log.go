package models

import (
	"time"
)

// RiskLog 风控命中日志（仅追加）
type RiskLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`              // 主键
	MerchantID uint      `gorm:"index;not null" json:"merchant_id"` // 商户 ID
	Type       int       `gorm:"not null;index" json:"type"`        // 类型（0 黑名单/1 标题关键词/2 成功率）
	Content    string    `gorm:"type:varchar(512)" json:"content"`  // 命中详情
	CreatedAt  time.Time `gorm:"index" json:"created_at"`           // 创建时间
}

// TableName 指定表名
func (RiskLog) TableName() string {
	return "risk_logs"
}
