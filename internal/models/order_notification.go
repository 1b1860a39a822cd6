package models

import (
	"time"
)

// OrderNotification 异步通知投递记录（一次尝试一行，仅追加）
type OrderNotification struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`           // 主键（UUID）
	TradeNo         string    `gorm:"index;not null;type:varchar(32)" json:"trade_no"` // 平台交易号
	Status          bool      `gorm:"not null;default:false" json:"status"`            // 本次投递是否成功
	HTTPStatus      int       `gorm:"not null;default:0" json:"http_status"`           // 对端 HTTP 状态码（0 表示请求未完成）
	RequestDuration int       `gorm:"not null;default:0" json:"request_duration"`      // 请求耗时（毫秒）
	Response        string    `gorm:"type:text" json:"response"`                       // 对端响应内容
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                         // 创建时间
}

// TableName 指定表名
func (OrderNotification) TableName() string {
	return "order_notifications"
}
