package models

import (
	"time"
)

// OrderBuyer 订单买家信息表（一单一行，主键为交易号）
type OrderBuyer struct {
	TradeNo     string    `gorm:"primaryKey;type:varchar(32)" json:"trade_no"` // 平台交易号
	MerchantID  uint      `gorm:"index;not null" json:"merchant_id"`           // 商户 ID
	IP          string    `gorm:"index;type:varchar(64)" json:"ip"`            // 下单客户端 IP
	UserAgent   string    `gorm:"type:varchar(512)" json:"user_agent"`         // 客户端 UA
	UserID      string    `gorm:"index;type:varchar(64)" json:"user_id"`       // 商户侧用户标识
	BuyerOpenID string    `gorm:"index;type:varchar(64)" json:"buyer_open_id"` // 上游买家标识
	Mobile      string    `gorm:"index;type:varchar(32)" json:"mobile"`        // 买家手机号
	RealName    string    `gorm:"type:varchar(64)" json:"real_name"`           // 买家实名
	CertNo      string    `gorm:"type:varchar(64)" json:"cert_no"`             // 证件号
	CertType    string    `gorm:"type:varchar(32)" json:"cert_type"`           // 证件类型
	MinAge      int       `gorm:"not null;default:0" json:"min_age"`           // 最低年龄要求
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt   time.Time `json:"updated_at"`                                  // 更新时间
}

// TableName 指定表名
func (OrderBuyer) TableName() string {
	return "order_buyers"
}
