package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentChannelAccount 支付渠道子账户
type PaymentChannelAccount struct {
	ID              uint           `gorm:"primarykey" json:"id"`                              // 主键
	ChannelID       uint           `gorm:"index;not null" json:"channel_id"`                  // 所属渠道 ID
	Name            string         `gorm:"not null" json:"name"`                              // 子账户名称
	InheritConfig   bool           `gorm:"not null;default:true" json:"inherit_config"`       // 是否继承渠道限额配置
	RollWeight      int            `gorm:"not null;default:0" json:"roll_weight"`             // 加权轮询权重
	Rate            Rate           `gorm:"type:decimal(10,4);not null;default:0" json:"rate"` // 子账户费率（不继承时生效）
	MinAmount       *Money         `gorm:"type:decimal(20,2)" json:"min_amount"`              // 单笔最小金额（不继承时生效）
	MaxAmount       *Money         `gorm:"type:decimal(20,2)" json:"max_amount"`              // 单笔最大金额（不继承时生效）
	DailyLimit      *Money         `gorm:"type:decimal(20,2)" json:"daily_limit"`             // 子账户日收款限额
	EarliestTime    string         `gorm:"type:varchar(5)" json:"earliest_time"`              // 可用起始时刻（HH:MM）
	LatestTime      string         `gorm:"type:varchar(5)" json:"latest_time"`                // 可用结束时刻（HH:MM）
	Config          JSON           `gorm:"type:json" json:"-"`                                // 上游凭证配置（不返回给前端）
	Status          bool           `gorm:"not null;default:true;index" json:"status"`         // 是否启用
	Maintenance     bool           `gorm:"not null;default:false" json:"maintenance"`         // 是否维护中
	DiyOrderSubject string         `gorm:"type:varchar(255)" json:"diy_order_subject"`        // 自定义订单标题
	CreatedAt       time.Time      `json:"created_at"`                                        // 创建时间
	UpdatedAt       time.Time      `json:"updated_at"`                                        // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间
}

// TableName 指定表名
func (PaymentChannelAccount) TableName() string {
	return "payment_channel_accounts"
}
