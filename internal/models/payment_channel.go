package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentChannel 支付渠道配置
type PaymentChannel struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                     // 主键
	Code            string         `gorm:"uniqueIndex;not null;type:varchar(32)" json:"code"`        // 渠道代码（大写字母数字）
	Name            string         `gorm:"not null" json:"name"`                                     // 渠道名称
	PaymentType     string         `gorm:"not null;type:varchar(16);index" json:"payment_type"`      // 支付方式
	Gateway         string         `gorm:"not null;type:varchar(32)" json:"gateway"`                 // 上游驱动标识
	Rate            Rate           `gorm:"type:decimal(10,4);not null;default:0" json:"rate"`        // 商户费率（小数形式）
	Costs           Rate           `gorm:"type:decimal(10,4);not null;default:0" json:"costs"`       // 渠道成本费率（小数形式）
	FixedFee        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_fee"`   // 固定手续费
	FixedCosts      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_costs"` // 固定成本
	MinFee          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_fee"`     // 手续费下限
	MaxFee          *Money         `gorm:"type:decimal(20,2)" json:"max_fee"`                        // 手续费上限（空不限）
	MinAmount       *Money         `gorm:"type:decimal(20,2)" json:"min_amount"`                     // 单笔最小金额（空不限）
	MaxAmount       *Money         `gorm:"type:decimal(20,2)" json:"max_amount"`                     // 单笔最大金额（空不限）
	DailyLimit      *Money         `gorm:"type:decimal(20,2)" json:"daily_limit"`                    // 渠道日收款限额（空不限）
	EarliestTime    string         `gorm:"type:varchar(5)" json:"earliest_time"`                     // 可用起始时刻（HH:MM，空不限）
	LatestTime      string         `gorm:"type:varchar(5)" json:"latest_time"`                       // 可用结束时刻（HH:MM，空不限）
	RollMode        int            `gorm:"not null;default:0" json:"roll_mode"`                      // 子账户轮询模式（0 顺序/1 随机/2 加权/3 首个）
	SettleCycle     int            `gorm:"not null;default:0" json:"settle_cycle"`                   // 结算周期
	Status          bool           `gorm:"not null;default:true;index" json:"status"`                // 是否启用
	DiyOrderSubject string         `gorm:"type:varchar(255)" json:"diy_order_subject"`               // 自定义订单标题（空不覆盖）
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt       time.Time      `json:"updated_at"`                                               // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间

	Accounts []PaymentChannelAccount `gorm:"foreignKey:ChannelID" json:"accounts,omitempty"` // 子账户
}

// TableName 指定表名
func (PaymentChannel) TableName() string {
	return "payment_channels"
}
