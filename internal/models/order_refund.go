package models

import (
	"time"
)

// OrderRefund 订单退款记录
type OrderRefund struct {
	ID              string    `gorm:"primaryKey;type:varchar(16)" json:"id"`                                                    // 退款单号（R+2 位年份+13 位大写字母数字）
	TradeNo         string    `gorm:"index;not null;type:varchar(32)" json:"trade_no"`                                          // 平台交易号
	MerchantID      uint      `gorm:"uniqueIndex:idx_order_refunds_merchant_biz,priority:1;not null" json:"merchant_id"`        // 商户 ID
	InitiateType    string    `gorm:"not null;type:varchar(16)" json:"initiate_type"`                                           // 发起方（admin/api/merchant/system）
	RefundType      bool      `gorm:"not null;default:false" json:"refund_type"`                                                // 是否自动退款（调用上游）
	Amount          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                      // 退款金额
	RefundFeeAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"refund_fee_amount"`                           // 返还手续费金额
	FeeBearer       bool      `gorm:"not null;default:false" json:"fee_bearer"`                                                 // 是否返还手续费
	OutBizNo        *string   `gorm:"uniqueIndex:idx_order_refunds_merchant_biz,priority:2;type:varchar(64)" json:"out_biz_no"` // 商户退款幂等号
	APIRefundNo     string    `gorm:"type:varchar(64)" json:"api_refund_no"`                                                    // 上游退款单号
	Reason          string    `gorm:"type:varchar(255)" json:"reason"`                                                          // 退款原因
	Status          string    `gorm:"not null;type:varchar(16);index" json:"status"`                                            // 状态
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                                                  // 创建时间
	UpdatedAt       time.Time `json:"updated_at"`                                                                               // 更新时间
}

// TableName 指定表名
func (OrderRefund) TableName() string {
	return "order_refunds"
}
