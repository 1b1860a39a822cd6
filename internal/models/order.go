package models

import (
	"time"
)

// Order 支付订单表（主键为平台交易号）
type Order struct {
	TradeNo                 string     `gorm:"primaryKey;type:varchar(32)" json:"trade_no"`                                            // 平台交易号（P+yymmddHHMMSS+6 位微秒+5 位大写字母）
	OutTradeNo              string     `gorm:"index:idx_orders_merchant_out,priority:2;not null;type:varchar(64)" json:"out_trade_no"` // 商户订单号
	MerchantID              uint       `gorm:"index:idx_orders_merchant_out,priority:1;not null" json:"merchant_id"`                   // 商户 ID
	PaymentType             string     `gorm:"not null;type:varchar(16)" json:"payment_type"`                                          // 支付方式
	PaymentChannelID        uint       `gorm:"index;not null" json:"payment_channel_id"`                                               // 支付渠道 ID
	PaymentChannelAccountID uint       `gorm:"index;not null" json:"payment_channel_account_id"`                                       // 支付子账户 ID
	Subject                 string     `gorm:"not null;type:varchar(255)" json:"subject"`                                              // 商品标题
	TotalAmount             Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`                              // 订单金额
	BuyerPayAmount          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"buyer_pay_amount"`                          // 买家实付金额
	ReceiptAmount           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"receipt_amount"`                            // 商户入账金额
	FeeAmount               Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fee_amount"`                                // 平台手续费
	ProfitAmount            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"profit_amount"`                             // 平台利润（可为负）
	NotifyURL               string     `gorm:"type:varchar(512)" json:"notify_url"`                                                    // 异步通知地址
	ReturnURL               string     `gorm:"type:varchar(512)" json:"return_url"`                                                    // 同步跳转地址
	Attach                  string     `gorm:"type:varchar(512)" json:"attach"`                                                        // 商户透传字段
	SettleCycle             int        `gorm:"not null;default:0" json:"settle_cycle"`                                                 // 结算周期
	SignType                string     `gorm:"type:varchar(8)" json:"sign_type"`                                                       // 下单签名算法
	TradeState              string     `gorm:"not null;type:varchar(16);index" json:"trade_state"`                                     // 交易状态
	SettleState             string     `gorm:"not null;type:varchar(16);index" json:"settle_state"`                                    // 结算状态
	NotifyState             string     `gorm:"not null;type:varchar(16);index" json:"notify_state"`                                    // 通知状态
	NotifyRetryCount        int        `gorm:"not null;default:0" json:"notify_retry_count"`                                           // 已重试通知次数
	NotifyNextRetryTime     *time.Time `json:"notify_next_retry_time"`                                                                 // 下次通知重试时间
	CreateTime              time.Time  `gorm:"index;not null" json:"create_time"`                                                      // 下单时间
	PaymentTime             *time.Time `json:"payment_time"`                                                                           // 支付完成时间
	CloseTime               *time.Time `json:"close_time"`                                                                             // 关闭时间
	APITradeNo              string     `gorm:"index;type:varchar(64)" json:"api_trade_no"`                                             // 上游交易号
	BillTradeNo             string     `gorm:"type:varchar(64)" json:"bill_trade_no"`                                                  // 上游账单号
	MchTradeNo              string     `gorm:"type:varchar(64)" json:"mch_trade_no"`                                                   // 上游商户单号
	UpdatedAt               time.Time  `json:"updated_at"`                                                                             // 更新时间
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsTerminal 判断交易状态是否为终态
func (o *Order) IsTerminal() bool {
	if o == nil {
		return false
	}
	return o.TradeState == "CLOSED" || o.TradeState == "FINISHED"
}
