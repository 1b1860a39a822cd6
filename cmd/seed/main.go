package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/logger"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/sign"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 演示数据固定商户号，重复执行按该商户号跳过
const demoMerchantNumber = "M2026DEMO0000001"

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认超级管理员
	if err := models.InitDefaultAdmin(os.Getenv("PG_DEFAULT_ADMIN_USERNAME"), os.Getenv("PG_DEFAULT_ADMIN_PASSWORD")); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	} else {
		stdLog.Println("Default admin ready")
	}

	// 演示渠道与子账户
	var channel models.PaymentChannel
	if err := models.DB.Where("code = ?", "ALIPAY01").First(&channel).Error; err != nil {
		maxAmount := models.NewMoneyFromDecimal(decimal.NewFromInt(50000))
		channel = models.PaymentChannel{
			Code:         "ALIPAY01",
			Name:         "支付宝演示渠道",
			PaymentType:  constants.PaymentTypeAlipay,
			Gateway:      constants.GatewayAlipay,
			Rate:         models.NewRateFromDecimal(decimal.NewFromFloat(0.006)),
			Costs:        models.NewRateFromDecimal(decimal.NewFromFloat(0.003)),
			MinFee:       models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			MaxAmount:    &maxAmount,
			EarliestTime: "",
			LatestTime:   "",
			RollMode:     constants.RollModeWeighted,
			SettleCycle:  constants.SettleCycleT1,
			Status:       true,
		}
		if err := models.DB.Create(&channel).Error; err != nil {
			stdLog.Fatalf("Failed to create demo channel: %v", err)
		}
		stdLog.Printf("Created channel: %s", channel.Code)
	} else {
		stdLog.Printf("Channel already exists: %s", channel.Code)
	}

	accounts := []models.PaymentChannelAccount{
		{
			ChannelID:     channel.ID,
			Name:          "演示子账户-主",
			InheritConfig: true,
			RollWeight:    70,
			Config: models.JSON(map[string]interface{}{
				"app_id":            "2021000000000001",
				"private_key":       "<replace-with-app-private-key>",
				"alipay_public_key": "<replace-with-alipay-public-key>",
			}),
			Status: true,
		},
		{
			ChannelID:     channel.ID,
			Name:          "演示子账户-备",
			InheritConfig: true,
			RollWeight:    30,
			Config: models.JSON(map[string]interface{}{
				"app_id":            "2021000000000002",
				"private_key":       "<replace-with-app-private-key>",
				"alipay_public_key": "<replace-with-alipay-public-key>",
			}),
			Status: true,
		},
	}
	for _, account := range accounts {
		var existing models.PaymentChannelAccount
		if err := models.DB.Where("channel_id = ? AND name = ?", account.ChannelID, account.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&account).Error; err != nil {
				stdLog.Printf("Failed to create channel account %s: %v", account.Name, err)
			} else {
				stdLog.Printf("Created channel account: %s", account.Name)
			}
		} else {
			stdLog.Printf("Channel account already exists: %s", account.Name)
		}
	}

	// 演示商户（含钱包与签名配置，私钥仅在创建时打印一次）
	var merchant models.Merchant
	if err := models.DB.Where("merchant_number = ?", demoMerchantNumber).First(&merchant).Error; err != nil {
		privateKey, publicKey, err := sign.GenerateRSAKeyPair()
		if err != nil {
			stdLog.Fatalf("Failed to generate merchant RSA keys: %v", err)
		}
		hashKey := randomSecretKey(32)

		merchant = models.Merchant{
			MerchantNumber: demoMerchantNumber,
			Name:           "演示商户",
			Email:          "demo-merchant@example.com",
			Status:         true,
			Competence:     models.StringArray([]string{constants.CompetencePay, constants.CompetenceRefund, constants.CompetenceWithdraw}),
		}
		err = models.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&merchant).Error; err != nil {
				return err
			}
			wallet := models.MerchantWallet{
				MerchantID:         merchant.ID,
				AvailableBalance:   models.NewMoneyFromDecimal(decimal.Zero),
				UnavailableBalance: models.NewMoneyFromDecimal(decimal.Zero),
				Prepaid:            models.NewMoneyFromDecimal(decimal.Zero),
			}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
			encryption := models.MerchantEncryption{
				MerchantID:   merchant.ID,
				Mode:         constants.EncryptionModeOpen,
				HashKey:      hashKey,
				RSAPublicKey: publicKey,
			}
			return tx.Create(&encryption).Error
		})
		if err != nil {
			stdLog.Fatalf("Failed to create demo merchant: %v", err)
		}

		stdLog.Printf("Created merchant: %s", merchant.MerchantNumber)
		fmt.Println("\n⚠️  演示商户密钥仅此一次输出，请妥善保存：")
		fmt.Printf("merchant_number: %s\n", merchant.MerchantNumber)
		fmt.Printf("hash_key:        %s\n", hashKey)
		fmt.Printf("rsa_private_key: %s\n", privateKey)
	} else {
		stdLog.Printf("Merchant already exists: %s", merchant.MerchantNumber)
	}

	// 演示黑名单条目
	blacklistValue := "203.0.113.9"
	blacklistHash := models.BlacklistEntityHash(constants.BlacklistTypeIPAddress, blacklistValue)
	var blacklist models.Blacklist
	if err := models.DB.Where("entity_hash = ?", blacklistHash).First(&blacklist).Error; err != nil {
		expiredAt := time.Now().AddDate(0, 1, 0)
		blacklist = models.Blacklist{
			EntityType:  constants.BlacklistTypeIPAddress,
			EntityValue: blacklistValue,
			EntityHash:  blacklistHash,
			Reason:      "演示数据：高频失败下单来源",
			Origin:      constants.BlacklistOriginManualReview,
			ExpiredAt:   &expiredAt,
		}
		if err := models.DB.Create(&blacklist).Error; err != nil {
			stdLog.Printf("Failed to create blacklist entry: %v", err)
		} else {
			stdLog.Printf("Created blacklist entry: %s", blacklistValue)
		}
	} else {
		stdLog.Printf("Blacklist entry already exists: %s", blacklistValue)
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 1 Super admin")
	fmt.Println("- 1 Demo merchant (wallet + encryption)")
	fmt.Println("- 1 Demo channel with 2 accounts")
	fmt.Println("- 1 Blacklist entry")
}

// randomSecretKey 生成指定长度的随机密钥（大小写字母与数字）
func randomSecretKey(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	limit := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			b.WriteByte(charset[0])
			continue
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String()
}
