package service

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/sign"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMerchantServiceTest(t *testing.T) (*MerchantService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:merchant_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Merchant{}, &models.MerchantWallet{}, &models.MerchantEncryption{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.Payment.Timezone = "Asia/Shanghai"
	svc := NewMerchantService(cfg, repository.NewMerchantRepository(db), repository.NewWalletRepository(db))
	return svc, db
}

func TestMerchantServiceCreateMerchant(t *testing.T) {
	svc, db := setupMerchantServiceTest(t)

	merchant, err := svc.CreateMerchant(MerchantInput{
		Name:       "测试商户",
		Email:      "merchant@example.com",
		Status:     true,
		Competence: []string{constants.CompetencePay, constants.CompetenceRefund},
	})
	if err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	if !regexp.MustCompile(`^M\d{4}[A-Z0-9]{11}$`).MatchString(merchant.MerchantNumber) {
		t.Fatalf("unexpected merchant number: %s", merchant.MerchantNumber)
	}

	var wallet models.MerchantWallet
	if err := db.Where("merchant_id = ?", merchant.ID).First(&wallet).Error; err != nil {
		t.Fatalf("wallet row missing: %v", err)
	}
	if !wallet.AvailableBalance.IsZero() {
		t.Fatalf("new wallet must start at zero, got %s", wallet.AvailableBalance)
	}

	var encryption models.MerchantEncryption
	if err := db.Where("merchant_id = ?", merchant.ID).First(&encryption).Error; err != nil {
		t.Fatalf("encryption row missing: %v", err)
	}
	if encryption.Mode != constants.EncryptionModeOpen {
		t.Fatalf("default mode must be open, got %s", encryption.Mode)
	}
	if len(encryption.HashKey) != 32 {
		t.Fatalf("hash key must be 32 chars, got %d", len(encryption.HashKey))
	}
}

func TestMerchantServiceCreateValidation(t *testing.T) {
	svc, _ := setupMerchantServiceTest(t)

	if _, err := svc.CreateMerchant(MerchantInput{Name: "  "}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for empty name, got: %v", err)
	}
	if _, err := svc.CreateMerchant(MerchantInput{Name: "商户", Competence: []string{"transfer"}}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for unknown competence, got: %v", err)
	}
}

func TestMerchantServiceEncryptionFlow(t *testing.T) {
	svc, _ := setupMerchantServiceTest(t)

	merchant, err := svc.CreateMerchant(MerchantInput{Name: "签名商户", Status: true})
	if err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}

	if _, err := svc.UpdateEncryption(merchant.ID, MerchantEncryptionInput{Mode: "md5"}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for unknown mode, got: %v", err)
	}
	if _, err := svc.UpdateEncryption(merchant.ID, MerchantEncryptionInput{Mode: constants.EncryptionModeOnlyRSA2}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("only_rsa2 without public key must fail, got: %v", err)
	}

	privateKey, encryption, err := svc.RegenerateRSAKeyPair(merchant.ID)
	if err != nil {
		t.Fatalf("regenerate keypair failed: %v", err)
	}
	if privateKey == "" || encryption.RSAPublicKey == "" {
		t.Fatal("keypair must produce both halves")
	}
	if _, err := svc.UpdateEncryption(merchant.ID, MerchantEncryptionInput{Mode: constants.EncryptionModeOnlyRSA2}); err != nil {
		t.Fatalf("only_rsa2 with stored key failed: %v", err)
	}

	old := encryption.HashKey
	rotated, err := svc.RegenerateHashKey(merchant.ID)
	if err != nil {
		t.Fatalf("regenerate hash key failed: %v", err)
	}
	if rotated.HashKey == old {
		t.Fatal("hash key must rotate")
	}
}

func TestMerchantServiceVerifySignedParams(t *testing.T) {
	svc, _ := setupMerchantServiceTest(t)

	merchant, err := svc.CreateMerchant(MerchantInput{Name: "验签商户", Status: true})
	if err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	encryption, err := svc.GetEncryption(merchant.ID)
	if err != nil {
		t.Fatalf("get encryption failed: %v", err)
	}

	params := map[string]string{
		"merchant_number": merchant.MerchantNumber,
		"out_trade_no":    "ORD-001",
		"total_amount":    "100.00",
		"sign_type":       constants.SignTypeSHA3,
	}
	_, signature, err := sign.Sign(constants.SignTypeSHA3, params, encryption.HashKey)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	params["sign"] = signature
	if err := svc.VerifySignedParams(encryption, params); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	params["total_amount"] = "101.00"
	if err := svc.VerifySignedParams(encryption, params); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered params must fail verification, got: %v", err)
	}

	// 仅允许 sha3 时其它算法被拒
	if _, err := svc.UpdateEncryption(merchant.ID, MerchantEncryptionInput{Mode: constants.EncryptionModeOnlySHA3}); err != nil {
		t.Fatalf("update mode failed: %v", err)
	}
	encryption, _ = svc.GetEncryption(merchant.ID)
	params["sign_type"] = constants.SignTypeXXH
	if err := svc.VerifySignedParams(encryption, params); !errors.Is(err, ErrSignTypeNotAllowed) {
		t.Fatalf("disallowed sign type must be rejected, got: %v", err)
	}
}

func TestMerchantServiceResolveActive(t *testing.T) {
	svc, _ := setupMerchantServiceTest(t)

	if _, _, err := svc.ResolveActive("M2024UNKNOWN000"); !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}

	merchant, err := svc.CreateMerchant(MerchantInput{Name: "停用商户", Status: false})
	if err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	if _, _, err := svc.ResolveActive(merchant.MerchantNumber); !errors.Is(err, ErrMerchantDisabled) {
		t.Fatalf("expected disabled, got: %v", err)
	}
}

func TestMerchantServiceRequireCompetence(t *testing.T) {
	svc, _ := setupMerchantServiceTest(t)

	merchant, err := svc.CreateMerchant(MerchantInput{
		Name:       "能力商户",
		Status:     true,
		Competence: []string{constants.CompetencePay},
	})
	if err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}

	if err := svc.RequireCompetence(merchant, constants.CompetencePay); err != nil {
		t.Fatalf("pay competence must pass: %v", err)
	}
	if err := svc.RequireCompetence(merchant, constants.CompetenceWithdraw); !errors.Is(err, ErrMerchantCompetenceDenied) {
		t.Fatalf("missing competence must be denied, got: %v", err)
	}

	merchant.RiskStatus = true
	if err := svc.RequireCompetence(merchant, constants.CompetencePay); !errors.Is(err, ErrMerchantCompetenceDenied) {
		t.Fatalf("risk-flagged merchant must be denied, got: %v", err)
	}
}
