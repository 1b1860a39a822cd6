package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/paygate-next/internal/config"
	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/models"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/sign"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// secretKeyCharset 商户摘要密钥字符集
const secretKeyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// MerchantService 商户管理与商户请求鉴权
type MerchantService struct {
	cfg          *config.Config
	merchantRepo repository.MerchantRepository
	walletRepo   repository.WalletRepository
}

// NewMerchantService 创建商户服务
func NewMerchantService(cfg *config.Config, merchantRepo repository.MerchantRepository, walletRepo repository.WalletRepository) *MerchantService {
	return &MerchantService{cfg: cfg, merchantRepo: merchantRepo, walletRepo: walletRepo}
}

// MerchantInput 商户创建/更新入参
type MerchantInput struct {
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Mobile           string                  `json:"mobile"`
	Status           bool                    `json:"status"`
	RiskStatus       bool                    `json:"risk_status"`
	BuyerPayFee      bool                    `json:"buyer_pay_fee"`
	Competence       []string                `json:"competence"`
	ChannelWhitelist models.ChannelWhitelist `json:"channel_whitelist"`
}

// MerchantEncryptionInput 商户签名配置入参
type MerchantEncryptionInput struct {
	Mode         string `json:"mode"`
	RSAPublicKey string `json:"rsa_public_key"`
}

// CreateMerchant 创建商户，同事务初始化钱包与签名配置
func (s *MerchantService) CreateMerchant(input MerchantInput) (*models.Merchant, error) {
	if err := validateMerchantInput(input); err != nil {
		return nil, err
	}

	number, err := s.generateMerchantNumber()
	if err != nil {
		return nil, err
	}

	merchant := &models.Merchant{
		MerchantNumber:   number,
		Name:             strings.TrimSpace(input.Name),
		Email:            strings.TrimSpace(input.Email),
		Mobile:           strings.TrimSpace(input.Mobile),
		Status:           input.Status,
		RiskStatus:       input.RiskStatus,
		BuyerPayFee:      input.BuyerPayFee,
		Competence:       models.StringArray(input.Competence),
		ChannelWhitelist: input.ChannelWhitelist,
	}

	err = s.walletRepo.Transaction(func(tx *gorm.DB) error {
		merchantRepo := s.merchantRepo.WithTx(tx)
		if err := merchantRepo.Create(merchant); err != nil {
			return err
		}
		wallet := &models.MerchantWallet{
			MerchantID:         merchant.ID,
			AvailableBalance:   models.NewMoneyFromDecimal(decimal.Zero),
			UnavailableBalance: models.NewMoneyFromDecimal(decimal.Zero),
			Prepaid:            models.NewMoneyFromDecimal(decimal.Zero),
		}
		if err := s.walletRepo.WithTx(tx).Create(wallet); err != nil {
			return err
		}
		encryption := &models.MerchantEncryption{
			MerchantID: merchant.ID,
			Mode:       constants.EncryptionModeOpen,
			HashKey:    randFromCharset(secretKeyCharset, 32),
		}
		return merchantRepo.SaveEncryption(encryption)
	})
	if err != nil {
		return nil, err
	}
	return merchant, nil
}

// UpdateMerchant 更新商户资料
func (s *MerchantService) UpdateMerchant(id uint, input MerchantInput) (*models.Merchant, error) {
	if err := validateMerchantInput(input); err != nil {
		return nil, err
	}
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	merchant.Name = strings.TrimSpace(input.Name)
	merchant.Email = strings.TrimSpace(input.Email)
	merchant.Mobile = strings.TrimSpace(input.Mobile)
	merchant.Status = input.Status
	merchant.RiskStatus = input.RiskStatus
	merchant.BuyerPayFee = input.BuyerPayFee
	merchant.Competence = models.StringArray(input.Competence)
	merchant.ChannelWhitelist = input.ChannelWhitelist

	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// DeleteMerchant 软删除商户
func (s *MerchantService) DeleteMerchant(id uint) error {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return err
	}
	if merchant == nil {
		return ErrMerchantNotFound
	}
	return s.merchantRepo.Delete(id)
}

// GetMerchantByID 按 ID 查询商户
func (s *MerchantService) GetMerchantByID(id uint) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	return merchant, nil
}

// GetMerchantByNumber 按商户号查询商户
func (s *MerchantService) GetMerchantByNumber(number string) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByMerchantNumber(strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	return merchant, nil
}

// ListMerchants 分页查询商户
func (s *MerchantService) ListMerchants(filter repository.MerchantListFilter) ([]models.Merchant, int64, error) {
	return s.merchantRepo.List(filter)
}

// GetEncryption 查询商户签名配置，缺失时补建默认配置
func (s *MerchantService) GetEncryption(merchantID uint) (*models.MerchantEncryption, error) {
	if _, err := s.GetMerchantByID(merchantID); err != nil {
		return nil, err
	}
	encryption, err := s.merchantRepo.GetEncryptionByMerchantID(merchantID)
	if err != nil {
		return nil, err
	}
	if encryption != nil {
		return encryption, nil
	}
	encryption = &models.MerchantEncryption{
		MerchantID: merchantID,
		Mode:       constants.EncryptionModeOpen,
		HashKey:    randFromCharset(secretKeyCharset, 32),
	}
	if err := s.merchantRepo.SaveEncryption(encryption); err != nil {
		return nil, err
	}
	return encryption, nil
}

// UpdateEncryption 更新签名模式与商户 RSA 公钥
func (s *MerchantService) UpdateEncryption(merchantID uint, input MerchantEncryptionInput) (*models.MerchantEncryption, error) {
	if !isValidEncryptionMode(input.Mode) {
		return nil, fmt.Errorf("%w: 未知加密模式 %s", ErrPayloadInvalid, input.Mode)
	}
	encryption, err := s.GetEncryption(merchantID)
	if err != nil {
		return nil, err
	}

	publicKey := strings.TrimSpace(input.RSAPublicKey)
	if publicKey != "" {
		if _, err := sign.ParseRSAPublicKey(publicKey); err != nil {
			return nil, fmt.Errorf("%w: RSA 公钥无法解析", ErrPayloadInvalid)
		}
		encryption.RSAPublicKey = publicKey
	}
	if input.Mode == constants.EncryptionModeOnlyRSA2 && encryption.RSAPublicKey == "" {
		return nil, fmt.Errorf("%w: 缺少商户 RSA 公钥", ErrPayloadInvalid)
	}
	encryption.Mode = input.Mode

	if err := s.merchantRepo.SaveEncryption(encryption); err != nil {
		return nil, err
	}
	return encryption, nil
}

// RegenerateHashKey 重置商户摘要密钥
func (s *MerchantService) RegenerateHashKey(merchantID uint) (*models.MerchantEncryption, error) {
	encryption, err := s.GetEncryption(merchantID)
	if err != nil {
		return nil, err
	}
	encryption.HashKey = randFromCharset(secretKeyCharset, 32)
	if err := s.merchantRepo.SaveEncryption(encryption); err != nil {
		return nil, err
	}
	return encryption, nil
}

// RegenerateRSAKeyPair 平台代生成商户 RSA 密钥对，私钥仅返回一次不落库
func (s *MerchantService) RegenerateRSAKeyPair(merchantID uint) (privateKey string, encryption *models.MerchantEncryption, err error) {
	encryption, err = s.GetEncryption(merchantID)
	if err != nil {
		return "", nil, err
	}
	privateKey, publicKey, err := sign.GenerateRSAKeyPair()
	if err != nil {
		return "", nil, err
	}
	encryption.RSAPublicKey = publicKey
	if err := s.merchantRepo.SaveEncryption(encryption); err != nil {
		return "", nil, err
	}
	return privateKey, encryption, nil
}

// ResolveActive 公共接口按商户号加载可用商户及签名配置
func (s *MerchantService) ResolveActive(merchantNumber string) (*models.Merchant, *models.MerchantEncryption, error) {
	merchant, err := s.merchantRepo.GetByMerchantNumber(strings.TrimSpace(merchantNumber))
	if err != nil {
		return nil, nil, err
	}
	if merchant == nil {
		return nil, nil, ErrMerchantNotFound
	}
	if !merchant.Status {
		return nil, nil, ErrMerchantDisabled
	}
	encryption, err := s.merchantRepo.GetEncryptionByMerchantID(merchant.ID)
	if err != nil {
		return nil, nil, err
	}
	if encryption == nil {
		return nil, nil, ErrEncryptionNotFound
	}
	return merchant, encryption, nil
}

// VerifySignedParams 按商户签名模式校验请求参数
func (s *MerchantService) VerifySignedParams(encryption *models.MerchantEncryption, params map[string]string) error {
	signType := params["sign_type"]
	if signType == "" {
		return fmt.Errorf("%w: 缺少 sign_type", ErrPayloadInvalid)
	}
	if !sign.IsSupportedType(signType) {
		return fmt.Errorf("%w: %s", ErrSignTypeNotAllowed, signType)
	}
	if !encryption.AllowSignType(signType) {
		return fmt.Errorf("%w: %s", ErrSignTypeNotAllowed, signType)
	}
	signature := params["sign"]
	if signature == "" {
		return fmt.Errorf("%w: 缺少 sign", ErrPayloadInvalid)
	}

	key := encryption.HashKey
	if signType == constants.SignTypeRSA2 {
		if encryption.RSAPublicKey == "" {
			return fmt.Errorf("%w: 商户未配置 RSA 公钥", ErrEncryptionNotFound)
		}
		key = encryption.RSAPublicKey
	}
	if err := sign.Verify(signType, params, key, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// RequireCompetence 校验商户能力开关
func (s *MerchantService) RequireCompetence(merchant *models.Merchant, code string) error {
	if !merchant.HasCompetence(code) {
		return fmt.Errorf("%w: %s", ErrMerchantCompetenceDenied, code)
	}
	if merchant.RiskStatus {
		return fmt.Errorf("%w: 商户已被风控限制", ErrMerchantCompetenceDenied)
	}
	return nil
}

func (s *MerchantService) generateMerchantNumber() (string, error) {
	now := time.Now().In(s.cfg.Location())
	for attempt := 0; attempt < 5; attempt++ {
		number := GenerateMerchantNumber(now)
		exists, err := s.merchantRepo.ExistsByMerchantNumber(number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrMerchantNumberGenerate
}

func validateMerchantInput(input MerchantInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: 商户名称不能为空", ErrPayloadInvalid)
	}
	for _, code := range input.Competence {
		switch code {
		case constants.CompetencePay, constants.CompetenceRefund, constants.CompetenceWithdraw:
		default:
			return fmt.Errorf("%w: 未知能力 %s", ErrPayloadInvalid, code)
		}
	}
	for _, entry := range input.ChannelWhitelist {
		if entry.ChannelID == 0 {
			return fmt.Errorf("%w: 白名单渠道 ID 不能为空", ErrPayloadInvalid)
		}
	}
	return nil
}

func isValidEncryptionMode(mode string) bool {
	switch mode {
	case constants.EncryptionModeOpen,
		constants.EncryptionModeOnlyXXH,
		constants.EncryptionModeOnlySHA3,
		constants.EncryptionModeOnlySM3,
		constants.EncryptionModeOnlyRSA2:
		return true
	}
	return false
}
