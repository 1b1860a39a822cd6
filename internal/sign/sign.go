package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/emmansun/gmsm/sm3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/sha3"
)

// 支持的签名算法
const (
	TypeXXH  = "xxh"
	TypeSHA3 = "sha3"
	TypeSM3  = "sm3"
	TypeRSA2 = "rsa2"
)

var (
	ErrSignTypeInvalid  = errors.New("sign type invalid")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrKeyInvalid       = errors.New("key invalid")
)

// IsSupportedType 判断算法是否受支持
func IsSupportedType(signType string) bool {
	switch signType {
	case TypeXXH, TypeSHA3, TypeSM3, TypeRSA2:
		return true
	}
	return false
}

// BuildSignContent 构造待签名串：键升序排列，跳过空值与 sign 字段，按 k=v&k=v 拼接
func BuildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

// Sign 对参数签名，返回待签名串与签名值。
// xxh/sha3/sm3 以 key 作为共享摘要密钥拼接后取十六进制摘要；
// rsa2 以 key 作为 RSA 私钥（PEM 或无头 Base64）做 SHA256WithRSA，返回 Base64。
func Sign(signType string, params map[string]string, key string) (string, string, error) {
	content := BuildSignContent(params)
	switch signType {
	case TypeXXH, TypeSHA3, TypeSM3:
		signature, err := digest(signType, content, key)
		if err != nil {
			return content, "", err
		}
		return content, signature, nil
	case TypeRSA2:
		signature, err := signRSA2(content, key)
		if err != nil {
			return content, "", err
		}
		return content, signature, nil
	}
	return content, "", ErrSignTypeInvalid
}

// Verify 校验参数签名。xxh/sha3/sm3 的 key 为共享摘要密钥；rsa2 的 key 为对方公钥。
func Verify(signType string, params map[string]string, key, signature string) error {
	if strings.TrimSpace(signature) == "" {
		return ErrSignatureInvalid
	}
	content := BuildSignContent(params)
	switch signType {
	case TypeXXH, TypeSHA3, TypeSM3:
		expected, err := digest(signType, content, key)
		if err != nil {
			return err
		}
		if !strings.EqualFold(expected, strings.TrimSpace(signature)) {
			return ErrSignatureInvalid
		}
		return nil
	case TypeRSA2:
		return verifyRSA2(content, signature, key)
	}
	return ErrSignTypeInvalid
}

func digest(signType, content, hashKey string) (string, error) {
	data := []byte(content + hashKey)
	switch signType {
	case TypeXXH:
		sum := xxh3.Hash128(data)
		return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo), nil
	case TypeSHA3:
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case TypeSM3:
		h := sm3.New()
		h.Write(data)
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	return "", ErrSignTypeInvalid
}

func signRSA2(content, privateKey string) (string, error) {
	key, err := ParseRSAPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	hashed := sha256.Sum256([]byte(content))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func verifyRSA2(content, signature, publicKey string) error {
	key, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		return ErrSignatureInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrSignatureInvalid
	}
	hashed := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], raw); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}
