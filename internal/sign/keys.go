package sign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
)

// ParseRSAPrivateKey 解析 RSA 私钥，兼容 PEM 与无头 Base64 形态
func ParseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if strings.Contains(block.Type, "PRIVATE KEY") {
			if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
				if rsaKey, ok := key.(*rsa.PrivateKey); ok {
					return rsaKey, nil
				}
			}
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	if key, err := x509.ParsePKCS8PrivateKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrKeyInvalid
}

// ParseRSAPublicKey 解析 RSA 公钥，兼容 PEM 与无头 Base64 形态
func ParseRSAPublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
			if rsaKey, ok := key.(*rsa.PublicKey); ok {
				return rsaKey, nil
			}
		}
		if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	if key, err := x509.ParsePKIXPublicKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrKeyInvalid
}

// GenerateRSAKeyPair 生成 2048 位 RSA 密钥对，返回无头 Base64 形态（PKCS8 私钥 / PKIX 公钥）
func GenerateRSAKeyPair() (privateKey string, publicKey string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(privDER), base64.StdEncoding.EncodeToString(pubDER), nil
}

func decodeKeyBody(raw string) ([]byte, error) {
	lines := strings.Split(raw, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-----BEGIN ") || strings.HasPrefix(trimmed, "-----END ") {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return nil, ErrKeyInvalid
	}
	body := strings.Join(parts, "")
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	return decoded, nil
}
