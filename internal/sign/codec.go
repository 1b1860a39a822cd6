package sign

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCipherKeyInvalid = errors.New("cipher key invalid")
	ErrCipherInvalid    = errors.New("ciphertext invalid")
)

// EncodePayload 加密管理端负载：XChaCha20-Poly1305，24 字节随机 nonce 前置，整体 Base64
func EncodePayload(key []byte, plain []byte) (string, error) {
	if len(key) != chacha20poly1305.KeySize {
		return "", ErrCipherKeyInvalid
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", ErrCipherKeyInvalid
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecodePayload 解密管理端负载，认证失败返回 ErrCipherInvalid
func DecodePayload(key []byte, encoded string) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrCipherKeyInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCipherInvalid
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return nil, ErrCipherInvalid
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrCipherKeyInvalid
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCipherInvalid
	}
	return plain, nil
}
