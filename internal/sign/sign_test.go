package sign

import (
	"strings"
	"testing"
)

func TestBuildSignContent(t *testing.T) {
	params := map[string]string{
		"mch_id":       "M2024ABCDEFGHIJK",
		"out_trade_no": "ORD-001",
		"total_amount": "100.00",
		"sign":         "should-be-skipped",
		"attach":       "",
		"subject":      "foo",
	}
	got := BuildSignContent(params)
	want := "mch_id=M2024ABCDEFGHIJK&out_trade_no=ORD-001&subject=foo&total_amount=100.00"
	if got != want {
		t.Fatalf("BuildSignContent = %q, want %q", got, want)
	}
}

func TestSignVerifyDigestRoundtrip(t *testing.T) {
	params := map[string]string{
		"trade_no":     "P2401021530450001234ABCDE",
		"total_amount": "100.00",
		"timestamp":    "1704180645",
	}
	key := "0123456789abcdef0123456789abcdef"

	for _, signType := range []string{TypeXXH, TypeSHA3, TypeSM3} {
		t.Run(signType, func(t *testing.T) {
			content, signature, err := Sign(signType, params, key)
			if err != nil {
				t.Fatalf("Sign(%s) error: %v", signType, err)
			}
			if content == "" || signature == "" {
				t.Fatalf("Sign(%s) returned empty content or signature", signType)
			}
			if err := Verify(signType, params, key, signature); err != nil {
				t.Fatalf("Verify(%s) error: %v", signType, err)
			}
			// 大小写不敏感
			if err := Verify(signType, params, key, strings.ToUpper(signature)); err != nil {
				t.Fatalf("Verify(%s) uppercase error: %v", signType, err)
			}
			// 篡改参数后必须失败
			tampered := map[string]string{}
			for k, v := range params {
				tampered[k] = v
			}
			tampered["total_amount"] = "100.01"
			if err := Verify(signType, tampered, key, signature); err == nil {
				t.Fatalf("Verify(%s) accepted tampered params", signType)
			}
		})
	}
}

func TestSignVerifyRSA2Roundtrip(t *testing.T) {
	privateKey, publicKey, err := GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair error: %v", err)
	}

	params := map[string]string{
		"trade_no":  "P2401021530450001234ABCDE",
		"attach":    "hello",
		"sign_type": "rsa2",
		"timestamp": "1704180645",
	}
	content, signature, err := Sign(TypeRSA2, params, privateKey)
	if err != nil {
		t.Fatalf("Sign(rsa2) error: %v", err)
	}
	if !strings.Contains(content, "sign_type=rsa2") {
		t.Fatalf("canonical content should keep sign_type, got %q", content)
	}
	if err := Verify(TypeRSA2, params, publicKey, signature); err != nil {
		t.Fatalf("Verify(rsa2) error: %v", err)
	}

	params["attach"] = "tampered"
	if err := Verify(TypeRSA2, params, publicKey, signature); err == nil {
		t.Fatal("Verify(rsa2) accepted tampered params")
	}
}

func TestVerifyRejectsUnknownType(t *testing.T) {
	if err := Verify("md5", map[string]string{"a": "1"}, "key", "abc"); err == nil {
		t.Fatal("expected error for unsupported sign type")
	}
	if _, _, err := Sign("md5", map[string]string{"a": "1"}, "key"); err == nil {
		t.Fatal("expected error for unsupported sign type")
	}
}

func TestVerifyRejectsEmptySignature(t *testing.T) {
	if err := Verify(TypeSHA3, map[string]string{"a": "1"}, "key", "  "); err == nil {
		t.Fatal("expected error for empty signature")
	}
}

func TestParseRSAKeysHeaderless(t *testing.T) {
	privateKey, publicKey, err := GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair error: %v", err)
	}
	if _, err := ParseRSAPrivateKey(privateKey); err != nil {
		t.Fatalf("ParseRSAPrivateKey headerless error: %v", err)
	}
	if _, err := ParseRSAPublicKey(publicKey); err != nil {
		t.Fatalf("ParseRSAPublicKey headerless error: %v", err)
	}

	// 带 PEM 头的形态也要能解析
	wrapped := "-----BEGIN PUBLIC KEY-----\n" + publicKey + "\n-----END PUBLIC KEY-----"
	if _, err := ParseRSAPublicKey(wrapped); err != nil {
		t.Fatalf("ParseRSAPublicKey pem error: %v", err)
	}
}
