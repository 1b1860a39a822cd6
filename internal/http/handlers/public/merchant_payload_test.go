package public

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

func newPayloadTestContext(t *testing.T, contentType, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/pay/unified", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	return c
}

func TestExtractPayloadFieldFromForm(t *testing.T) {
	form := url.Values{"payload": {`{"merchant_number":"M2026TEST0000001"}`}}
	c := newPayloadTestContext(t, "application/x-www-form-urlencoded", form.Encode())

	raw, err := extractPayloadField(c)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if raw != `{"merchant_number":"M2026TEST0000001"}` {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestExtractPayloadFieldFromJSONObject(t *testing.T) {
	c := newPayloadTestContext(t, "application/json", `{"payload":{"merchant_number":"M1","total_amount":"9.90"}}`)

	raw, err := extractPayloadField(c)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	params, err := flattenPayloadParams(raw)
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if params["merchant_number"] != "M1" || params["total_amount"] != "9.90" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestExtractPayloadFieldFromJSONString(t *testing.T) {
	c := newPayloadTestContext(t, "application/json", `{"payload":"{\"merchant_number\":\"M1\"}"}`)

	raw, err := extractPayloadField(c)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if raw != `{"merchant_number":"M1"}` {
		t.Fatalf("string payload should be unwrapped, got %s", raw)
	}
}

func TestExtractPayloadFieldMissing(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "no payload field", body: `{"other":1}`},
		{name: "null payload", body: `{"payload":null}`},
	}
	for _, tc := range cases {
		c := newPayloadTestContext(t, "application/json", tc.body)
		if _, err := extractPayloadField(c); !errors.Is(err, service.ErrPayloadInvalid) {
			t.Fatalf("%s: expected payload invalid, got %v", tc.name, err)
		}
	}
}

func TestFlattenPayloadParams(t *testing.T) {
	raw := `{"total_amount":10.050,"buyer_pay_fee":true,"buyer":{"ip":"198.51.100.9"},"note":null,"subject":"会员充值"}`
	params, err := flattenPayloadParams(raw)
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if params["total_amount"] != "10.050" {
		t.Fatalf("number literal must survive verbatim, got %q", params["total_amount"])
	}
	if params["buyer_pay_fee"] != "true" {
		t.Fatalf("bool should format as true/false, got %q", params["buyer_pay_fee"])
	}
	if params["buyer"] != `{"ip":"198.51.100.9"}` {
		t.Fatalf("nested object should compact to JSON text, got %q", params["buyer"])
	}
	if _, ok := params["note"]; ok {
		t.Fatal("null value should be skipped")
	}
	if params["subject"] != "会员充值" {
		t.Fatalf("string should pass through, got %q", params["subject"])
	}
}

func TestFlattenPayloadParamsRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`["a"]`, `"plain"`, `not json`} {
		if _, err := flattenPayloadParams(raw); !errors.Is(err, service.ErrPayloadInvalid) {
			t.Fatalf("%q: expected payload invalid, got %v", raw, err)
		}
	}
}

func TestRequirePayloadAmount(t *testing.T) {
	params := map[string]string{"amount": " 12.34 ", "bad": "abc"}

	amount, err := requirePayloadAmount(params, "amount")
	if err != nil {
		t.Fatalf("parse amount failed: %v", err)
	}
	if amount.String() != "12.34" {
		t.Fatalf("amount want 12.34 got %s", amount)
	}
	if _, err := requirePayloadAmount(params, "missing"); !errors.Is(err, service.ErrPayloadInvalid) {
		t.Fatalf("missing key should be payload invalid, got %v", err)
	}
	if _, err := requirePayloadAmount(params, "bad"); !errors.Is(err, service.ErrPayloadInvalid) {
		t.Fatalf("malformed amount should be payload invalid, got %v", err)
	}
}
