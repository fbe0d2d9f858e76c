package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bazario/bazario-backend/pkg/config"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

func testConfig(baseURL string) config.RazorpayConfig {
	return config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: "whsec",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		Currency:      "INR",
	}
}

func TestNewClientValidatesCredentials(t *testing.T) {
	cfg := testConfig("")
	cfg.KeyID = ""
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing key id")
	}

	cfg = testConfig("")
	cfg.WebhookSecret = " "
	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing webhook secret")
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	var gotBody createOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuthUser, gotAuthPass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GatewayOrder{
			ID:       "order_abc123",
			Amount:   gotBody.Amount,
			Currency: gotBody.Currency,
			Receipt:  gotBody.Receipt,
			Status:   "created",
		})
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	order, err := client.CreateOrder(context.Background(), CreateOrderParams{
		AmountSubunits: 22000,
		Receipt:        "pay_1",
	})
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if order.ID != "order_abc123" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if gotAuthUser != "rzp_test_key" || gotAuthPass != "rzp_test_secret" {
		t.Fatal("basic auth credentials not forwarded")
	}
	if gotBody.Amount != 22000 || gotBody.Currency != "INR" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
}

func TestCreateOrderGatewayErrorMapsToDependency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = client.CreateOrder(context.Background(), CreateOrderParams{AmountSubunits: 100})
	if err == nil {
		t.Fatal("expected error from gateway failure")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient(context.Background(), testConfig("http://localhost:0"), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = client.CreateOrder(context.Background(), CreateOrderParams{AmountSubunits: 0})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := SignPayload("whsec", body)

	if !VerifySignature("whsec", body, sig) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifySignature("whsec", body, sig+"00") {
		t.Fatal("tampered signature should fail")
	}
	if VerifySignature("other", body, sig) {
		t.Fatal("wrong secret should fail")
	}
	if VerifySignature("whsec", body, "") {
		t.Fatal("empty signature should fail")
	}
}

func TestParseWebhookEvent(t *testing.T) {
	raw := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "amount": 22000, "status": "captured"}}}
	}`)

	event, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("ParseWebhookEvent returned error: %v", err)
	}
	if event.Event != EventPaymentCaptured {
		t.Fatalf("unexpected event %q", event.Event)
	}
	entity := event.Payload.Payment.Entity
	if entity.ID != "pay_1" || entity.OrderID != "order_1" || entity.Amount != 22000 {
		t.Fatalf("unexpected entity %+v", entity)
	}
}
