package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketplace-order-api/internal/config"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the processor's HMAC-SHA256 of the callback body.
const SignatureHeader = "X-Payment-Signature"

type PaymentClient interface {
	CreateIntent(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*CreateIntentResponse, error)
	VerifyCallbackSignature(headers http.Header, body []byte) error
}

type paymentClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	apiKey         string
	callbackSecret string
}

type CreateIntentResponse struct {
	PaymentID   string
	ApprovalURL string
}

func NewPaymentClient(paymentCfg *config.Payment) PaymentClient {
	return &paymentClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:     paymentCfg.BaseApiURL,
		apiKey:         paymentCfg.APIKey,
		callbackSecret: paymentCfg.CallbackSecret,
	}
}

func (c *paymentClientImpl) CreateIntent(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*CreateIntentResponse, error) {
	payload := map[string]interface{}{
		"reference": orderID,
		"amount": map[string]string{
			"currency_code": currency,
			"value":         amount.StringFixed(2),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/payment-intents",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("processor error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode processor response: %w", err)
	}

	approvalURL := ""
	for _, link := range result.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
		}
	}

	return &CreateIntentResponse{
		PaymentID:   result.ID,
		ApprovalURL: approvalURL,
	}, nil
}

func (c *paymentClientImpl) VerifyCallbackSignature(headers http.Header, body []byte) error {
	got := headers.Get(SignatureHeader)
	if got == "" {
		return fmt.Errorf("missing %s header", SignatureHeader)
	}

	mac := hmac.New(sha256.New, []byte(c.callbackSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(got), []byte(want)) {
		return fmt.Errorf("callback signature mismatch")
	}

	return nil
}
