// Package payment talks to the payment gateway. Order creation and
// signature verification follow the Razorpay HTTP contract; everything
// the storefront needs from the gateway sits behind Gateway so tests
// and the model layer never touch the network shape directly.
package payment

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
	"strings"
	"time"
)

type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
}

type Payment struct {
	ID     string
	Method string
	Status string
}

type CreateOrderRequest struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	// VerifySignature checks the checkout callback signature:
	// hex(HMAC-SHA256(orderID + "|" + paymentID, key secret)).
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

const defaultBaseURL = "https://api.razorpay.com"

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(keyID, keySecret, baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      hc,
	}
}

func (c *Client) KeyID() string { return c.keyID }

type orderWire struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type paymentWire struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Status string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if req.AmountPaise <= 0 {
		return Order{}, fmt.Errorf("amount must be > 0")
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	body := orderWire{
		Amount:   req.AmountPaise,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}
	var out orderWire
	code, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/orders", body, &out)
	if err != nil {
		return Order{}, err
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return Order{}, &GatewayError{Op: "create order", Code: code, Body: raw}
	}
	return Order{
		ID:          out.ID,
		AmountPaise: out.Amount,
		Currency:    out.Currency,
		Receipt:     out.Receipt,
	}, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	if paymentID == "" {
		return Payment{}, fmt.Errorf("paymentID required")
	}
	var out paymentWire
	code, raw, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil, &out)
	if err != nil {
		return Payment{}, err
	}
	if code != http.StatusOK {
		return Payment{}, &GatewayError{Op: "fetch payment", Code: code, Body: raw}
	}
	return Payment{ID: out.ID, Method: out.Method, Status: out.Status}, nil
}

func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

// VerifySignature is exported separately so tests and tooling can
// check signatures without a constructed client.
func VerifySignature(keySecret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) doJSON(ctx context.Context, method, url string, req any, resp any) (int, string, error) {
	var rd io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return 0, "", err
		}
		rd = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, "", err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer rsp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))
	raw := strings.TrimSpace(string(body))

	if resp != nil && len(body) > 0 {
		_ = json.Unmarshal(body, resp) // tolerate non-JSON error bodies
	}
	return rsp.StatusCode, raw, nil
}

type GatewayError struct {
	Op   string
	Code int
	Body string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: status=%d body=%q", e.Op, e.Code, e.Body)
}
