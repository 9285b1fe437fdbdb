package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
)

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      Amount `json:"amount"`
	Payments    *struct {
		Captures []Capture `json:"captures"`
	} `json:"payments,omitempty"`
}

type Payer struct {
	EmailAddress string `json:"email_address"`
	PayerID      string `json:"payer_id"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Payer         Payer          `json:"payer"`
}

// Total sums the purchase unit amounts. All units must share one currency.
func (o *Order) Total() (decimal.Decimal, string, error) {
	total := decimal.Zero
	currency := ""
	for _, pu := range o.PurchaseUnits {
		v, err := decimal.NewFromString(pu.Amount.Value)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("paypal: bad amount %q: %w", pu.Amount.Value, err)
		}
		if currency != "" && pu.Amount.CurrencyCode != currency {
			return decimal.Zero, "", fmt.Errorf("paypal: mixed currencies %s and %s", currency, pu.Amount.CurrencyCode)
		}
		currency = pu.Amount.CurrencyCode
		total = total.Add(v)
	}
	return total, currency, nil
}

// CaptureID returns the first capture of a captured order.
func (o *Order) CaptureID() string {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			return pu.Payments.Captures[0].ID
		}
	}
	return ""
}

type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s", e.StatusCode, e.Name, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client whose requests carry an OAuth2 client-credentials token
// obtained from {baseURL}/v1/oauth2/token and cached until it expires.
func New(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	hc := cc.Client(context.Background())
	hc.Timeout = timeout
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) CaptureOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", struct{}{}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paypal: encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		_ = json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal: decode response: %w", err)
	}
	return nil
}
