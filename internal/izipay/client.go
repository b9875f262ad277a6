package izipay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ms-payments/internal/apperr"
	"ms-payments/internal/logger"
)

// Client talks to the Izipay REST API. Only CreatePayment is used today;
// the session it opens is later confirmed through the browser return and
// the server-to-server webhook rather than through this client.
type Client struct {
	endpoint   string
	siteID     string
	password   string
	publicKey  string
	jsURL      string
	httpClient *http.Client
	logger     *logger.Logger
}

type ClientConfig struct {
	Endpoint    string
	SiteID      string
	APIPassword string
	PublicKey   string
	JSURL       string
	Timeout     time.Duration
}

func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		siteID:     cfg.SiteID,
		password:   cfg.APIPassword,
		publicKey:  cfg.PublicKey,
		jsURL:      cfg.JSURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// PublicKey is embedded by the front end when mounting the payment form.
func (c *Client) PublicKey() string { return c.publicKey }

// JSURL is the script URL of the embedded form library.
func (c *Client) JSURL() string { return c.jsURL }

type Customer struct {
	Email          string          `json:"email,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	BillingDetails *BillingDetails `json:"billingDetails,omitempty"`
}

type BillingDetails struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Identity    string `json:"identityCode,omitempty"`
}

type CreatePaymentInput struct {
	Amount   int64  // minor units
	Currency string // ISO 4217
	OrderID  string
	Customer Customer
	Metadata map[string]string
}

type CreatePaymentResult struct {
	FormToken string
	Answer    Answer
	Raw       []byte
}

// CreatePayment opens a payment session and returns the formToken the
// browser needs to render the card form.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	payload := removeEmpty(map[string]interface{}{
		"amount":   input.Amount,
		"currency": input.Currency,
		"orderId":  input.OrderID,
		"customer": removeEmpty(map[string]interface{}{
			"email":     input.Customer.Email,
			"reference": input.Customer.Reference,
			"billingDetails": removeEmpty(map[string]interface{}{
				"firstName":    billingField(input.Customer, func(b *BillingDetails) string { return b.FirstName }),
				"lastName":     billingField(input.Customer, func(b *BillingDetails) string { return b.LastName }),
				"phoneNumber":  billingField(input.Customer, func(b *BillingDetails) string { return b.PhoneNumber }),
				"identityCode": billingField(input.Customer, func(b *BillingDetails) string { return b.Identity }),
			}),
		}),
		"metadata": metadataValue(input.Metadata),
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding create payment request: %w", err)
	}

	url := c.endpoint + "/V4/Charge/CreatePayment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building create payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.siteID, c.password))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("IZIPAY", fmt.Sprintf("create payment request failed for order %s: %v", input.OrderID, err))
		return nil, apperr.GatewayCreateFailed(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.GatewayCreateFailed(err)
	}

	var envelope struct {
		Status string `json:"status"`
		Answer Answer `json:"answer"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Error("IZIPAY", fmt.Sprintf("unreadable create payment response for order %s: %v", input.OrderID, err))
		return nil, apperr.GatewayCreateFailed(fmt.Errorf("decoding response: %w", err))
	}

	if resp.StatusCode >= 400 || envelope.Status == "ERROR" || envelope.Answer == nil {
		c.logger.Error("IZIPAY", fmt.Sprintf("create payment rejected for order %s: %s", input.OrderID, gatewayErrorDetail(envelope.Answer, resp.StatusCode)))
		return nil, apperr.GatewayCreateFailed(fmt.Errorf("%s", gatewayErrorDetail(envelope.Answer, resp.StatusCode)))
	}

	formToken, ok := envelope.Answer.stringField("formToken")
	if !ok {
		c.logger.Error("IZIPAY", fmt.Sprintf("create payment response for order %s carried no formToken", input.OrderID))
		return nil, apperr.GatewayCreateFailed(fmt.Errorf("response carried no formToken"))
	}

	return &CreatePaymentResult{FormToken: formToken, Answer: envelope.Answer, Raw: raw}, nil
}

func gatewayErrorDetail(answer Answer, statusCode int) string {
	if answer != nil {
		code, _ := answer.stringField("errorCode")
		detail, ok := answer.stringField("detailedErrorMessage")
		if !ok {
			detail, _ = answer.stringField("errorMessage")
		}
		switch {
		case code != "" && detail != "":
			return code + ": " + detail
		case code != "":
			return code
		case detail != "":
			return detail
		}
	}
	return fmt.Sprintf("gateway returned HTTP %d", statusCode)
}

func basicAuth(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}

func billingField(c Customer, pick func(*BillingDetails) string) string {
	if c.BillingDetails == nil {
		return ""
	}
	return pick(c.BillingDetails)
}

func metadataValue(metadata map[string]string) interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// removeEmpty prunes nil, empty-string and empty-map members so optional
// fields never reach the gateway as blanks, which it rejects.
func removeEmpty(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
			out[key] = v
		case map[string]interface{}:
			if len(v) == 0 {
				continue
			}
			out[key] = v
		default:
			out[key] = value
		}
	}
	return out
}
