package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sasabothq/sasabot-backend/pkg/config"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

const (
	oauthPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	timestampLayout = "20060102150405"
)

var errLoggerRequired = errors.New("mpesa logger is required")

// STKPusher is the payment-initiation surface flows depend on.
type STKPusher interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

// STKPushRequest describes one payment prompt.
type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// STKPushResponse carries the gateway correlation ids. The
// CheckoutRequestID must be persisted on the order before the caller
// returns; it is the only reliable key for matching the async callback.
type STKPushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// Client talks to the Daraja API.
type Client struct {
	httpClient *http.Client
	cfg        config.MpesaConfig
	logger     *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

// NewClient builds the Daraja client.
func NewClient(cfg config.MpesaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("mpesa consumer credentials are required")
	}
	if cfg.ShortCode == "" || cfg.Passkey == "" {
		return nil, errors.New("mpesa shortcode and passkey are required")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		logger:     logg,
		now:        time.Now,
	}, nil
}

// InitiateSTKPush sends a payment prompt to the customer's phone.
func (c *Client) InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          stkPassword(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.Round(0).String(),
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stk push payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + stkPushPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build stk push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling daraja stk push")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading stk push response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("daraja stk push status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed STKPushResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding stk push response")
	}
	if parsed.ResponseCode != "0" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("daraja rejected stk push: response code %s", parsed.ResponseCode))
	}

	return &parsed, nil
}

// accessToken returns a cached OAuth token, refreshing it when it is
// within a minute of expiring.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + oauthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build oauth request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling daraja oauth")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading oauth response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("daraja oauth status %d", resp.StatusCode))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding oauth response")
	}
	if parsed.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "daraja oauth returned empty token")
	}

	ttl := 3600 * time.Second
	if secs, convErr := time.ParseDuration(parsed.ExpiresIn + "s"); convErr == nil && secs > 0 {
		ttl = secs
	}
	c.token = parsed.AccessToken
	c.tokenExpiry = c.now().Add(ttl)

	return c.token, nil
}

// stkPassword is base64(shortcode + passkey + timestamp) per the Daraja
// contract.
func stkPassword(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
