package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sasabothq/sasabot-backend/pkg/config"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/metrics"
)

var errLoggerRequired = errors.New("whatsapp logger is required")

// Credentials identify which Graph API number a send goes out from.
// They are resolved fresh per send; caching a tenant's token across
// businesses would leak messages between tenants.
type Credentials struct {
	AccessToken string
	PhoneID     string
}

// Sender is the outbound surface flows depend on.
type Sender interface {
	SendText(ctx context.Context, creds Credentials, to, body string) error
	SendButtons(ctx context.Context, creds Credentials, to, header, body, footer string, buttons []Button) error
	SendList(ctx context.Context, creds Credentials, to, header, body, footer, buttonLabel string, sections []Section) error
	SendDocument(ctx context.Context, creds Credentials, to, link, filename, caption string) error
	CredentialsFor(token, phoneID *string) Credentials
}

// Client talks to the WhatsApp Cloud (Graph) API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	platform   Credentials
	logger     *logger.Logger
	metrics    *metrics.BotMetrics
}

// NewClient builds the Graph API client with the platform-wide default
// credentials.
func NewClient(cfg config.WhatsAppConfig, logg *logger.Logger, botMetrics *metrics.BotMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		platform: Credentials{
			AccessToken: cfg.AccessToken,
			PhoneID:     cfg.PhoneID,
		},
		logger:  logg,
		metrics: botMetrics,
	}, nil
}

// CredentialsFor resolves per-business overrides against the platform
// default. Either override missing means the platform credentials win
// wholesale, a half-configured tenant is treated as unconfigured.
func (c *Client) CredentialsFor(token, phoneID *string) Credentials {
	if token != nil && phoneID != nil && *token != "" && *phoneID != "" {
		return Credentials{AccessToken: *token, PhoneID: *phoneID}
	}
	return c.platform
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) error {
	if err := c.post(ctx, creds, buildTextPayload(to, body)); err != nil {
		c.metrics.IncOutbound("text", "failed")
		c.logger.Error(c.logger.WithField(ctx, "to", to), "whatsapp text send failed", err)
		return err
	}
	c.metrics.IncOutbound("text", "sent")
	return nil
}

// SendButtons delivers an interactive reply-button message, degrading
// to a numbered plain-text rendering when the interactive send fails.
func (c *Client) SendButtons(ctx context.Context, creds Credentials, to, header, body, footer string, buttons []Button) error {
	err := c.post(ctx, creds, buildButtonsPayload(to, header, body, footer, buttons))
	if err == nil {
		c.metrics.IncOutbound("buttons", "sent")
		return nil
	}

	warnCtx := c.logger.WithFields(ctx, map[string]any{"to": to, "error": err.Error()})
	c.logger.Warn(warnCtx, "interactive button send failed, falling back to text")

	if fallbackErr := c.post(ctx, creds, buildTextPayload(to, fallbackTextForButtons(header, body, buttons))); fallbackErr != nil {
		c.metrics.IncOutbound("buttons", "failed")
		return fallbackErr
	}
	c.metrics.IncOutbound("buttons", "fallback")
	return nil
}

// SendList delivers an interactive list message with the same text
// fallback as SendButtons.
func (c *Client) SendList(ctx context.Context, creds Credentials, to, header, body, footer, buttonLabel string, sections []Section) error {
	err := c.post(ctx, creds, buildListPayload(to, header, body, footer, buttonLabel, sections))
	if err == nil {
		c.metrics.IncOutbound("list", "sent")
		return nil
	}

	warnCtx := c.logger.WithFields(ctx, map[string]any{"to": to, "error": err.Error()})
	c.logger.Warn(warnCtx, "interactive list send failed, falling back to text")

	if fallbackErr := c.post(ctx, creds, buildTextPayload(to, fallbackTextForList(header, body, sections))); fallbackErr != nil {
		c.metrics.IncOutbound("list", "failed")
		return fallbackErr
	}
	c.metrics.IncOutbound("list", "fallback")
	return nil
}

// SendDocument delivers a document by link.
func (c *Client) SendDocument(ctx context.Context, creds Credentials, to, link, filename, caption string) error {
	if err := c.post(ctx, creds, buildDocumentPayload(to, link, filename, caption)); err != nil {
		c.metrics.IncOutbound("document", "failed")
		c.logger.Error(ctx, "whatsapp document send failed", err)
		return err
	}
	c.metrics.IncOutbound("document", "sent")
	return nil
}

func (c *Client) post(ctx context.Context, creds Credentials, payload any) error {
	if creds.AccessToken == "" || creds.PhoneID == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "whatsapp credentials are not configured")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, creds.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling whatsapp api")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading whatsapp response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed sendResponse
		message := strings.TrimSpace(string(body))
		if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("whatsapp api status %d: %s", resp.StatusCode, message))
	}

	return nil
}
