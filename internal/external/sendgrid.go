package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"duewatch/internal/types"
)

const sendGridAPIBase = "https://api.sendgrid.com"

// EmailMessage is one outbound email: a single recipient, a rendered subject
// and plain-text body, and an optional reference ID for correlation.
type EmailMessage struct {
	To          string
	Subject     string
	Body        string
	ReferenceID string
}

// EmailSender delivers one email and returns the provider's message ID.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// SendGridConfig configures a SendGridClient.
type SendGridConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	BaseURL     string // test override; defaults to the public API
	Logger      *slog.Logger
}

// SendGridClient sends reminder emails through the SendGrid v3 Mail Send API
// via BaseClient, so rate limiting and transient upstream failures are
// handled by the shared retry and breaker machinery.
type SendGridClient struct {
	base        *BaseClient
	apiKey      string
	fromAddress string
	fromName    string
	baseURL     string
	logger      *slog.Logger
}

// NewSendGridClient creates a SendGridClient with default retry policy.
func NewSendGridClient(httpClient *http.Client, cfg SendGridConfig) *SendGridClient {
	base := NewBaseClient(httpClient, "sendgrid", DefaultRetryPolicy(), "duewatch/1.0")
	return NewSendGridClientWithBase(base, cfg)
}

// NewSendGridClientWithBase creates a SendGridClient around a caller-supplied
// BaseClient. Tests use this to disable retries and point at httptest servers.
func NewSendGridClientWithBase(base *BaseClient, cfg SendGridConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridClient{
		base:        base,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers one email. SendGrid answers 202 Accepted on success with the
// message ID in the X-Message-Id header.
//
// Status mapping beyond what BaseClient already covers:
//   - 403 means the recipient is suppressed or blocked (ErrCodeEmailBlocked)
//   - other 4xx map to ErrCodeUpstreamEmailProvider
func (s *SendGridClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	payload := sendGridPayload{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: msg.To}}},
		},
		From:    sendGridAddress{Email: s.fromAddress, Name: s.fromName},
		Subject: msg.Subject,
		Content: []sendGridContent{{Type: "text/plain", Value: msg.Body}},
	}
	if msg.ReferenceID != "" {
		payload.CustomArgs = map[string]string{"reference_id": msg.ReferenceID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create mail send request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		// BaseClient errors already carry an upstream error code.
		if _, ok := err.(*types.AppError); ok {
			return "", err
		}
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "mail send request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return resp.Header.Get("X-Message-Id"), nil
	}
	return "", s.mapErrorResponse(resp)
}

type sendGridErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func (s *SendGridClient) mapErrorResponse(resp *http.Response) error {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	message := strings.TrimSpace(string(raw))
	if readErr != nil {
		message = "response body unreadable"
	}
	var parsed sendGridErrorBody
	if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 {
		message = parsed.Errors[0].Message
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(types.ErrCodeEmailBlocked,
			fmt.Sprintf("delivery blocked by provider: %s", message), nil)
	case resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("mail provider server error: %s", message), nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("mail provider error (%d): %s", resp.StatusCode, message), nil)
	}
}

var _ EmailSender = (*SendGridClient)(nil)
