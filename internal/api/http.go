package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Auth-server reply codes carried in the response envelope.
const (
	codeSuccess         = 0
	codeError           = 1
	codeAccountExists   = 2
	codeNoAccount       = 3
	codeInvalidPassword = 4
	codeInvalidAnswers  = 5
	codeInvalidOtp      = 8
	codeObsolete        = 1000
)

// envelope is the JSON wrapper around every auth-server response.
type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
}

// passwordErrorPayload is the results shape for codeInvalidPassword.
type passwordErrorPayload struct {
	WaitSeconds int `json:"wait_seconds"`
}

// otpErrorPayload is the results shape for codeInvalidOtp.
type otpErrorPayload struct {
	Reason           string     `json:"reason"`
	ResetToken       string     `json:"otp_reset_token"`
	ResetDate        *time.Time `json:"otp_reset_date"`
	VoucherID        string     `json:"voucher_id"`
	VoucherActivates *time.Time `json:"voucher_activates"`
}

// HTTPClient is the production AuthClient: JSON over HTTP with a small
// bounded retry for transport-level failures.
type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL, apiKey string, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log.With("component", "authclient"),
	}
}

// Request implements AuthClient. Transport failures and 5xx responses are
// retried with exponential backoff before surfacing as a NetworkError;
// application-level errors are mapped to the typed taxonomy and never
// retried here.
func (c *HTTPClient) Request(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	reqID, _ := common.MakeRandHexString(8)
	c.log.Debug(ctx, "auth request", "id", reqID, "method", method, "path", path)

	var env envelope
	var httpStatus int

	backoff := retry.WithMaxRetries(2, retry.NewExponential(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Token "+c.apiKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(&NetworkError{Err: err})
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(&NetworkError{Err: err})
		}

		httpStatus = resp.StatusCode
		if httpStatus >= http.StatusInternalServerError {
			c.log.Warn(ctx, "auth server error, retrying", "id", reqID, "path", path, "status", httpStatus)
			return retry.RetryableError(&NetworkError{Err: fmt.Errorf("server status %d", httpStatus)})
		}

		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("malformed auth server reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if httpStatus == http.StatusGone {
		return &ObsoleteApiError{Message: env.Message}
	}

	switch env.StatusCode {
	case codeSuccess:
		if out == nil || len(env.Results) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Results, out); err != nil {
			return fmt.Errorf("malformed auth server results: %w", err)
		}
		return nil

	case codeNoAccount:
		return &UsernameError{}

	case codeInvalidPassword, codeInvalidAnswers:
		var p passwordErrorPayload
		_ = json.Unmarshal(env.Results, &p)
		return &PasswordError{Wait: p.WaitSeconds}

	case codeInvalidOtp:
		var p otpErrorPayload
		_ = json.Unmarshal(env.Results, &p)
		reason := OtpReason(p.Reason)
		if reason == "" {
			reason = OtpReasonOtp
		}
		return &OtpError{
			Reason:           reason,
			ResetToken:       p.ResetToken,
			ResetDate:        p.ResetDate,
			VoucherID:        p.VoucherID,
			VoucherActivates: p.VoucherActivates,
		}

	case codeObsolete:
		return &ObsoleteApiError{Message: env.Message}

	case codeError, codeAccountExists:
		return fmt.Errorf("auth server rejected request: %s (code %d)", env.Message, env.StatusCode)

	default:
		return fmt.Errorf("auth server returned unknown code %d: %s", env.StatusCode, env.Message)
	}
}
