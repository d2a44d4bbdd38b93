package identity

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
)

// MagicLinkSender asks the identity provider to email a sign-in link.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, email string) error
}

// ProviderError is a rejection reported by the identity provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.Status)
}

// Supabase sends magic links through the Supabase auth OTP endpoint.
type Supabase struct {
	baseURL     string
	apiKey      string
	redirectURL string
	client      *http.Client
}

// NewSupabase creates a sender for the project at baseURL.
func NewSupabase(baseURL, apiKey, redirectURL string) *Supabase {
	return &Supabase{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		redirectURL: redirectURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMagicLink requests a one-time sign-in link for email.
func (s *Supabase) SendMagicLink(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]any{
		"email":       email,
		"create_user": true,
	})
	if err != nil {
		return err
	}

	endpoint := s.baseURL + "/auth/v1/otp"
	if s.redirectURL != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(s.redirectURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity: send magic link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return &ProviderError{Status: resp.StatusCode, Message: providerMessage(resp.Body)}
}

// providerMessage extracts the human-readable message of an error reply.
func providerMessage(r io.Reader) string {
	var reply struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	if err := json.Unmarshal(data, &reply); err == nil {
		for _, m := range []string{reply.Msg, reply.Message, reply.ErrorDescription} {
			if m != "" {
				return m
			}
		}
	}
	if len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	return "request rejected"
}

// Disabled is the sender used when no identity provider is configured.
type Disabled struct{}

// SendMagicLink always fails with ErrUnavailable.
func (Disabled) SendMagicLink(context.Context, string) error {
	return ErrUnavailable
}
