// Package services provides external service integrations and technical concerns
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/config"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
)

// SendResult captures the provider's acknowledgment of one message
type SendResult struct {
	ProviderID string
	Status     string
}

// SMSService handles text message delivery. Implementations must honor
// context cancellation: the dispatcher bounds every call with a deadline.
type SMSService interface {
	SendText(ctx context.Context, recipient, message string) (*SendResult, error)
}

// SMSServiceImpl implements SMSService against an HTTP provider
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the SMS API
type SMSRequest struct {
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
	RetryCount int    `json:"retryCount"`
	Type       int    `json:"type"` // Always 1
}

// SMSResponse represents an individual message result from the SMS API
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendText sends a single text message
func (s *SMSServiceImpl) SendText(ctx context.Context, recipient, message string) (*SendResult, error) {
	requests := []SMSRequest{{
		SrcNum:     s.config.SourceNumber,
		Recipient:  recipient,
		Body:       message,
		RetryCount: s.config.RetryCount,
		Type:       1,
	}}

	requestBody, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("SMS provider returned an empty result")
	}

	r := results[0]
	if r.StatusCode != 200 || r.Status != "ACCEPTED" {
		return nil, fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
	}

	return &SendResult{
		ProviderID: strconv.FormatInt(r.MessageID, 10),
		Status:     r.Status,
	}, nil
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []MockSMSMessage

	// FailFor lists recipients whose sends should fail.
	FailFor map[string]error

	// Delay simulates a slow provider call.
	Delay time.Duration
}

// MockSMSMessage represents a mock text message
type MockSMSMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockSMSMessage, 0),
		FailFor:      make(map[string]error),
	}
}

// SendText records a mock text message
func (m *MockSMSService) SendText(ctx context.Context, recipient, message string) (*SendResult, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailFor[recipient]; ok {
		return nil, err
	}

	m.SentMessages = append(m.SentMessages, MockSMSMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})

	return &SendResult{
		ProviderID: fmt.Sprintf("mock-%d", len(m.SentMessages)),
		Status:     "ACCEPTED",
	}, nil
}

// GetSentMessages returns all sent mock messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSMSMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = m.SentMessages[:0]
}
