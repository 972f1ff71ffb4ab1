package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/executor"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 * 1024 * 1024 // 1 MB
)

// HTTPMessenger — доставка через HTTP API провайдера рассылок.
//
// Провайдер сам ведёт список do-not-contact: для подавленного
// получателя он возвращает статус "suppressed", не выполняя отправку.
//
// Классификация ошибок:
//   - сетевые ошибки и 5xx — инфраструктурный отказ (error),
//     run будет финализирован как FAILED;
//   - 4xx и статус "failed" в теле — ошибка конкретного получателя,
//     фиксируется на send и не прерывает рассылку.
type HTTPMessenger struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPMessenger создаёт HTTPMessenger.
func NewHTTPMessenger(baseURL, apiKey string) *HTTPMessenger {
	return &HTTPMessenger{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// sendRequest — тело запроса к провайдеру.
type sendRequest struct {
	ProjectID string `json:"project_id"`
	ActionID  string `json:"action_id"`
	RunID     string `json:"run_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// sendResponse — ответ провайдера.
type sendResponse struct {
	// Status — "sent", "suppressed" или "failed".
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Send реализует executor.Messenger.
func (m *HTTPMessenger) Send(ctx context.Context, run *domain.Run, recipient domain.Recipient) (executor.Delivery, error) {
	content := BuildContent(run, recipient)

	payload, err := json.Marshal(sendRequest{
		ProjectID: run.ProjectID.String(),
		ActionID:  string(run.ActionID),
		RunID:     run.ID.String(),
		To:        recipient.Email,
		Subject:   content.Subject,
		Body:      content.Body,
	})
	if err != nil {
		return executor.Delivery{}, fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return executor.Delivery{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return executor.Delivery{}, fmt.Errorf("send to provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return executor.Delivery{}, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return executor.Delivery{}, fmt.Errorf("provider unavailable: status %d", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return executor.Delivery{
			Status: domain.SendStatusFailed,
			Error:  fmt.Sprintf("provider rejected: status %d", resp.StatusCode),
		}, nil
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return executor.Delivery{}, fmt.Errorf("parse provider response: %w", err)
	}

	switch parsed.Status {
	case "sent":
		return executor.Delivery{Status: domain.SendStatusSent}, nil
	case "suppressed":
		return executor.Delivery{Status: domain.SendStatusSuppressed}, nil
	case "failed":
		return executor.Delivery{Status: domain.SendStatusFailed, Error: parsed.Error}, nil
	default:
		return executor.Delivery{}, fmt.Errorf("unexpected provider status %q", parsed.Status)
	}
}
