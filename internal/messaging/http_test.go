package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/domain"
)

func testRun() *domain.Run {
	return &domain.Run{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		ActionID:  domain.ActionSendPromoCampaign,
		Status:    domain.RunStatusRunning,
	}
}

// --- HTTPMessenger Tests ---

func TestHTTPMessengerSent(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq sendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sendResponse{Status: "sent"})
	}))
	defer server.Close()

	run := testRun()
	m := NewHTTPMessenger(server.URL, "secret-key")

	delivery, err := m.Send(context.Background(), run, domain.Recipient{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if delivery.Status != domain.SendStatusSent {
		t.Errorf("status = %q, want SENT", delivery.Status)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q, want /v1/messages", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}

	// Запрос несёт контекст run'а и получателя
	if gotReq.To != "alice@example.com" {
		t.Errorf("to = %q", gotReq.To)
	}
	if gotReq.RunID != run.ID.String() {
		t.Errorf("run_id = %q, want %s", gotReq.RunID, run.ID)
	}
	if gotReq.Subject == "" || gotReq.Body == "" {
		t.Error("subject and body must be filled from the action template")
	}
}

func TestHTTPMessengerSuppressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Status: "suppressed"})
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")
	delivery, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "optout@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if delivery.Status != domain.SendStatusSuppressed {
		t.Errorf("status = %q, want SUPPRESSED", delivery.Status)
	}
}

func TestHTTPMessengerRecipientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Status: "failed", Error: "mailbox does not exist"})
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")
	delivery, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "gone@example.com"})

	// Отказ по получателю — не ошибка транспорта
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if delivery.Status != domain.SendStatusFailed {
		t.Errorf("status = %q, want FAILED", delivery.Status)
	}
	if delivery.Error != "mailbox does not exist" {
		t.Errorf("error = %q", delivery.Error)
	}
}

func TestHTTPMessengerRejects4xxAsRecipientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")
	delivery, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "bad@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if delivery.Status != domain.SendStatusFailed {
		t.Errorf("status = %q, want FAILED", delivery.Status)
	}
	if !strings.Contains(delivery.Error, "422") {
		t.Errorf("error = %q, want provider status", delivery.Error)
	}
}

func TestHTTPMessenger5xxIsInfraError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")

	// 5xx провайдера — инфраструктурный отказ, прерывающий рассылку
	if _, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "alice@example.com"}); err == nil {
		t.Fatal("5xx must return an error")
	}
}

func TestHTTPMessengerNetworkErrorIsInfraError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // соединение откажет

	m := NewHTTPMessenger(server.URL, "")
	if _, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "alice@example.com"}); err == nil {
		t.Fatal("network error must return an error")
	}
}

func TestHTTPMessengerUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Status: "maybe"})
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")
	if _, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "alice@example.com"}); err == nil {
		t.Fatal("unknown provider status must return an error")
	}
}

func TestHTTPMessengerNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(sendResponse{Status: "sent"})
	}))
	defer server.Close()

	m := NewHTTPMessenger(server.URL, "")
	if _, err := m.Send(context.Background(), testRun(), domain.Recipient{Email: "alice@example.com"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("auth = %q, want empty without api key", gotAuth)
	}
}

// --- Content Tests ---

func TestBuildContentDefaults(t *testing.T) {
	run := testRun()
	content := BuildContent(run, domain.Recipient{Email: "alice@example.com"})

	if content.Subject != "A special offer for you" {
		t.Errorf("subject = %q", content.Subject)
	}
	if !strings.Contains(content.Body, "alice@example.com") {
		t.Errorf("body = %q, want recipient email", content.Body)
	}
}

func TestBuildContentParamOverrides(t *testing.T) {
	run := testRun()
	run.Params = map[string]any{"subject": "Final hours", "body": "Everything must go"}

	content := BuildContent(run, domain.Recipient{Email: "alice@example.com"})
	if content.Subject != "Final hours" {
		t.Errorf("subject = %q, want param override", content.Subject)
	}
	if content.Body != "Everything must go" {
		t.Errorf("body = %q, want param override", content.Body)
	}
}

func TestBuildContentUnknownActionFallsBack(t *testing.T) {
	run := testRun()
	run.ActionID = "custom_action"

	content := BuildContent(run, domain.Recipient{Email: "alice@example.com"})
	if content.Subject != "custom_action" {
		t.Errorf("subject = %q, want action id fallback", content.Subject)
	}
}
