package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — run из API.
type RunResponse struct {
	ID                     string          `json:"id"`
	ProjectID              string          `json:"project_id"`
	ActionID               string          `json:"action_id"`
	Status                 string          `json:"status"`
	IdempotencyKey         string          `json:"idempotency_key"`
	Params                 map[string]any  `json:"params,omitempty"`
	RecipientCountEstimate int             `json:"recipient_count_estimate,omitempty"`
	TriggeredBy            string          `json:"triggered_by"`
	RetryOf                string          `json:"retry_of,omitempty"`
	RetryReason            string          `json:"retry_reason,omitempty"`
	RequestedAt            string          `json:"requested_at"`
	StartedAt              string          `json:"started_at,omitempty"`
	CompletedAt            string          `json:"completed_at,omitempty"`
	LeaseExpiresAt         string          `json:"lease_expires_at,omitempty"`
	Attempts               int             `json:"attempts"`
	MaxAttempts            int             `json:"max_attempts"`
	Result                 *RunResult      `json:"result,omitempty"`
	Outcome                json.RawMessage `json:"outcome,omitempty"`
}

// RunResult — итог выполнения run из API.
type RunResult struct {
	TotalRecipients int    `json:"total_recipients"`
	Successful      int    `json:"successful"`
	Failed          int    `json:"failed"`
	Suppressed      int    `json:"suppressed"`
	ErrorSummary    string `json:"error_summary,omitempty"`
	Cancelled       bool   `json:"cancelled,omitempty"`
	CancelledBy     string `json:"cancelled_by,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
}

// SubmitRunResponse — ответ на submit.
type SubmitRunResponse struct {
	Run          *RunResponse `json:"run"`
	Deduplicated bool         `json:"deduplicated"`
}

// SendResponse — send из API.
type SendResponse struct {
	ID             string `json:"id"`
	RunID          string `json:"run_id"`
	RecipientEmail string `json:"recipient_email"`
	Status         string `json:"status"`
	SentAt         string `json:"sent_at"`
	Error          string `json:"error,omitempty"`
}

// ActionResponse — действие каталога из API.
type ActionResponse struct {
	ID              string       `json:"id"`
	Kind            string       `json:"kind"`
	Risk            string       `json:"risk"`
	ConfirmRequired bool         `json:"confirm_required"`
	SupportsPreview bool         `json:"supports_preview"`
	Source          string       `json:"source,omitempty"`
	Availability    Availability `json:"availability"`
}

// Availability — доступность действия.
type Availability struct {
	Available          bool   `json:"available"`
	DisabledReasonKey  string `json:"disabled_reason_key,omitempty"`
	FailedPrecondition string `json:"failed_precondition,omitempty"`
}

// PreviewResponse — предпросмотр выборки получателей.
type PreviewResponse struct {
	Recipients []Recipient `json:"recipients"`
	Count      int         `json:"count"`
}

// Recipient — получатель из preview.
type Recipient struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

// DigestResponse — настройки дайджеста из API.
type DigestResponse struct {
	ProjectID string `json:"project_id"`
	Enabled   bool   `json:"enabled"`
	Hour      int    `json:"hour"`
	Timezone  string `json:"timezone"`
	NextAt    string `json:"next_at,omitempty"`
	LastRunID string `json:"last_run_id,omitempty"`
}

// --- Request types ---

// SubmitRunRequest — создание run.
type SubmitRunRequest struct {
	ActionID       string         `json:"action_id"`
	IdempotencyKey string         `json:"idempotency_key"`
	TriggeredBy    string         `json:"triggered_by"`
	Params         map[string]any `json:"params,omitempty"`
}

// OperatorActionRequest — операторское действие (retry/cancel).
type OperatorActionRequest struct {
	Reason string `json:"reason"`
}

// UpdateDigestRequest — изменение настроек дайджеста.
type UpdateDigestRequest struct {
	Enabled  bool   `json:"enabled"`
	Hour     int    `json:"hour"`
	Timezone string `json:"timezone"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status   string
	ActionID string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Outreach API.
type Client struct {
	baseURL    string
	operator   string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// operator отправляется в X-Operator-Id на операторских маршрутах.
func NewClient(baseURL, operator string) *Client {
	return &Client{
		baseURL:  baseURL,
		operator: operator,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Actions ---

// ListActions возвращает каталог действий проекта.
func (c *Client) ListActions(projectID string) ([]ActionResponse, error) {
	var actions []ActionResponse
	err := c.list("/api/v1/projects/"+projectID+"/actions", nil, &actions)
	return actions, err
}

// PreviewAction возвращает предпросмотр выборки получателей.
func (c *Client) PreviewAction(projectID, actionID string) (*PreviewResponse, error) {
	var preview PreviewResponse
	err := c.post("/api/v1/projects/"+projectID+"/actions/"+actionID+"/preview", nil, &preview)
	return &preview, err
}

// --- Runs ---

// SubmitRun создаёт run.
func (c *Client) SubmitRun(projectID string, req SubmitRunRequest) (*SubmitRunResponse, error) {
	var result SubmitRunResponse
	err := c.post("/api/v1/projects/"+projectID+"/runs", req, &result)
	return &result, err
}

// ListRuns возвращает runs проекта с фильтрацией.
func (c *Client) ListRuns(projectID string, opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.ActionID != "" {
		params.Set("action_id", opts.ActionID)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/projects/"+projectID+"/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// ListSends возвращает sends одного run.
func (c *Client) ListSends(runID string) ([]SendResponse, error) {
	var sends []SendResponse
	err := c.list("/api/v1/runs/"+runID+"/sends", nil, &sends)
	return sends, err
}

// ListStuck возвращает застрявшие runs.
func (c *Client) ListStuck() ([]RunResponse, error) {
	var runs []RunResponse
	err := c.list("/api/v1/runs/stuck", nil, &runs)
	return runs, err
}

// RetryRun создаёт новый run для упавшего или застрявшего.
func (c *Client) RetryRun(id, reason string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/retry", OperatorActionRequest{Reason: reason}, &run)
	return &run, err
}

// CancelRun принудительно отменяет run.
func (c *Client) CancelRun(id, reason string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", OperatorActionRequest{Reason: reason}, &run)
	return &run, err
}

// --- Digest ---

// GetDigest возвращает настройки дайджеста проекта.
func (c *Client) GetDigest(projectID string) (*DigestResponse, error) {
	var digest DigestResponse
	err := c.get("/api/v1/projects/"+projectID+"/digest", &digest)
	return &digest, err
}

// SetDigest применяет настройки дайджеста проекта.
func (c *Client) SetDigest(projectID string, req UpdateDigestRequest) (*DigestResponse, error) {
	var digest DigestResponse
	err := c.put("/api/v1/projects/"+projectID+"/digest", req, &digest)
	return &digest, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Пустой список сериализуется как null
	if string(lr.Data) == "null" || len(lr.Data) == 0 {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.operator != "" {
		req.Header.Set("X-Operator-Id", c.operator)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
