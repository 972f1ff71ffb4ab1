package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/control"
	"github.com/shaiso/Outreach/internal/digest"
	"github.com/shaiso/Outreach/internal/engine"
	"github.com/shaiso/Outreach/internal/repo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Error Mapping Tests ---

func TestHandleServiceError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"invalid action", fmt.Errorf("submit: %w", engine.ErrInvalidAction), http.StatusUnprocessableEntity, ErrCodeInvalidAction},
		{"unknown action", catalog.ErrUnknownAction, http.StatusUnprocessableEntity, ErrCodeInvalidAction},
		{"navigate action", catalog.ErrNotWorkflow, http.StatusUnprocessableEntity, ErrCodeInvalidAction},
		{"validation", engine.ErrValidation, http.StatusBadRequest, ErrCodeBadRequest},
		{"short reason", control.ErrInvalidReason, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad digest settings", digest.ErrInvalidSettings, http.StatusBadRequest, ErrCodeBadRequest},
		{"action unavailable", engine.ErrActionUnavailable, http.StatusConflict, ErrCodeConflict},
		{"state conflict", control.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{"repo conflict", repo.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{"not found", repo.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	logger := discardLogger()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			if handled := HandleServiceError(rec, logger, tc.err); !handled {
				t.Fatal("error must be handled")
			}
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.wantCode)
			}
			if resp.Error.Message == "" {
				t.Error("message must not be empty")
			}
		})
	}
}

func TestHandleServiceErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	if HandleServiceError(rec, discardLogger(), nil) {
		t.Error("nil error must not be handled")
	}
}

func TestHandleServiceErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleServiceError(rec, discardLogger(), errors.New("pq: password authentication failed"))

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Детали внутренней ошибки не утекают клиенту
	if resp.Error.Message != "internal server error" {
		t.Errorf("message = %q, internals must not leak", resp.Error.Message)
	}
}

// --- Envelope Tests ---

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["hello"] != "world" {
		t.Errorf("data = %v", resp.Data)
	}
}

func TestListEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	List(rec, []int{1, 2, 3}, 3)

	var resp struct {
		Data  []int `json:"data"`
		Total int   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 3 || resp.Total != 3 {
		t.Errorf("resp = %+v", resp)
	}
}
