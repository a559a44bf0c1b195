package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fentz26/orange/internal/models"
)

func TestPlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/plan" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req models.PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Transcript != "open Safari" || req.App.Name != "Finder" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(models.ActionPlan{
			SchemaVersion: 1,
			SessionID:     req.SessionID,
			Actions:       []models.AgentAction{{ID: "a1", Kind: models.KindOpenApp, AppBundleID: "com.apple.Safari"}},
			Confidence:    0.9,
			RiskLevel:     models.RiskLow,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	plan, err := c.Plan(context.Background(), models.PlanRequest{
		SessionID:  "s1",
		Transcript: "open Safari",
		App:        models.AppMetadata{Name: "Finder"},
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.SessionID != "s1" || len(plan.Actions) != 1 || plan.Actions[0].AppBundleID != "com.apple.Safari" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantCode   string
		credential bool
	}{
		{"structured detail", 400, `{"detail":{"message":"No key","error_code":"missing_api_key"}}`, "No key", CodeMissingAPIKey, true},
		{"invalid key", 400, `{"detail":{"message":"Bad key","error_code":"invalid_api_key"}}`, "Bad key", CodeInvalidAPIKey, true},
		{"string detail", 500, `{"detail":"model overloaded"}`, "model overloaded", "", false},
		{"unauthorized", 401, `{}`, "Planning request failed", "", true},
		{"garbage body", 502, `<html>`, "Planning request failed", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Plan(context.Background(), models.PlanRequest{})
			var se *ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *ServiceError", err)
			}
			if se.Message != tt.wantMsg || se.Code != tt.wantCode || se.Status != tt.status {
				t.Errorf("ServiceError = %+v", se)
			}
			if IsCredentialError(err) != tt.credential {
				t.Errorf("IsCredentialError = %v, want %v", !tt.credential, tt.credential)
			}
		})
	}
}

func TestIsCredentialError_Wrapped(t *testing.T) {
	err := fmt.Errorf("planning: %w", &ServiceError{Code: CodeMissingAPIKey})
	if !IsCredentialError(err) {
		t.Error("wrapped credential error not detected")
	}
	if IsCredentialError(errors.New("dial tcp: refused")) {
		t.Error("transport error is not a credential error")
	}
}

func TestVerifyAndTelemetry(t *testing.T) {
	var gotTelemetry models.TelemetryEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/verify":
			var req models.VerifyRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.BeforeContext != "app=Finder" || req.ExecutionResult != models.ExecutionSuccess {
				t.Errorf("verify request = %+v", req)
			}
			fmt.Fprint(w, `{"schema_version":1,"session_id":"s1","status":"failure","confidence":0.4,"reason":"window did not open"}`)
		case "/v1/telemetry":
			json.NewDecoder(r.Body).Decode(&gotTelemetry)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	resp, err := c.Verify(context.Background(), models.VerifyRequest{
		SessionID:       "s1",
		ExecutionResult: models.ExecutionSuccess,
		BeforeContext:   "app=Finder",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if resp.Status != models.VerifyFailure || resp.Reason != "window did not open" {
		t.Errorf("verify = %+v", resp)
	}

	if err := c.Telemetry(context.Background(), models.TelemetryEvent{SessionID: "s1", Stage: "planning", Status: "ok"}); err != nil {
		t.Fatalf("Telemetry() error = %v", err)
	}
	if gotTelemetry.Stage != "planning" {
		t.Errorf("telemetry = %+v", gotTelemetry)
	}
}

func TestDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			fmt.Fprint(w, `{"schema_version":1,"routing":[{"model":"fast","reason":"default"}],"feature_flags":{}}`)
		case "/v1/provider/status":
			fmt.Fprint(w, `{"provider":"anthropic","key_configured":true,"model_simple":"s","model_complex":"c","health":true}`)
		case "/v1/provider/validate":
			fmt.Fprint(w, `{"provider":"anthropic","valid":false,"reason":"rejected"}`)
		case "/v1/plan/simulate":
			fmt.Fprint(w, `{"schema_version":1,"session_id":"x","is_valid":true,"parse_errors":[],"risk_level":"low","requires_confirmation":false,"summary":"ok","proposed_actions_count":2}`)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	m, err := c.Models(ctx)
	if err != nil || len(m.Routing) != 1 {
		t.Errorf("Models() = %+v, %v", m, err)
	}
	st, err := c.ProviderStatus(ctx)
	if err != nil || !st.KeyConfigured {
		t.Errorf("ProviderStatus() = %+v, %v", st, err)
	}
	v, err := c.ValidateProvider(ctx, models.ProviderValidateRequest{Provider: "anthropic", APIKey: "k"})
	if err != nil || v.Valid || v.Reason != "rejected" {
		t.Errorf("ValidateProvider() = %+v, %v", v, err)
	}
	sim, err := c.Simulate(ctx, models.PlanSimulationRequest{Transcript: "x"})
	if err != nil || sim.ProposedActionsCount != 2 {
		t.Errorf("Simulate() = %+v, %v", sim, err)
	}
}

func TestStreamEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events/s1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: progress\n")
		fmt.Fprint(w, `data: {"session_id":"s1","event":"planning","message":"Reading screen","progress":20}`+"\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, `data:{"session_id":"s1","event":"planning","message":"Drafting plan"}`+"\n\n")
	}))
	defer srv.Close()

	events, err := NewClient(srv.URL, time.Second).StreamEvents(context.Background(), "s1")
	if err != nil {
		t.Fatalf("StreamEvents() error = %v", err)
	}

	var got []models.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("events = %+v", got)
	}
	if got[0].Progress == nil || *got[0].Progress != 20 || got[1].Message != "Drafting plan" {
		t.Errorf("events = %+v", got)
	}
}

func TestStreamEvents_CancelClosesChannel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := NewClient(srv.URL, time.Second).StreamEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("StreamEvents() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}
