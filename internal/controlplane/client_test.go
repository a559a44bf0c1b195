package controlplane

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentz26/orange/internal/models"
)

func TestClient_AgainstServer(t *testing.T) {
	s, _, relay, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	h, err := c.Health(ctx)
	if err != nil || !h.OK {
		t.Fatalf("Health() = %+v, %v", h, err)
	}

	snap, err := c.Begin(ctx)
	if err != nil || snap.State != models.StateListening {
		t.Fatalf("Begin() = %+v, %v", snap, err)
	}

	relay.Start(ctx)
	if err := c.Transcript(ctx, "open Safari", true); err != nil {
		t.Errorf("Transcript() error = %v", err)
	}

	snap, err = c.Stop(ctx)
	if err != nil || snap.State != models.StateConfirming {
		t.Fatalf("Stop() = %+v, %v", snap, err)
	}
	snap, err = c.Confirm(ctx)
	if err != nil || snap.State != models.StateDone {
		t.Fatalf("Confirm() = %+v, %v", snap, err)
	}

	_, err = c.Confirm(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Confirm() twice error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != CodeConflict || apiErr.Session == nil {
		t.Errorf("APIError = %+v", apiErr)
	}

	snap, err = c.Command(ctx, "type hello")
	if err != nil || snap.Transcript != "type hello" {
		t.Errorf("Command() = %+v, %v", snap, err)
	}

	decisions, err := c.Decisions(ctx, "s1", 10)
	if err != nil || len(decisions) != 0 {
		t.Errorf("Decisions() = %v, %v", decisions, err)
	}
	if _, err := c.SessionDetail(ctx, "missing"); err == nil {
		t.Error("SessionDetail(missing) should fail")
	}
}
