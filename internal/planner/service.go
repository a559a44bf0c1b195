// Package planner talks to the planning sidecar that turns transcripts
// into action plans.
package planner

import (
	"context"

	"github.com/fentz26/orange/internal/models"
)

// Service is the planner as seen by the session pipeline and the CLI.
type Service interface {
	Plan(ctx context.Context, req models.PlanRequest) (models.ActionPlan, error)
	Verify(ctx context.Context, req models.VerifyRequest) (models.VerifyResponse, error)
	// Telemetry delivers one event. Callers treat it as fire-and-forget.
	Telemetry(ctx context.Context, ev models.TelemetryEvent) error
	// StreamEvents returns progress events for sessionID. The channel is
	// closed when the stream ends or ctx is canceled.
	StreamEvents(ctx context.Context, sessionID string) (<-chan models.StreamEvent, error)

	Simulate(ctx context.Context, req models.PlanSimulationRequest) (models.PlanSimulationResponse, error)
	Models(ctx context.Context) (models.ModelsResponse, error)
	ProviderStatus(ctx context.Context) (models.ProviderStatus, error)
	ValidateProvider(ctx context.Context, req models.ProviderValidateRequest) (models.ProviderValidateResponse, error)
}
