package models

// PlannerPreferences tunes how the planner builds a plan.
type PlannerPreferences struct {
	PreferredModel string `json:"preferred_model,omitempty"`
	Locale         string `json:"locale,omitempty"`
	LowLatency     bool   `json:"low_latency"`
}

// PlanRequest asks the planner to turn a transcript into an ActionPlan.
type PlanRequest struct {
	SchemaVersion    int                 `json:"schema_version"`
	SessionID        string              `json:"session_id"`
	Transcript       string              `json:"transcript"`
	ScreenshotBase64 string              `json:"screenshot_base64,omitempty"`
	AXTreeSummary    string              `json:"ax_tree_summary,omitempty"`
	App              AppMetadata         `json:"app"`
	Preferences      *PlannerPreferences `json:"preferences,omitempty"`
}

// VerifyRequest asks the planner whether an executed plan achieved its goal.
type VerifyRequest struct {
	SchemaVersion   int             `json:"schema_version"`
	SessionID       string          `json:"session_id"`
	ActionPlan      ActionPlan      `json:"action_plan"`
	ExecutionResult ExecutionStatus `json:"execution_result"`
	Reason          string          `json:"reason,omitempty"`
	BeforeContext   string          `json:"before_context,omitempty"`
	AfterContext    string          `json:"after_context,omitempty"`
}

// VerifyStatus is the planner's verdict on an executed plan.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyFailure VerifyStatus = "failure"
	// VerifyUnreachable marks a verify call that did not produce a verdict.
	VerifyUnreachable VerifyStatus = "unreachable"
	VerifySkipped     VerifyStatus = "skipped"
)

// VerifyResponse is the planner's verification verdict.
type VerifyResponse struct {
	SchemaVersion int          `json:"schema_version"`
	SessionID     string       `json:"session_id"`
	Status        VerifyStatus `json:"status"`
	Confidence    float64      `json:"confidence"`
	Reason        string       `json:"reason,omitempty"`
}

// StreamEvent is a server-pushed progress event for a session.
type StreamEvent struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Message   string `json:"message"`
	Progress  *int   `json:"progress,omitempty"`
	StepID    string `json:"step_id,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TelemetryEvent reports a pipeline stage outcome.
type TelemetryEvent struct {
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	Stage      string `json:"stage"`
	App        string `json:"app,omitempty"`
	ActionKind string `json:"action_kind,omitempty"`
	Status     string `json:"status"`
	LatencyMs  *int64 `json:"latency_ms,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// PlanSimulationRequest dry-runs planning without screen context.
type PlanSimulationRequest struct {
	SchemaVersion int                 `json:"schema_version"`
	SessionID     string              `json:"session_id"`
	Transcript    string              `json:"transcript"`
	App           AppMetadata         `json:"app"`
	Preferences   *PlannerPreferences `json:"preferences,omitempty"`
}

// PlanSimulationResponse summarizes what a plan would look like.
type PlanSimulationResponse struct {
	SchemaVersion        int       `json:"schema_version"`
	SessionID            string    `json:"session_id"`
	IsValid              bool      `json:"is_valid"`
	ParseErrors          []string  `json:"parse_errors"`
	RiskLevel            RiskLevel `json:"risk_level"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Summary              string    `json:"summary"`
	ProposedActionsCount int       `json:"proposed_actions_count"`
	RecoveryGuidance     string    `json:"recovery_guidance,omitempty"`
}

// ModelRoute explains which model serves which app.
type ModelRoute struct {
	App    string `json:"app,omitempty"`
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// ModelsResponse lists the planner's model routing.
type ModelsResponse struct {
	SchemaVersion int               `json:"schema_version"`
	Routing       []ModelRoute      `json:"routing"`
	FeatureFlags  map[string]string `json:"feature_flags"`
}

// ProviderStatus reports the planner's provider configuration.
type ProviderStatus struct {
	Provider      string `json:"provider"`
	KeyConfigured bool   `json:"key_configured"`
	ModelSimple   string `json:"model_simple"`
	ModelComplex  string `json:"model_complex"`
	Health        bool   `json:"health"`
}

// ProviderValidateRequest checks a provider credential.
type ProviderValidateRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// ProviderValidateResponse is the verdict on a provider credential.
type ProviderValidateResponse struct {
	Provider    string `json:"provider"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	AccountHint string `json:"account_hint,omitempty"`
}
