// Package safety decides which plans need a human confirmation.
package safety

import "github.com/fentz26/orange/internal/models"

// Policy turns a plan's actions into confirmation prompts.
type Policy interface {
	Evaluate(actions []models.AgentAction) []models.SafetyPrompt
}

// DefaultPolicy applies the built-in rules.
type DefaultPolicy struct{}

// Evaluate implements Policy.
func (DefaultPolicy) Evaluate(actions []models.AgentAction) []models.SafetyPrompt {
	return Evaluate(actions)
}

// Evaluate returns one destructive prompt if any action is destructive and
// one script prompt if any action runs a script. Rules are independent and
// both may fire. Prompts default to one_time approval.
func Evaluate(actions []models.AgentAction) []models.SafetyPrompt {
	var destructive, script bool
	for _, a := range actions {
		if a.Destructive {
			destructive = true
		}
		if a.Kind.Normalize() == models.KindRunScript {
			script = true
		}
	}

	var prompts []models.SafetyPrompt
	if destructive {
		prompts = append(prompts, models.SafetyPrompt{
			Category:     models.CategoryDestructive,
			ApprovalMode: models.ApprovalOneTime,
			Title:        "Confirm High-Risk Action",
			Message:      "This command contains destructive or send behavior.",
		})
	}
	if script {
		prompts = append(prompts, models.SafetyPrompt{
			Category:     models.CategoryScript,
			ApprovalMode: models.ApprovalOneTime,
			Title:        "Confirm Script Execution",
			Message:      "AppleScript execution requires explicit approval.",
		})
	}
	return prompts
}

// RiskPrompt returns the always-ask prompt owed by a plan rated medium or
// high risk, or one that asks for confirmation itself.
func RiskPrompt(plan models.ActionPlan) (models.SafetyPrompt, bool) {
	if plan.RiskLevel != models.RiskMedium && plan.RiskLevel != models.RiskHigh && !plan.RequiresConfirmation {
		return models.SafetyPrompt{}, false
	}
	msg := "The planner asked for confirmation before running this command."
	if plan.RiskLevel == models.RiskMedium || plan.RiskLevel == models.RiskHigh {
		msg = "The planner rated this command " + string(plan.RiskLevel) + " risk."
	}
	return models.SafetyPrompt{
		Category:     models.CategoryRisk,
		ApprovalMode: models.ApprovalAlwaysAsk,
		Title:        "Confirm Command",
		Message:      msg,
	}, true
}

// WithMode returns a copy of prompts with every approval mode set to mode.
func WithMode(prompts []models.SafetyPrompt, mode models.ApprovalMode) []models.SafetyPrompt {
	out := make([]models.SafetyPrompt, len(prompts))
	for i, p := range prompts {
		p.ApprovalMode = mode
		out[i] = p
	}
	return out
}
