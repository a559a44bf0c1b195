package safety

import "github.com/fentz26/orange/internal/models"

// Approvals holds the categories approved for the rest of one session.
// It is not safe for concurrent use.
type Approvals struct {
	sessionID  string
	categories map[models.SafetyCategory]struct{}
}

// NewApprovals returns an empty set bound to sessionID.
func NewApprovals(sessionID string) *Approvals {
	return &Approvals{sessionID: sessionID, categories: make(map[models.SafetyCategory]struct{})}
}

// SessionID returns the session the set belongs to.
func (a *Approvals) SessionID() string {
	return a.sessionID
}

// Reset empties the set and binds it to a new session. Resetting to the
// current session id keeps the set.
func (a *Approvals) Reset(sessionID string) {
	if sessionID == a.sessionID {
		return
	}
	a.sessionID = sessionID
	a.categories = make(map[models.SafetyCategory]struct{})
}

// Promote records the per_session prompts among approved.
func (a *Approvals) Promote(approved []models.SafetyPrompt) {
	for _, p := range approved {
		if p.ApprovalMode == models.ApprovalPerSession {
			a.categories[p.Category] = struct{}{}
		}
	}
}

// Has reports whether category was approved for the session.
func (a *Approvals) Has(category models.SafetyCategory) bool {
	_, ok := a.categories[category]
	return ok
}

// Filter drops per_session prompts whose category is already approved.
// one_time and always_ask prompts always survive.
func (a *Approvals) Filter(prompts []models.SafetyPrompt) []models.SafetyPrompt {
	var out []models.SafetyPrompt
	for _, p := range prompts {
		if p.ApprovalMode == models.ApprovalPerSession && a.Has(p.Category) {
			continue
		}
		out = append(out, p)
	}
	return out
}
