package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTyped_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		action  AgentAction
		wantErr bool
		kind    ActionKind
	}{
		{"click ok", AgentAction{ID: "a1", Kind: KindClick, Target: "Send"}, false, KindClick},
		{"click missing target", AgentAction{ID: "a1", Kind: KindClick}, true, ""},
		{"type ok", AgentAction{ID: "a1", Kind: KindType, Text: "hello"}, false, KindType},
		{"type missing text", AgentAction{ID: "a1", Kind: KindType}, true, ""},
		{"key combo ok", AgentAction{ID: "a1", Kind: KindKeyCombo, KeyCombo: "cmd+t"}, false, KindKeyCombo},
		{"key combo missing", AgentAction{ID: "a1", Kind: KindKeyCombo}, true, ""},
		{"open app by bundle", AgentAction{ID: "a1", Kind: KindOpenApp, AppBundleID: "com.apple.Safari"}, false, KindOpenApp},
		{"open app by name", AgentAction{ID: "a1", Kind: KindOpenApp, Target: "Notes"}, false, KindOpenApp},
		{"open app missing both", AgentAction{ID: "a1", Kind: KindOpenApp}, true, ""},
		{"run script from text", AgentAction{ID: "a1", Kind: KindRunScript, Text: "beep"}, false, KindRunScript},
		{"run script from target", AgentAction{ID: "a1", Kind: KindRunScript, Target: "beep"}, false, KindRunScript},
		{"legacy applescript alias", AgentAction{ID: "a1", Kind: "run_applescript", Text: "beep"}, false, KindRunScript},
		{"run script empty", AgentAction{ID: "a1", Kind: KindRunScript}, true, ""},
		{"wait", AgentAction{ID: "a1", Kind: KindWait}, false, KindWait},
		{"scroll without target", AgentAction{ID: "a1", Kind: KindScroll}, false, KindScroll},
		{"menu two segments", AgentAction{ID: "a1", Kind: KindSelectMenuItem, Target: "File > New Window"}, false, KindSelectMenuItem},
		{"menu single segment", AgentAction{ID: "a1", Kind: KindSelectMenuItem, Target: "File"}, true, ""},
		{"unknown kind", AgentAction{ID: "a1", Kind: "teleport"}, true, ""},
		{"missing id", AgentAction{Kind: KindWait}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.Typed()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Typed() expected error, got %T", got)
				}
				if !errors.Is(err, ErrInvalidAction) {
					t.Errorf("error %v does not wrap ErrInvalidAction", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Typed() error = %v", err)
			}
			if got.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", got.Kind(), tt.kind)
			}
			if got.ActionID() != "a1" {
				t.Errorf("ActionID() = %s, want a1", got.ActionID())
			}
		})
	}
}

func TestTyped_WaitDefaultsTimeout(t *testing.T) {
	a, err := AgentAction{ID: "w", Kind: KindWait}.Typed()
	if err != nil {
		t.Fatalf("Typed() error = %v", err)
	}
	if w := a.(WaitAction); w.TimeoutMs != DefaultTimeoutMs {
		t.Errorf("TimeoutMs = %d, want %d", w.TimeoutMs, DefaultTimeoutMs)
	}
}

func TestTyped_CapsTimeout(t *testing.T) {
	huge := int(^uint(0) >> 1)

	a, err := AgentAction{ID: "w", Kind: KindWait, TimeoutMs: huge}.Typed()
	if err != nil {
		t.Fatalf("Typed() error = %v", err)
	}
	if w := a.(WaitAction); w.TimeoutMs != MaxTimeoutMs {
		t.Errorf("wait TimeoutMs = %d, want %d", w.TimeoutMs, MaxTimeoutMs)
	}

	a, err = AgentAction{ID: "o", Kind: KindOpenApp, Target: "Safari", TimeoutMs: huge}.Typed()
	if err != nil {
		t.Fatalf("Typed() error = %v", err)
	}
	if o := a.(OpenAppAction); o.TimeoutMs != MaxTimeoutMs {
		t.Errorf("open_app TimeoutMs = %d, want %d", o.TimeoutMs, MaxTimeoutMs)
	}
	if d := time.Duration(MaxTimeoutMs) * time.Millisecond; d <= 0 {
		t.Errorf("capped timeout converts to %v", d)
	}
}

func TestSplitMenuPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"File > New Window", []string{"File", "New Window"}},
		{"File>Save", []string{"File", "Save"}},
		{"Edit/Copy", []string{"Edit", "Copy"}},
		{"View -> Zoom In", []string{"View", "Zoom In"}},
		{"File", []string{"File"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		got := SplitMenuPath(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("SplitMenuPath(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitMenuPath(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestActionPlan_DecodesWireFormat(t *testing.T) {
	raw := `{
		"schema_version": 1,
		"session_id": "s-1",
		"actions": [{"id": "1", "kind": "open_app", "app_bundle_id": "com.apple.Safari", "timeout_ms": 3000, "destructive": false}],
		"confidence": 0.9,
		"risk_level": "low",
		"requires_confirmation": false
	}`
	var plan ActionPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if plan.RiskLevel != RiskLow || len(plan.Actions) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Actions[0].AppBundleID != "com.apple.Safari" {
		t.Errorf("AppBundleID = %q", plan.Actions[0].AppBundleID)
	}
}

func TestActionPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    ActionPlan
		wantErr bool
	}{
		{"low", ActionPlan{RiskLevel: RiskLow, Confidence: 0.9}, false},
		{"high bounds", ActionPlan{RiskLevel: RiskHigh, Confidence: 1}, false},
		{"zero confidence", ActionPlan{RiskLevel: RiskMedium}, false},
		{"capitalized risk", ActionPlan{RiskLevel: "High", Confidence: 0.5}, true},
		{"unknown risk", ActionPlan{RiskLevel: "critical", Confidence: 0.5}, true},
		{"empty risk", ActionPlan{Confidence: 0.5}, true},
		{"confidence above one", ActionPlan{RiskLevel: RiskLow, Confidence: 1.5}, true},
		{"negative confidence", ActionPlan{RiskLevel: RiskLow, Confidence: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error %v does not wrap ErrInvalidPlan", err)
			}
		})
	}
}

func TestSessionState_IsTerminal(t *testing.T) {
	for _, s := range []SessionState{StateDone, StateFailed, StateCanceled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []SessionState{StateIdle, StateListening, StatePlanning, StateConfirming, StateExecuting, StateVerifying} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
