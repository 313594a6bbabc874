package debug

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(false)
	if s.Active() {
		t.Error("session active before start")
	}
	s.AddBreakpoint("always", Breakpoint{Kind: KindTool, Enabled: true})
	if s.ShouldBreak(KindTool, nil) {
		t.Error("inactive session broke")
	}

	s.Start()
	if !s.Active() {
		t.Error("session not active after start")
	}
	if !s.ShouldBreak(KindTool, nil) {
		t.Error("enabled unconditional breakpoint did not break")
	}

	s.Stop()
	if s.Active() || s.ShouldBreak(KindTool, nil) {
		t.Error("session still breaking after stop")
	}
}

func TestStepByStepForcesBreaks(t *testing.T) {
	s := NewSession(true)
	s.Start()

	for _, kind := range []Kind{KindTool, KindState, KindLLM} {
		if !s.ShouldBreak(kind, nil) {
			t.Errorf("step-by-step did not break at %s", kind)
		}
	}
}

func TestBreakpointKindAndEnabledFiltering(t *testing.T) {
	s := NewSession(false)
	s.Start()
	s.AddBreakpoint("tools", Breakpoint{Kind: KindTool, Enabled: true})
	s.AddBreakpoint("disabled", Breakpoint{Kind: KindLLM, Enabled: false})

	if !s.ShouldBreak(KindTool, nil) {
		t.Error("tool breakpoint did not fire")
	}
	if s.ShouldBreak(KindLLM, nil) {
		t.Error("disabled breakpoint fired")
	}
	if s.ShouldBreak(KindState, nil) {
		t.Error("unregistered kind fired")
	}

	s.RemoveBreakpoint("tools")
	if s.ShouldBreak(KindTool, nil) {
		t.Error("removed breakpoint still fires")
	}
}

func TestConditions(t *testing.T) {
	ctx := map[string]any{
		"tool_name": "read_file",
		"message":   "reading the config",
		"done":      false,
		"state": map[string]any{
			"iteration": 5,
			"score":     2.5,
		},
	}

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"string equality", `tool_name == "read_file"`, true},
		{"string inequality", `tool_name != "write_file"`, true},
		{"single quotes", `tool_name == 'read_file'`, true},
		{"string mismatch", `tool_name == "write_file"`, false},
		{"nested numeric gt", `state.iteration > 3`, true},
		{"nested numeric ge", `state.iteration >= 5`, true},
		{"nested numeric lt", `state.iteration < 5`, false},
		{"float compare", `state.score <= 2.5`, true},
		{"numeric equality", `state.iteration == 5`, true},
		{"bool equality", `done == false`, true},
		{"contains", `message contains "config"`, true},
		{"contains miss", `message contains "deploy"`, false},
		{"unresolved path", `state.missing == 1`, false},
		{"path into scalar", `tool_name.deeper == 1`, false},
		{"malformed no operator", `tool_name`, false},
		{"malformed bad literal", `state.iteration > banana`, false},
		{"malformed unquoted string", `tool_name == read_file`, false},
		{"ordering on string value", `tool_name < 3`, false},
		{"empty condition path", ` == "x"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalCondition(tt.cond, ctx); got != tt.want {
				t.Errorf("evalCondition(%q) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestConditionalBreakpoint(t *testing.T) {
	s := NewSession(false)
	s.Start()
	s.AddBreakpoint("late-iterations", Breakpoint{
		Kind:      KindLLM,
		Condition: "iteration >= 3",
		Enabled:   true,
	})

	if s.ShouldBreak(KindLLM, map[string]any{"iteration": 2}) {
		t.Error("condition matched below threshold")
	}
	if !s.ShouldBreak(KindLLM, map[string]any{"iteration": 3}) {
		t.Error("condition did not match at threshold")
	}
	// A malformed condition must be skipped silently, not match.
	s.AddBreakpoint("broken", Breakpoint{Kind: KindState, Condition: "((", Enabled: true})
	if s.ShouldBreak(KindState, map[string]any{"iteration": 9}) {
		t.Error("malformed condition matched")
	}
}
