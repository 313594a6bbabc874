// Package debug pauses the engine loop at named interception points.
package debug

import (
	"sync"
	"time"
)

// Kind identifies an interception point in the engine loop.
type Kind string

const (
	KindTool  Kind = "tool"  // before tool execution
	KindState Kind = "state" // after state changes
	KindLLM   Kind = "llm"   // before oracle calls
)

// Breakpoint pauses execution at its interception point. An empty Condition
// always matches; otherwise the condition is a predicate of the form
// "path op literal" evaluated against the break context (see condition.go).
type Breakpoint struct {
	Kind      Kind   `json:"type" yaml:"type"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
}

// Info describes one break event.
type Info struct {
	Timestamp time.Time
	Action    Kind
	Details   map[string]any
	Context   map[string]any
}

// Callback receives debug events from the engine.
type Callback interface {
	OnBreak(info Info)
	OnStep(info Info)
	OnError(err error, info Info)
}

// NopCallback ignores all events.
type NopCallback struct{}

func (NopCallback) OnBreak(Info)        {}
func (NopCallback) OnStep(Info)         {}
func (NopCallback) OnError(error, Info) {}

// Session holds named breakpoints and decides when the engine should pause.
// Breakpoints may be added or removed at any time, including while active.
type Session struct {
	mu          sync.Mutex
	active      bool
	stepByStep  bool
	breakpoints map[string]Breakpoint
	startTime   time.Time
}

// NewSession creates an inactive session. With stepByStep set, every
// interception point breaks regardless of configured breakpoints.
func NewSession(stepByStep bool) *Session {
	return &Session{
		stepByStep:  stepByStep,
		breakpoints: make(map[string]Breakpoint),
	}
}

func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.startTime = time.Now().UTC()
}

func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) StepByStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepByStep
}

// AddBreakpoint registers or replaces a breakpoint under name.
func (s *Session) AddBreakpoint(name string, bp Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakpoints[name] = bp
}

// RemoveBreakpoint drops the named breakpoint if present.
func (s *Session) RemoveBreakpoint(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakpoints, name)
}

// Breakpoints returns a copy of the registered breakpoints.
func (s *Session) Breakpoints() map[string]Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Breakpoint, len(s.breakpoints))
	for name, bp := range s.breakpoints {
		out[name] = bp
	}
	return out
}

// ShouldBreak reports whether execution should pause at the given point.
// Inactive sessions never break. Step-by-step mode always breaks. Otherwise
// any enabled breakpoint of the matching kind breaks, either unconditionally
// or when its condition holds against ctx. Malformed conditions never match.
func (s *Session) ShouldBreak(kind Kind, ctx map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	if s.stepByStep {
		return true
	}
	for _, bp := range s.breakpoints {
		if !bp.Enabled || bp.Kind != kind {
			continue
		}
		if bp.Condition == "" {
			return true
		}
		if evalCondition(bp.Condition, ctx) {
			return true
		}
	}
	return false
}
