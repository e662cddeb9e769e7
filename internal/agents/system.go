package agents

// ControllerSystem feeds each agent's controller its action for the tick.
type ControllerSystem struct {
	reg   *Registry
	frame []*Action
	gate  func() bool
}

// NewControllerSystem creates the system for the agents in reg.
func NewControllerSystem(reg *Registry) *ControllerSystem {
	return &ControllerSystem{reg: reg}
}

// SetGate installs a predicate that must hold for controllers to run.
func (s *ControllerSystem) SetGate(fn func() bool) {
	s.gate = fn
}

// SetFrameActions stores the actions for the coming tick, indexed by agent
// id. Missing or nil entries mean no input.
func (s *ControllerSystem) SetFrameActions(actions []*Action) {
	s.frame = append(s.frame[:0], actions...)
}

// ClearFrameActions drops the stored actions.
func (s *ControllerSystem) ClearFrameActions() {
	s.frame = s.frame[:0]
}

// Update runs every controller once.
func (s *ControllerSystem) Update(float64) {
	if s.gate != nil && !s.gate() {
		return
	}
	s.reg.Each(func(a *Agent) {
		if a.Controller == nil {
			return
		}
		var act *Action
		if int(a.ID) < len(s.frame) {
			act = s.frame[a.ID]
		}
		a.Controller.Update(act)
	})
}
