package scenario

// Scenario groups the execution plans that run together under one label,
// entered and exited as a unit by engine.Runner.
type Scenario struct {
	Label string
	Plans []*Plan
}

// New builds a Scenario from one or more plans.
func New(label string, plans ...*Plan) *Scenario {
	return &Scenario{Label: label, Plans: plans}
}

// WithExecutor appends another plan to run alongside this scenario's
// existing plans.
func (s *Scenario) WithExecutor(p *Plan) *Scenario {
	s.Plans = append(s.Plans, p)
	return s
}
