package presenter

import "snap-to-spec/api/internal/guide/types"

// StepView is one checklist row.
type StepView struct {
	types.RepairStep `yaml:",inline"`
	Done             bool `json:"done" yaml:"done"`
}

// View is a guide plus its presentational state.
type View struct {
	Guide       types.RepairGuide `json:"guide" yaml:"guide"`
	Badge       Badge             `json:"badge" yaml:"badge"`
	Steps       []StepView        `json:"steps" yaml:"steps"`
	Completed   []int             `json:"completed_steps" yaml:"completed_steps"`
	AllComplete bool              `json:"all_complete" yaml:"all_complete"`
	Copy        Copy              `json:"copy" yaml:"copy"`
}

// NewView snapshots g with the completion state in c. A nil c means nothing is done.
func NewView(g types.RepairGuide, c *Checklist) View {
	if c == nil {
		c = NewChecklist(g)
	}
	steps := make([]StepView, 0, len(g.RepairSteps))
	for _, s := range g.RepairSteps {
		steps = append(steps, StepView{RepairStep: s, Done: c.Done(s.StepNumber)})
	}
	all := c.AllComplete()
	return View{
		Guide:       g,
		Badge:       BadgeFor(g.DifficultyLevel),
		Steps:       steps,
		Completed:   c.Completed(),
		AllComplete: all,
		Copy:        CompletionCopy(all),
	}
}

func (v View) HasSafetyWarnings() bool { return len(v.Guide.SafetyWarnings) > 0 }
