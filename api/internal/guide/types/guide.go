package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"snap-to-spec/api/internal/util"
)

// DifficultyLevel is the closed set of repair difficulties.
type DifficultyLevel string

const (
	Beginner     DifficultyLevel = "Beginner"
	Intermediate DifficultyLevel = "Intermediate"
	Advanced     DifficultyLevel = "Advanced"
	Expert       DifficultyLevel = "Expert"
)

// DifficultyLevels in ascending order.
var DifficultyLevels = []DifficultyLevel{Beginner, Intermediate, Advanced, Expert}

func (d DifficultyLevel) Valid() bool {
	switch d {
	case Beginner, Intermediate, Advanced, Expert:
		return true
	}
	return false
}

func (d DifficultyLevel) String() string { return string(d) }

// RepairStep is one ordered instruction of a guide.
type RepairStep struct {
	StepNumber  int    `json:"stepNumber" yaml:"stepNumber"`
	Action      string `json:"action" yaml:"action"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

// RepairGuide is the structured result of one analyzed photo.
type RepairGuide struct {
	ItemName        string          `json:"itemName" yaml:"itemName"`
	ModelNumber     *string         `json:"modelNumber,omitempty" yaml:"modelNumber,omitempty"`
	DamageAnalysis  string          `json:"damageAnalysis" yaml:"damageAnalysis"`
	DifficultyLevel DifficultyLevel `json:"difficultyLevel" yaml:"difficultyLevel"`
	ToolsRequired   []string        `json:"toolsRequired" yaml:"toolsRequired"`
	EstimatedTime   string          `json:"estimatedTime" yaml:"estimatedTime"`
	SafetyWarnings  []string        `json:"safetyWarnings" yaml:"safetyWarnings"`
	RepairSteps     []RepairStep    `json:"repairSteps" yaml:"repairSteps"`
}

// ErrInvalidGuide marks a payload that does not satisfy the guide schema.
var ErrInvalidGuide = errors.New("guide schema violation")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGuide, fmt.Sprintf(format, args...))
}

// Model returns the model number or "" when absent.
func (g RepairGuide) Model() string {
	if g.ModelNumber == nil {
		return ""
	}
	return *g.ModelNumber
}

// Step looks a step up by its number.
func (g RepairGuide) Step(n int) (RepairStep, bool) {
	for _, s := range g.RepairSteps {
		if s.StepNumber == n {
			return s, true
		}
	}
	return RepairStep{}, false
}

// StepNumbers returns the step numbers in guide order.
func (g RepairGuide) StepNumbers() []int {
	out := make([]int, 0, len(g.RepairSteps))
	for _, s := range g.RepairSteps {
		out = append(out, s.StepNumber)
	}
	return out
}

// Validate checks required fields and step ordering.
func (g RepairGuide) Validate() error {
	if strings.TrimSpace(g.ItemName) == "" {
		return invalid("itemName is required")
	}
	if strings.TrimSpace(g.DamageAnalysis) == "" {
		return invalid("damageAnalysis is required")
	}
	if !g.DifficultyLevel.Valid() {
		return invalid("difficultyLevel %q is not one of %v", g.DifficultyLevel, DifficultyLevels)
	}
	if g.ToolsRequired == nil {
		return invalid("toolsRequired is required")
	}
	if strings.TrimSpace(g.EstimatedTime) == "" {
		return invalid("estimatedTime is required")
	}
	if g.SafetyWarnings == nil {
		return invalid("safetyWarnings is required")
	}
	if g.RepairSteps == nil {
		return invalid("repairSteps is required")
	}
	prev := 0
	for i, s := range g.RepairSteps {
		if s.StepNumber < 1 {
			return invalid("repairSteps[%d].stepNumber must be positive, got %d", i, s.StepNumber)
		}
		if s.StepNumber <= prev {
			return invalid("repairSteps[%d].stepNumber %d is not ascending", i, s.StepNumber)
		}
		if strings.TrimSpace(s.Action) == "" {
			return invalid("repairSteps[%d].action is required", i)
		}
		if strings.TrimSpace(s.Explanation) == "" {
			return invalid("repairSteps[%d].explanation is required", i)
		}
		prev = s.StepNumber
	}
	return nil
}

// wire shapes: pointers tell "missing" apart from zero values.
type rawStep struct {
	StepNumber  *int    `json:"stepNumber"`
	Action      *string `json:"action"`
	Explanation *string `json:"explanation"`
}

type rawGuide struct {
	ItemName        *string    `json:"itemName"`
	ModelNumber     *string    `json:"modelNumber"`
	DamageAnalysis  *string    `json:"damageAnalysis"`
	DifficultyLevel *string    `json:"difficultyLevel"`
	ToolsRequired   *[]string  `json:"toolsRequired"`
	EstimatedTime   *string    `json:"estimatedTime"`
	SafetyWarnings  *[]string  `json:"safetyWarnings"`
	RepairSteps     *[]rawStep `json:"repairSteps"`
}

// ParseGuide decodes model output into a RepairGuide. Code fences around the JSON are tolerated;
// anything else that does not match the schema is an error, never a partial guide.
func ParseGuide(text string) (RepairGuide, error) {
	txt := util.StripCodeFences(text)
	if txt == "" {
		return RepairGuide{}, invalid("empty payload")
	}
	var raw rawGuide
	if err := json.Unmarshal([]byte(txt), &raw); err != nil {
		return RepairGuide{}, fmt.Errorf("bad JSON: %w", err)
	}

	switch {
	case raw.ItemName == nil:
		return RepairGuide{}, invalid("itemName is missing")
	case raw.DamageAnalysis == nil:
		return RepairGuide{}, invalid("damageAnalysis is missing")
	case raw.DifficultyLevel == nil:
		return RepairGuide{}, invalid("difficultyLevel is missing")
	case raw.ToolsRequired == nil:
		return RepairGuide{}, invalid("toolsRequired is missing")
	case raw.EstimatedTime == nil:
		return RepairGuide{}, invalid("estimatedTime is missing")
	case raw.SafetyWarnings == nil:
		return RepairGuide{}, invalid("safetyWarnings is missing")
	case raw.RepairSteps == nil:
		return RepairGuide{}, invalid("repairSteps is missing")
	}

	g := RepairGuide{
		ItemName:        strings.TrimSpace(*raw.ItemName),
		DamageAnalysis:  strings.TrimSpace(*raw.DamageAnalysis),
		DifficultyLevel: DifficultyLevel(strings.TrimSpace(*raw.DifficultyLevel)),
		ToolsRequired:   append([]string{}, *raw.ToolsRequired...),
		EstimatedTime:   strings.TrimSpace(*raw.EstimatedTime),
		SafetyWarnings:  append([]string{}, *raw.SafetyWarnings...),
		RepairSteps:     make([]RepairStep, 0, len(*raw.RepairSteps)),
	}
	if raw.ModelNumber != nil {
		if m := strings.TrimSpace(*raw.ModelNumber); m != "" {
			g.ModelNumber = &m
		}
	}
	for i, s := range *raw.RepairSteps {
		if s.StepNumber == nil || s.Action == nil || s.Explanation == nil {
			return RepairGuide{}, invalid("repairSteps[%d] requires stepNumber, action and explanation", i)
		}
		g.RepairSteps = append(g.RepairSteps, RepairStep{
			StepNumber:  *s.StepNumber,
			Action:      strings.TrimSpace(*s.Action),
			Explanation: strings.TrimSpace(*s.Explanation),
		})
	}
	if err := g.Validate(); err != nil {
		return RepairGuide{}, err
	}
	return g, nil
}
