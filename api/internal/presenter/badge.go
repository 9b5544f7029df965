package presenter

import "snap-to-spec/api/internal/guide/types"

// Badge is how a difficulty level is displayed.
type Badge struct {
	Level types.DifficultyLevel `json:"level" yaml:"level"`
	Color string                `json:"color" yaml:"color"`
	Class string                `json:"class" yaml:"class"`
}

func BadgeFor(level types.DifficultyLevel) Badge {
	var color string
	switch level {
	case types.Beginner:
		color = "emerald"
	case types.Intermediate:
		color = "yellow"
	case types.Advanced:
		color = "orange"
	case types.Expert:
		color = "red"
	default:
		color = "slate"
	}
	return Badge{
		Level: level,
		Color: color,
		Class: "badge badge-" + color,
	}
}

// Copy is the closing card text under the checklist.
type Copy struct {
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle" yaml:"subtitle"`
}

func CompletionCopy(allComplete bool) Copy {
	if allComplete {
		return Copy{Title: "Great Work! Repair Complete.", Subtitle: "You've checked off all the steps."}
	}
	return Copy{Title: "Job Done?", Subtitle: "Snap another item to fix something else."}
}
