// Package presenter derives everything a front-end shows for a finished guide:
// step completion, the difficulty badge, completion copy and the printable export.
package presenter

import (
	"errors"
	"sort"

	"snap-to-spec/api/internal/guide/types"
)

var ErrUnknownStep = errors.New("unknown step")

// Checklist is the set of completed step numbers for one guide.
// It is not safe for concurrent use; the owning session serializes access.
type Checklist struct {
	steps map[int]struct{} // valid step numbers
	done  map[int]struct{}
}

func NewChecklist(g types.RepairGuide) *Checklist {
	c := &Checklist{
		steps: make(map[int]struct{}, len(g.RepairSteps)),
		done:  make(map[int]struct{}),
	}
	for _, s := range g.RepairSteps {
		c.steps[s.StepNumber] = struct{}{}
	}
	return c
}

// Toggle flips step n and returns its new state.
func (c *Checklist) Toggle(n int) (bool, error) {
	if _, ok := c.steps[n]; !ok {
		return false, ErrUnknownStep
	}
	if _, ok := c.done[n]; ok {
		delete(c.done, n)
		return false, nil
	}
	c.done[n] = struct{}{}
	return true, nil
}

func (c *Checklist) Done(n int) bool {
	_, ok := c.done[n]
	return ok
}

// Completed returns the completed step numbers in ascending order.
func (c *Checklist) Completed() []int {
	out := make([]int, 0, len(c.done))
	for n := range c.done {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (c *Checklist) Len() int { return len(c.done) }

// AllComplete is true iff the guide has steps and every one of them is done.
func (c *Checklist) AllComplete() bool {
	if len(c.steps) == 0 {
		return false
	}
	for n := range c.steps {
		if _, ok := c.done[n]; !ok {
			return false
		}
	}
	return true
}

func (c *Checklist) Reset() {
	clear(c.done)
}
