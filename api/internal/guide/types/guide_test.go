package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phoneJSON = `{
  "itemName": "Smartphone",
  "modelNumber": null,
  "damageAnalysis": "Cracked front glass with intact display underneath.",
  "difficultyLevel": "Advanced",
  "toolsRequired": ["Heat gun", "Suction cup"],
  "estimatedTime": "45-60 mins",
  "safetyWarnings": ["Disconnect battery before repair"],
  "repairSteps": [
    {"stepNumber": 1, "action": "Heat the edges", "explanation": "Soften the adhesive around the screen."},
    {"stepNumber": 2, "action": "Lift the glass", "explanation": "Use the suction cup to pry the glass up."}
  ]
}`

func TestParseGuide_Valid(t *testing.T) {
	g, err := ParseGuide(phoneJSON)
	require.NoError(t, err)

	assert.Equal(t, "Smartphone", g.ItemName)
	assert.Nil(t, g.ModelNumber)
	assert.Equal(t, Advanced, g.DifficultyLevel)
	assert.Equal(t, []string{"Heat gun", "Suction cup"}, g.ToolsRequired)
	assert.Equal(t, []int{1, 2}, g.StepNumbers())

	s, ok := g.Step(2)
	require.True(t, ok)
	assert.Equal(t, "Lift the glass", s.Action)
	_, ok = g.Step(3)
	assert.False(t, ok)
}

func TestParseGuide_CodeFencesAndModel(t *testing.T) {
	in := "```json\n" + `{"itemName":"Kettle","modelNumber":" KX-200 ","damageAnalysis":"Broken switch","difficultyLevel":"Beginner",
"toolsRequired":[],"estimatedTime":"10 mins","safetyWarnings":[],"repairSteps":[]}` + "\n```"
	g, err := ParseGuide(in)
	require.NoError(t, err)
	assert.Equal(t, "KX-200", g.Model())
	assert.NotNil(t, g.SafetyWarnings)
	assert.Empty(t, g.SafetyWarnings)
	assert.Empty(t, g.RepairSteps)
}

func TestParseGuide_BlankModelIsAbsent(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(phoneJSON), &m))
	m["modelNumber"] = "  "
	b, _ := json.Marshal(m)

	g, err := ParseGuide(string(b))
	require.NoError(t, err)
	assert.Nil(t, g.ModelNumber)
	assert.Equal(t, "", g.Model())
}

func TestParseGuide_Rejects(t *testing.T) {
	mutate := func(f func(m map[string]any)) string {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(phoneJSON), &m))
		f(m)
		b, err := json.Marshal(m)
		require.NoError(t, err)
		return string(b)
	}

	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not json", "I could not see anything"},
		{"missing repairSteps", mutate(func(m map[string]any) { delete(m, "repairSteps") })},
		{"null repairSteps", mutate(func(m map[string]any) { m["repairSteps"] = nil })},
		{"missing itemName", mutate(func(m map[string]any) { delete(m, "itemName") })},
		{"blank itemName", mutate(func(m map[string]any) { m["itemName"] = " " })},
		{"missing safetyWarnings", mutate(func(m map[string]any) { delete(m, "safetyWarnings") })},
		{"missing toolsRequired", mutate(func(m map[string]any) { delete(m, "toolsRequired") })},
		{"missing estimatedTime", mutate(func(m map[string]any) { delete(m, "estimatedTime") })},
		{"unknown difficulty", mutate(func(m map[string]any) { m["difficultyLevel"] = "Trivial" })},
		{"step without action", mutate(func(m map[string]any) {
			m["repairSteps"] = []any{map[string]any{"stepNumber": 1, "explanation": "x"}}
		})},
		{"step number zero", mutate(func(m map[string]any) {
			m["repairSteps"] = []any{map[string]any{"stepNumber": 0, "action": "a", "explanation": "x"}}
		})},
		{"steps not ascending", mutate(func(m map[string]any) {
			m["repairSteps"] = []any{
				map[string]any{"stepNumber": 2, "action": "a", "explanation": "x"},
				map[string]any{"stepNumber": 1, "action": "b", "explanation": "y"},
			}
		})},
		{"duplicate step", mutate(func(m map[string]any) {
			m["repairSteps"] = []any{
				map[string]any{"stepNumber": 1, "action": "a", "explanation": "x"},
				map[string]any{"stepNumber": 1, "action": "b", "explanation": "y"},
			}
		})},
		{"wrong type", mutate(func(m map[string]any) { m["toolsRequired"] = "screwdriver" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := ParseGuide(tc.in)
			require.Error(t, err)
			assert.Equal(t, RepairGuide{}, g)
		})
	}
}

func TestParseGuide_SchemaViolationIsTyped(t *testing.T) {
	_, err := ParseGuide(`{"itemName":"x"}`)
	assert.ErrorIs(t, err, ErrInvalidGuide)
}

func TestDifficultyLevel_Valid(t *testing.T) {
	for _, d := range DifficultyLevels {
		assert.True(t, d.Valid(), d)
	}
	assert.False(t, DifficultyLevel("beginner").Valid())
	assert.False(t, DifficultyLevel("").Valid())
}

func TestStrictJSONSchema_IsValidJSON(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal(StrictJSONSchema, &m))
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	for _, f := range RequiredFields {
		assert.Contains(t, props, f)
	}
	assert.Contains(t, props, "modelNumber")
}
