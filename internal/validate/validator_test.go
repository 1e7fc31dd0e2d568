package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/types"
)

func campaignSchema() fieldschema.Schema {
	return fieldschema.Schema{
		{ID: "name", Type: fieldschema.TypeText, Required: true, Editable: true, IsActive: true},
		{ID: "spend_cap", Type: fieldschema.TypeNumber, Editable: true, IsActive: true},
	}
}

func adsetSchema() fieldschema.Schema {
	return fieldschema.Schema{
		{ID: "name", Type: fieldschema.TypeText, Required: true, Editable: true, IsActive: true},
		{ID: "status", Type: fieldschema.TypeSelect, Required: true, Editable: false, IsActive: true,
			Options: []fieldschema.Option{{Value: "PAUSED"}}},
		{ID: "countries", Type: fieldschema.TypeMultiSelect, Required: true, Editable: true, IsActive: true,
			Options: []fieldschema.Option{{Value: "US"}}},
		{ID: "targeting", Type: fieldschema.TypeObject, Required: true, Editable: true, IsActive: true,
			Schema: fieldschema.Schema{
				{ID: "geo", Type: fieldschema.TypeText, Required: true, Editable: true, IsActive: true},
				{ID: "age_min", Type: fieldschema.TypeNumber, Editable: true, IsActive: true},
			}},
		{ID: "placements", Type: fieldschema.TypeArray, Required: true, Editable: true, IsActive: true,
			Schema: fieldschema.Schema{
				{ID: "position", Type: fieldschema.TypeText, Required: true, Editable: true, IsActive: true},
			}},
		{ID: "notes", Type: fieldschema.TypeTextarea, Required: true, Editable: true, IsActive: false},
	}
}

func row(id string, values map[string]any) types.Row {
	return types.Row{ID: id, Values: values}
}

func TestValidateRow_RequiredName(t *testing.T) {
	got := ValidateRow(row("r1", map[string]any{"name": "", "spend_cap": float64(100)}), campaignSchema())
	assert.Equal(t, FieldResults{"name": false, "spend_cap": true}, got)

	got = ValidateRow(row("r1", map[string]any{"name": "Promo A", "spend_cap": float64(100)}), campaignSchema())
	assert.Equal(t, FieldResults{"name": true, "spend_cap": true}, got)
}

func TestValidateRow_EmptyForms(t *testing.T) {
	tests := []struct {
		name  string
		value any
		set   bool
		ok    bool
	}{
		{"absent", nil, false, false},
		{"nil", nil, true, false},
		{"empty string", "", true, false},
		{"zero number passes", float64(0), true, true},
		{"false passes", false, true, true},
		{"text", "x", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]any{}
			if tt.set {
				values["name"] = tt.value
			}
			got := ValidateRow(row("r", values), campaignSchema())
			assert.Equal(t, tt.ok, got["name"])
		})
	}
}

func validAdset() map[string]any {
	return map[string]any{
		"name":       "Set A",
		"countries":  []any{"US"},
		"targeting":  map[string]any{"geo": "US"},
		"placements": []any{map[string]any{"position": "feed"}},
	}
}

func TestValidateRow_Containers(t *testing.T) {
	got := ValidateRow(row("r", validAdset()), adsetSchema())
	assert.True(t, got.Valid())
	assert.True(t, got["status"], "required but not editable is exempt")
	assert.NotContains(t, got, "notes", "inactive fields are not reported")

	values := validAdset()
	values["targeting"] = map[string]any{}
	values["placements"] = []any{}
	values["countries"] = []any{}
	got = ValidateRow(row("r", values), adsetSchema())
	assert.Equal(t, []string{"countries", "placements", "targeting"}, got.Failed())

	values = validAdset()
	values["targeting"] = "not an object"
	got = ValidateRow(row("r", values), adsetSchema())
	assert.False(t, got["targeting"])
}

func TestValidateRow_ShallowIgnoresNestedRequired(t *testing.T) {
	values := validAdset()
	values["targeting"] = map[string]any{"age_min": float64(18)}
	values["placements"] = []any{map[string]any{"position": ""}}

	got := ValidateRow(row("r", values), adsetSchema())
	assert.True(t, got.Valid())
	assert.NotContains(t, got, "targeting.geo")
}

func TestValidateRow_DeepChecksNestedRequired(t *testing.T) {
	values := validAdset()
	values["targeting"] = map[string]any{"age_min": float64(18)}
	values["placements"] = []any{
		map[string]any{"position": "feed"},
		map[string]any{"position": ""},
		"garbage",
	}

	got := New(Deep).ValidateRow(row("r", values), adsetSchema())
	assert.False(t, got["targeting"])
	assert.False(t, got["targeting.geo"])
	assert.True(t, got["targeting.age_min"])
	assert.False(t, got["placements"])
	assert.True(t, got["placements[0].position"])
	assert.False(t, got["placements[1].position"])
	assert.False(t, got["placements[2]"])
	assert.True(t, got["name"])

	assert.True(t, New(Deep).ValidateRow(row("r", validAdset()), adsetSchema()).Valid())
}

func TestValidateBatchRows(t *testing.T) {
	rows := []types.Row{
		row("ok", map[string]any{"name": "A"}),
		row("bad", map[string]any{"name": ""}),
	}
	rep := ValidateBatchRows(rows, campaignSchema())
	require.Len(t, rep, 2)
	assert.True(t, rep.HasErrors())
	assert.True(t, rep.Valid("ok"))
	assert.False(t, rep.Valid("bad"))
	assert.False(t, rep.Valid("missing"))
	assert.Equal(t, map[string][]string{"bad": {"name"}}, rep.Failures())
	assert.Equal(t, "missing required fields: [name]", Describe(rep["bad"]))

	rep = ValidateBatchRows(rows[:1], campaignSchema())
	assert.False(t, rep.HasErrors())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, Deep, ParseMode("deep"))
	assert.Equal(t, Shallow, ParseMode(""))
	assert.Equal(t, Shallow, ParseMode("strict"))
	assert.Equal(t, "deep", Deep.String())
}
