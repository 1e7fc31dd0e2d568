package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/types"
)

func testSchema() fieldschema.Schema {
	return fieldschema.Schema{
		{ID: "name", Type: fieldschema.TypeText, Required: true, Editable: true, IsActive: true},
		{ID: "objective", Type: fieldschema.TypeSelect, Required: true, Editable: true, IsActive: true,
			Options: []fieldschema.Option{{Value: "TRAFFIC"}, {Value: "SALES"}}},
		{ID: "countries", Type: fieldschema.TypeMultiSelect, Editable: true, IsActive: true,
			Options: []fieldschema.Option{{Value: "US"}}},
		{ID: "targeting", Type: fieldschema.TypeObject, Editable: true, IsActive: true,
			Schema: fieldschema.Schema{{ID: "age_min", Type: fieldschema.TypeNumber}}},
		{ID: "cards", Type: fieldschema.TypeArray, Editable: true, IsActive: true,
			Schema: fieldschema.Schema{{ID: "headline", Type: fieldschema.TypeText}}},
		{ID: "end_date", Type: fieldschema.TypeDate, Editable: true, IsActive: false},
	}
}

func TestInitRow_ActiveFieldsOnly(t *testing.T) {
	row := InitRow(testSchema(), nil)

	assert.NotEmpty(t, row.ID)
	assert.Len(t, row.Values, 5)
	assert.NotContains(t, row.Values, "end_date")

	assert.Equal(t, "", row.Values["name"])
	assert.Equal(t, "TRAFFIC", row.Values["objective"], "select defaults to first option")
	assert.Equal(t, []any{}, row.Values["countries"])
	assert.Equal(t, map[string]any{}, row.Values["targeting"])
	assert.Equal(t, []any{}, row.Values["cards"])
}

func TestInitRow_TemplateWins(t *testing.T) {
	defaults := map[string]any{
		"objective": "SALES",
		"name":      "Spring Promo",
		"targeting": map[string]any{"age_min": float64(21)},
		"end_date":  "2026-12-31",
	}
	row := InitRow(testSchema(), defaults)

	assert.Equal(t, "SALES", row.Values["objective"])
	assert.Equal(t, "Spring Promo", row.Values["name"])
	assert.NotContains(t, row.Values, "end_date", "inactive fields stay out even with a default")

	row.Values["targeting"].(map[string]any)["age_min"] = float64(30)
	assert.Equal(t, float64(21), defaults["targeting"].(map[string]any)["age_min"], "template must not be shared")
}

func TestInitRow_FreshIDs(t *testing.T) {
	a := InitRow(testSchema(), nil)
	b := InitRow(testSchema(), nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDuplicateRow(t *testing.T) {
	src := types.Row{ID: "r1", Values: map[string]any{"name": "A", "objective": ""}}
	dup := DuplicateRow(src)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, src.Values, dup.Values)
	assert.Equal(t, "", dup.Values["objective"], "no re-defaulting")

	dup.Values["name"] = "B"
	assert.Equal(t, "A", src.Values["name"])
}

func TestRowListHelpers(t *testing.T) {
	rows := AddRow(nil, testSchema(), nil)
	require.Len(t, rows, 1)

	rows = RemoveRow(rows, rows[0].ID)
	require.Len(t, rows, 1, "last row is never removed")

	first := rows[0].ID
	rows = AddRow(rows, testSchema(), nil)
	rows = DuplicateIn(rows, first)
	require.Len(t, rows, 3)
	assert.Equal(t, first, rows[0].ID)
	assert.Equal(t, rows[0].Values, rows[1].Values)

	rows = SetValue(rows, first, "name", "Promo A")
	assert.Equal(t, "Promo A", rows[0].Values["name"])
	assert.Equal(t, true, rows[0].Values[EditedFlag])
	assert.Equal(t, "", rows[1].Values["name"])

	rows = RemoveRow(rows, first)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.NotEqual(t, first, r.ID)
	}

	assert.Len(t, DuplicateIn(rows, "missing"), 2)
}

func TestPayload(t *testing.T) {
	row := types.Row{
		ID:       "r1",
		EntityID: "120000001",
		Values: map[string]any{
			"name":        "A",
			"_draft":      true,
			"_groupColor": "bg-blue-50",
			"id":          "stale",
		},
	}
	assert.Equal(t, map[string]any{"name": "A"}, Payload(row))
}
