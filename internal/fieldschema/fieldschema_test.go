package fieldschema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adbatch/internal/types"
)

func TestFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantErr bool
	}{
		{"text", Field{ID: "name", Type: TypeText}, false},
		{"select with options", Field{ID: "s", Type: TypeSelect, Options: opts("a", "b")}, false},
		{"object with schema", Field{ID: "o", Type: TypeObject, Schema: Schema{{ID: "x", Type: TypeText}}}, false},
		{"object without schema", Field{ID: "o", Type: TypeObject}, true},
		{"array without schema", Field{ID: "a", Type: TypeArray}, true},
		{"text with schema", Field{ID: "t", Type: TypeText, Schema: Schema{{ID: "x", Type: TypeText}}}, true},
		{"text with options", Field{ID: "t", Type: TypeText, Options: opts("a")}, true},
		{"unknown type", Field{ID: "u", Type: "json"}, true},
		{"empty id", Field{Type: TypeText}, true},
		{"bad nested field", Field{ID: "o", Type: TypeObject, Schema: Schema{{ID: "x", Type: TypeArray}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaValidate_DuplicateID(t *testing.T) {
	s := Schema{{ID: "name", Type: TypeText}, {ID: "name", Type: TypeNumber}}
	assert.ErrorContains(t, s.Validate(), "duplicate field id")
}

func TestFieldKind(t *testing.T) {
	assert.Equal(t, KindScalar, Field{Type: TypeURL}.Kind())
	assert.Equal(t, KindSelect, Field{Type: TypeMultiSelect}.Kind())
	assert.Equal(t, KindObject, Field{Type: TypeObject}.Kind())
	assert.Equal(t, KindArray, Field{Type: TypeArray}.Kind())
}

func TestFallbackIsValid(t *testing.T) {
	cfg := Fallback()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.AllEntityTypes, cfg.PlatformHierarchy)

	s, ok := cfg.Level(types.EntityAdset)
	require.True(t, ok)
	f, ok := s.Lookup("campaign_id")
	require.True(t, ok)
	assert.True(t, f.Required)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{PlatformHierarchy: nil}
	assert.Error(t, cfg.Validate())

	cfg = Config{PlatformHierarchy: []types.EntityType{types.EntityCampaign}}
	assert.ErrorContains(t, cfg.Validate(), "has no schema")

	cfg = Config{
		PlatformHierarchy: []types.EntityType{types.EntityCampaign, types.EntityCampaign},
		Levels:            map[types.EntityType]Schema{types.EntityCampaign: {{ID: "name", Type: TypeText}}},
	}
	assert.ErrorContains(t, cfg.Validate(), "listed twice")
}

func TestRegistry_FallbackForUnknownPlatform(t *testing.T) {
	reg := NewRegistry(Fallback())
	single := Config{
		PlatformHierarchy: []types.EntityType{types.EntityCampaign},
		Levels:            map[types.EntityType]Schema{types.EntityCampaign: {{ID: "name", Type: TypeText}}},
	}
	require.NoError(t, reg.Register("dv360", single))

	assert.Len(t, reg.Config("dv360").PlatformHierarchy, 1)
	assert.Len(t, reg.Config("unknown").PlatformHierarchy, 3)
	assert.Equal(t, []string{"dv360"}, reg.Platforms())

	_, ok := reg.Config("dv360").Level(types.EntityAd)
	assert.False(t, ok)
}

const sampleCUE = `
platforms: meta: {
	platformHierarchy: ["campaign", "adset"]
	levels: {
		campaign: [
			{id: "name", label: "Campaign Name", type: "text", required: true},
			{id: "status", type: "select", required: true, editable: false,
				options: [{value: "PAUSED"}, {value: "ACTIVE", label: "Active"}]},
		]
		adset: [
			{id: "name", type: "text", required: true},
			{id: "campaign_id", type: "text", required: true},
			{id: "targeting", type: "object", required: true, schema: [
				{id: "geo", type: "multi-select", required: true, options: [{value: "US"}]},
			]},
		]
	}
}
`

func TestParseCUE(t *testing.T) {
	configs, err := ParseCUE("sample.cue", []byte(sampleCUE))
	require.NoError(t, err)
	require.Contains(t, configs, "meta")

	cfg := configs["meta"]
	assert.Equal(t, []types.EntityType{types.EntityCampaign, types.EntityAdset}, cfg.PlatformHierarchy)

	campaign := cfg.Levels[types.EntityCampaign]
	require.Len(t, campaign, 2)
	assert.Equal(t, "Campaign Name", campaign[0].Label)
	assert.True(t, campaign[0].Editable, "editable defaults to true")
	assert.True(t, campaign[0].IsActive, "isActive defaults to true")

	status := campaign[1]
	assert.Equal(t, "status", status.Label, "label defaults to id")
	assert.False(t, status.Editable)
	require.Len(t, status.Options, 2)
	assert.Equal(t, "PAUSED", status.Options[0].Label)
	assert.Equal(t, "Active", status.Options[1].Label)

	targeting, ok := cfg.Levels[types.EntityAdset].Lookup("targeting")
	require.True(t, ok)
	require.Len(t, targeting.Schema, 1)
	assert.Equal(t, TypeMultiSelect, targeting.Schema[0].Type)
}

func TestParseCUE_RejectsUnknownType(t *testing.T) {
	src := `platforms: x: {
	platformHierarchy: ["campaign"]
	levels: campaign: [{id: "name", type: "json"}]
}`
	_, err := ParseCUE("bad.cue", []byte(src))
	assert.Error(t, err)
}

func TestParseCUE_RejectsObjectWithoutSchema(t *testing.T) {
	src := `platforms: x: {
	platformHierarchy: ["campaign"]
	levels: campaign: [{id: "targeting", type: "object"}]
}`
	_, err := ParseCUE("bad.cue", []byte(src))
	assert.ErrorContains(t, err, "requires a schema")
}

func TestLoadOrFallback(t *testing.T) {
	logger, hook := test.NewNullLogger()

	reg := LoadOrFallback(filepath.Join(t.TempDir(), "missing.cue"), logger)
	assert.Empty(t, reg.Platforms())
	assert.Len(t, reg.Config("meta").PlatformHierarchy, 3)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(sampleCUE), 0o644))
	reg = LoadOrFallback(path, logger)
	assert.Equal(t, []string{"meta"}, reg.Platforms())
}

func TestParseTemplates(t *testing.T) {
	src := `
meta:
  campaign:
    objective: OUTCOME_TRAFFIC
    spend_cap: 500
  adset:
    targeting:
      geo_locations: [US, CA]
      age_min: 18
`
	tpl, err := ParseTemplates([]byte(src))
	require.NoError(t, err)

	campaign := tpl.Defaults("meta", types.EntityCampaign)
	assert.Equal(t, "OUTCOME_TRAFFIC", campaign["objective"])
	assert.Equal(t, float64(500), campaign["spend_cap"])

	targeting := tpl.Defaults("meta", types.EntityAdset)["targeting"].(map[string]any)
	assert.Equal(t, []any{"US", "CA"}, targeting["geo_locations"])
	assert.Equal(t, float64(18), targeting["age_min"])

	assert.Empty(t, tpl.Defaults("tiktok", types.EntityAd))
}

func TestParseTemplates_UnknownLevel(t *testing.T) {
	_, err := ParseTemplates([]byte("meta:\n  creative:\n    name: x\n"))
	assert.ErrorContains(t, err, "unknown level")
}

func TestShippedConfig(t *testing.T) {
	configs, err := LoadCUE(filepath.Join("..", "..", "config", "schema.cue"))
	require.NoError(t, err)
	require.Contains(t, configs, "meta")
	assert.Len(t, configs["meta"].PlatformHierarchy, 3)

	tpl, err := LoadTemplates(filepath.Join("..", "..", "config", "defaults.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "OUTCOME_TRAFFIC", tpl.Defaults("meta", types.EntityCampaign)["objective"])
	assert.Equal(t, float64(1000), tpl.Defaults("dv360", types.EntityCampaign)["budget"])
}

func TestDrift(t *testing.T) {
	configs := map[string]Config{"meta": Fallback()}
	assert.Empty(t, Drift(configs, Templates{
		"meta": {types.EntityCampaign: {"name": "x"}},
	}))

	broken := Fallback()
	broken.Levels[types.EntityAd] = Schema{{ID: "name", Type: TypeText}}
	configs["broken"] = broken

	got := Drift(configs, Templates{
		"meta": {
			types.EntityCampaign: {"nickname": "x"},
		},
		"tiktok": {types.EntityCampaign: {"name": "x"}},
	})
	assert.Equal(t, []string{
		`broken/ad: missing parent field "adset_id"`,
		`templates: meta/campaign sets unknown field "nickname"`,
		`templates: platform "tiktok" has no schema`,
	}, got)
}

func TestDrift_ShippedConfig(t *testing.T) {
	configs, err := LoadCUE(filepath.Join("..", "..", "config", "schema.cue"))
	require.NoError(t, err)
	tpl, err := LoadTemplates(filepath.Join("..", "..", "config", "defaults.yaml"))
	require.NoError(t, err)
	assert.Empty(t, Drift(configs, tpl))
}
