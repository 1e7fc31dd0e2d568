package migrate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyV1 = `{
	"id": "1",
	"createdAt": "2025-11-02T09:30:00.000Z",
	"status": "draft",
	"items": [
		{"id": "batch_1", "type": "campaign", "action": "create", "validationStatus": "pending",
		 "data": {"id": "campaign_17", "name": "Promo", "_draft": true, "_groupColor": "bg-blue-50"}},
		{"id": "batch_2", "type": "adset", "action": "create", "validationStatus": "pending",
		 "data": {"id": "adset_18", "name": "Set", "campaign_id": "campaign_17", "_draft": true}},
		{"id": "batch_3", "type": "ad", "action": "create", "validationStatus": "weird",
		 "data": {"id": "ad_19", "name": "Ad", "adset_id": "2381000042"}},
		{"id": "batch_update_99_1", "type": "campaign", "action": "update", "validationStatus": "pending",
		 "data": {"id": "99", "name": "Renamed", "_edited": true}}
	]
}`

func operations(t *testing.T, state map[string]any) []map[string]any {
	t.Helper()
	ops, err := objects(state["operations"])
	require.NoError(t, err)
	return ops
}

func TestMigrate_LegacyItems(t *testing.T) {
	res, err := Migrate([]byte(legacyV1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FromVersion)
	assert.True(t, res.Migrated())

	st := res.State
	assert.Equal(t, "draft", st["status"])
	assert.Equal(t, "2025-11-02T09:30:00.000Z", st["createdAt"])
	assert.NotContains(t, st, "items")
	assert.NotContains(t, st, "id")

	ops := operations(t, st)
	require.Len(t, ops, 4)

	campaign := ops[0]
	assert.Equal(t, "batch_1", campaign["operationId"])
	assert.Equal(t, "campaign_17", campaign["clientId"])
	assert.Equal(t, map[string]any{"name": "Promo"}, campaign["data"])
	assert.NotContains(t, campaign, "parentRef")

	adset := ops[1]
	assert.Equal(t, map[string]any{"kind": "client_id", "value": "campaign_17"}, adset["parentRef"])
	assert.Equal(t, map[string]any{"name": "Set", "campaign_id": "campaign_17"}, adset["data"])

	ad := ops[2]
	assert.Equal(t, map[string]any{"kind": "platform_id", "value": "2381000042"}, ad["parentRef"])
	assert.Equal(t, "pending", ad["validationStatus"])

	update := ops[3]
	assert.Equal(t, "update", update["operationType"])
	assert.Equal(t, "99", update["entityId"])
	assert.NotEmpty(t, update["clientId"])
	assert.NotEqual(t, campaign["clientId"], update["clientId"])
}

func TestMigrate_V2Envelope(t *testing.T) {
	raw := `{"version": 2, "state": {
		"platform": "meta", "advertiser_id": "act_1", "status": "draft",
		"options": {"validate_only": true},
		"operations": [
			{"operation_id": "op1", "operation_type": "create", "entity_type": "campaign", "client_id": "c1",
			 "parent_id": "ignored", "data": {"name": "A"}},
			{"operation_id": "op2", "operation_type": "create", "entity_type": "adset", "client_id": "s1",
			 "parent_id": "op1", "data": {"name": "B", "campaign_id": "op1"}},
			{"operation_id": "op3", "operation_type": "create", "entity_type": "ad", "client_id": "a1",
			 "parent_id": "c1", "data": {"name": "C"}}
		]}}`

	res, err := Migrate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 2, res.FromVersion)
	assert.Equal(t, "act_1", res.State["advertiserId"])
	assert.Equal(t, map[string]any{"validateOnly": true}, res.State["options"])

	ops := operations(t, res.State)
	require.Len(t, ops, 3)
	assert.NotContains(t, ops[0], "parentRef", "campaigns never carry a parent")
	assert.Equal(t, map[string]any{"kind": "client_id", "value": "op1"}, ops[1]["parentRef"])
	// c1 is a campaign handle, not an adset one, so it cannot be the ad's parent in-batch.
	assert.Equal(t, map[string]any{"kind": "platform_id", "value": "c1"}, ops[2]["parentRef"])
}

func TestMigrate_Idempotent(t *testing.T) {
	first, err := Migrate([]byte(legacyV1))
	require.NoError(t, err)

	wrapped, err := Wrap(first.State)
	require.NoError(t, err)

	second, err := Migrate(wrapped)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, second.FromVersion)
	assert.False(t, second.Migrated())

	a, _ := json.Marshal(first.State)
	b, _ := json.Marshal(second.State)
	assert.JSONEq(t, string(a), string(b))
}

func TestMigrate_BareCurrentState(t *testing.T) {
	raw := `{"platform": "meta", "advertiserId": "act_1", "operations": [], "options": {"validateOnly": false}, "status": "draft"}`
	res, err := Migrate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 3, res.FromVersion)
	assert.Equal(t, "act_1", res.State["advertiserId"])
}

func TestMigrate_Unrecognized(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`[]`,
		`null`,
		`{"foo": "bar"}`,
		`{"version": 9, "state": {"operations": []}}`,
		`{"items": "nope"}`,
		`{"items": [1, 2]}`,
	} {
		_, err := Migrate([]byte(raw))
		assert.True(t, errors.Is(err, ErrUnrecognized), "input %s: got %v", raw, err)
	}
}

func TestUpgrade_RejectsBadVersion(t *testing.T) {
	_, err := Upgrade(0, map[string]any{})
	assert.ErrorIs(t, err, ErrUnrecognized)
}
