package stage

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/persist"
	"github.com/matthewbaird/adbatch/internal/types"
	"github.com/matthewbaird/adbatch/internal/validate"
)

func testConfig() fieldschema.Config {
	text := func(id string, required bool) fieldschema.Field {
		return fieldschema.Field{ID: id, Label: id, Type: fieldschema.TypeText, Required: required, Editable: true, IsActive: true}
	}
	return fieldschema.Config{
		PlatformHierarchy: []types.EntityType{types.EntityCampaign, types.EntityAdset},
		Levels: map[types.EntityType]fieldschema.Schema{
			types.EntityCampaign: {text("name", true), text("spend_cap", false)},
			types.EntityAdset:    {text("name", true), text("campaign_id", true)},
		},
	}
}

type fixture struct {
	store  *batch.Store
	stager *Stager
}

func newFixture(t *testing.T, p persist.Persister) fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	store, err := batch.Open(context.Background(), p, "meta", "act_1", batch.WithLogger(logger))
	require.NoError(t, err)
	return fixture{
		store: store,
		stager: New(Config{
			Store:     store,
			Registry:  fieldschema.NewRegistry(testConfig()),
			Templates: fieldschema.Templates{"meta": {types.EntityCampaign: {"spend_cap": "1000"}}},
			Validator: validate.New(validate.Shallow),
			Platform:  "meta",
			Logger:    logger,
		}),
	}
}

func row(id string, values map[string]any) types.Row {
	return types.Row{ID: id, Values: values}
}

func TestStage_ValidationBlocks(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	res, err := f.stager.Stage(context.Background(), Request{
		EntityType: types.EntityCampaign,
		Rows:       []types.Row{row("r1", map[string]any{"name": "", "spend_cap": "5"})},
	})
	require.NoError(t, err)
	assert.False(t, res.Staged())
	assert.Equal(t, validate.FieldResults{"name": false, "spend_cap": true}, res.Report["r1"])
	assert.Empty(t, f.store.Snapshot().Operations)
}

func TestStage_DuplicatesNeedAcknowledgement(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	rows := []types.Row{
		row("r1", map[string]any{"name": "Promo", "_draft": true}),
		row("r2", map[string]any{"name": "Promo"}),
	}
	req := Request{EntityType: types.EntityCampaign, Rows: rows}

	res, err := f.stager.Stage(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.NeedsAcknowledgement)
	assert.Len(t, res.Duplicates, 1)
	assert.Empty(t, f.store.Snapshot().Operations)

	req.AcknowledgeDuplicates = true
	res, err = f.stager.Stage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Operations, 2)
	assert.NotEqual(t, res.Operations[0].OperationID, res.Operations[1].OperationID)
	assert.Equal(t, map[string]any{"name": "Promo"}, res.Operations[0].Data)
}

func TestStage_ResolvesParents(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	ctx := context.Background()

	camps, err := f.stager.Stage(ctx, Request{
		EntityType: types.EntityCampaign,
		Rows:       []types.Row{row("r1", map[string]any{"name": "A"})},
	})
	require.NoError(t, err)
	clientID := camps.Operations[0].ClientID

	res, err := f.stager.Stage(ctx, Request{
		EntityType: types.EntityAdset,
		Rows: []types.Row{
			row("s1", map[string]any{"name": "New parent", "campaign_id": clientID}),
			row("s2", map[string]any{"name": "Existing parent", "campaign_id": "act_999_existing"}),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Operations, 2)
	assert.Equal(t, &types.ParentRef{Kind: types.RefClientID, Value: clientID}, res.Operations[0].ParentRef)
	assert.Equal(t, &types.ParentRef{Kind: types.RefPlatformID, Value: "act_999_existing"}, res.Operations[1].ParentRef)
}

func TestStage_PublishedParentRewritten(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	ctx := context.Background()

	camps, err := f.stager.Stage(ctx, Request{
		EntityType: types.EntityCampaign,
		Rows:       []types.Row{row("r1", map[string]any{"name": "A"})},
	})
	require.NoError(t, err)
	clientID := camps.Operations[0].ClientID
	require.NoError(t, f.store.MarkSubmitted(ctx, map[string]string{clientID: "2381"}))
	require.NoError(t, f.store.Clear(ctx))

	res, err := f.stager.Stage(ctx, Request{
		EntityType: types.EntityAdset,
		Rows:       []types.Row{row("s1", map[string]any{"name": "Set", "campaign_id": clientID})},
	})
	require.NoError(t, err)
	assert.Equal(t, &types.ParentRef{Kind: types.RefPlatformID, Value: "2381"}, res.Operations[0].ParentRef)
}

func TestStage_UnknownLevel(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	_, err := f.stager.Stage(context.Background(), Request{
		EntityType: types.EntityAd,
		Rows:       []types.Row{row("r1", map[string]any{"name": "A"})},
	})
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestStage_UpdateNeedsEntityID(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	ctx := context.Background()
	req := Request{
		EntityType:    types.EntityCampaign,
		OperationType: types.OperationUpdate,
		Rows:          []types.Row{row("r1", map[string]any{"name": "Renamed"})},
	}
	_, err := f.stager.Stage(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req.Rows[0].EntityID = "2381"
	res, err := f.stager.Stage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2381", res.Operations[0].EntityID)
	assert.Equal(t, types.OperationUpdate, res.Operations[0].OperationType)
}

func TestStage_SubmittedBatchRejects(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	ctx := context.Background()
	require.NoError(t, f.store.MarkSubmitted(ctx, nil))

	_, err := f.stager.Stage(ctx, Request{
		EntityType: types.EntityCampaign,
		Rows:       []types.Row{row("r1", map[string]any{"name": "A"})},
	})
	assert.ErrorIs(t, err, batch.ErrSubmitted)
}

func TestInitRowsAndCheck(t *testing.T) {
	f := newFixture(t, persist.NewMemoryPersister())
	rows, err := f.stager.InitRows(types.EntityCampaign, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1000", rows[0].Values["spend_cap"])
	assert.Equal(t, "", rows[0].Values["name"])

	res, err := f.stager.Check(Request{EntityType: types.EntityCampaign, Rows: rows})
	require.NoError(t, err)
	assert.True(t, res.Report.HasErrors())
	assert.Len(t, res.Duplicates, 1)
	assert.Empty(t, f.store.Snapshot().Operations)
}

func TestStage_RowIDsMustBeUnique(t *testing.T) {
	tests := []struct {
		name string
		rows []types.Row
	}{
		{"missing ids", []types.Row{
			row("", map[string]any{"name": ""}),
			row("", map[string]any{"name": "Promo A"}),
		}},
		{"shared id", []types.Row{
			row("r1", map[string]any{"name": ""}),
			row("r1", map[string]any{"name": "Promo A"}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, persist.NewMemoryPersister())
			req := Request{EntityType: types.EntityCampaign, Rows: tt.rows}

			_, err := f.stager.Stage(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			_, err = f.stager.Check(req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, f.store.Snapshot().Operations)
		})
	}
}
