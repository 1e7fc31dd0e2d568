// Package draft builds and edits the rows an operator fills in before they
// are staged. All functions are pure: they return new rows or row lists and
// never mutate their inputs.
package draft

import (
	"github.com/google/uuid"

	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/types"
)

// EditedFlag marks a row the operator has changed since it was created.
const EditedFlag = "_edited"

func newRowID() string { return uuid.New().String() }

// InitRow returns a row with an entry for every active field of the schema.
// A template default wins, then the first option of a select, then the
// field's empty value.
func InitRow(schema fieldschema.Schema, defaults map[string]any) types.Row {
	row := types.Row{ID: newRowID(), Values: make(map[string]any)}
	for _, f := range schema.Active() {
		if v, ok := defaults[f.ID]; ok {
			row.Values[f.ID] = copyValue(v)
			continue
		}
		if f.Type == fieldschema.TypeSelect && len(f.Options) > 0 {
			row.Values[f.ID] = f.Options[0].Value
			continue
		}
		row.Values[f.ID] = EmptyValue(f)
	}
	return row
}

// EmptyValue is the blank value for a field's kind.
func EmptyValue(f fieldschema.Field) any {
	switch f.Kind() {
	case fieldschema.KindObject:
		return map[string]any{}
	case fieldschema.KindArray:
		return []any{}
	}
	if f.Type == fieldschema.TypeMultiSelect {
		return []any{}
	}
	return ""
}

// DuplicateRow copies all field values into a row with a fresh id.
// Nested containers are shared with the source row.
func DuplicateRow(row types.Row) types.Row {
	values := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		values[k] = v
	}
	return types.Row{ID: newRowID(), EntityID: row.EntityID, Values: values}
}

// AddRow appends a freshly initialized row.
func AddRow(rows []types.Row, schema fieldschema.Schema, defaults map[string]any) []types.Row {
	out := make([]types.Row, 0, len(rows)+1)
	out = append(out, rows...)
	return append(out, InitRow(schema, defaults))
}

// DuplicateIn inserts a copy of the row with the given id directly after it.
// An unknown id returns the list unchanged.
func DuplicateIn(rows []types.Row, id string) []types.Row {
	for i, r := range rows {
		if r.ID != id {
			continue
		}
		out := make([]types.Row, 0, len(rows)+1)
		out = append(out, rows[:i+1]...)
		out = append(out, DuplicateRow(r))
		return append(out, rows[i+1:]...)
	}
	return rows
}

// RemoveRow drops the row with the given id. The sheet always keeps at
// least one row, so removing the last remaining row is a no-op.
func RemoveRow(rows []types.Row, id string) []types.Row {
	if len(rows) <= 1 {
		return rows
	}
	out := make([]types.Row, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// SetValue sets one field on one row and marks the row edited.
func SetValue(rows []types.Row, id, fieldID string, value any) []types.Row {
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		if r.ID != id {
			out[i] = r
			continue
		}
		updated := DuplicateRow(r)
		updated.ID = r.ID
		updated.Values[fieldID] = value
		updated.Values[EditedFlag] = true
		out[i] = updated
	}
	return out
}

// Payload returns the row's values without the row id, the target entity id
// or transient UI flags. This is what a staged operation carries as data.
func Payload(row types.Row) map[string]any {
	out := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		if k == types.RowIDKey || k == types.EntityIDKey || types.IsTransientKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// copyValue deep-copies template containers so rows never share them.
func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = copyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = copyValue(vv)
		}
		return out
	default:
		return v
	}
}
