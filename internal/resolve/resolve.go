// Package resolve decides whether a child row's parent is an operation still
// pending in the batch or an entity already published on the platform.
package resolve

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/types"
)

// ResolveParent reads fieldID from row and types it against the pending
// operations of parentType. A value matching a pending client id or
// operation id is a client_id reference; any other non-empty value is a
// platform_id reference. An empty or missing value yields no reference.
func ResolveParent(row types.Row, fieldID string, parentType types.EntityType, pending []batch.Operation) (types.ParentRef, bool) {
	raw, ok := row.Get(fieldID)
	if !ok {
		return types.ParentRef{}, false
	}
	value := render(raw)
	if value == "" {
		return types.ParentRef{}, false
	}
	for _, op := range pending {
		if op.EntityType != parentType {
			continue
		}
		if op.ClientID == value || op.OperationID == value {
			return types.ParentRef{Kind: types.RefClientID, Value: value}, true
		}
	}
	return types.ParentRef{Kind: types.RefPlatformID, Value: value}, true
}

// ResolveFor resolves the parent of a row of childType using the level's
// conventional parent field. Campaign rows never have a parent.
func ResolveFor(childType types.EntityType, row types.Row, pending []batch.Operation) (types.ParentRef, bool) {
	parentType, ok := childType.ParentType()
	if !ok {
		return types.ParentRef{}, false
	}
	field, _ := childType.ParentField()
	return ResolveParent(row, field, parentType, pending)
}

// render turns a parent field value into its identifier string. Floats are
// written in plain decimal so 120000 never becomes 1.2e+05.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
