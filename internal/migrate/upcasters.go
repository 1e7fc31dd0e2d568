package migrate

import (
	"fmt"
	"strings"
	"time"
)

// parentFields maps a child level to the field naming its parent, and the
// parent's level.
var parentFields = map[string]struct{ field, level string }{
	"adset": {"campaign_id", "campaign"},
	"ad":    {"adset_id", "adset"},
}

// upcastV1ToV2 turns the flat legacy item list into operations with a bare
// parent id. The legacy batch id is dropped; it had no meaning outside the
// browser session that created it.
func upcastV1ToV2(state map[string]any) (map[string]any, error) {
	items, err := objects(state["items"])
	if err != nil {
		return nil, err
	}

	ops := make([]any, 0, len(items))
	for _, item := range items {
		data, _ := item["data"].(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		entity := str(item, "type")
		action := str(item, "action")
		if action == "" {
			action = "create"
		}

		op := map[string]any{
			"operation_id":      str(item, "id"),
			"operation_type":    action,
			"entity_type":       entity,
			"data":              data,
			"validation_status": str(item, "validationStatus"),
		}
		if msg := str(item, "validationMessage"); msg != "" {
			op["validation_message"] = msg
		}
		// Legacy rows carried their own handle in data.id: a temporary id
		// for creates, the platform id for updates.
		if id := data["id"]; id != nil {
			if action == "update" {
				op["entity_id"] = fmt.Sprint(id)
			} else {
				op["client_id"] = fmt.Sprint(id)
			}
		}
		if pf, ok := parentFields[entity]; ok {
			if pid := data[pf.field]; pid != nil {
				op["parent_id"] = fmt.Sprint(pid)
			}
		}
		ops = append(ops, op)
	}

	return map[string]any{
		"platform":      "",
		"advertiser_id": "",
		"operations":    ops,
		"options":       map[string]any{"validate_only": false},
		"status":        str(state, "status"),
		"created_at":    state["createdAt"],
	}, nil
}

// upcastV2ToV3 renames keys to the current camelCase layout, replaces the
// bare parent id with a typed reference and strips ids and UI flags from
// operation data.
func upcastV2ToV3(state map[string]any) (map[string]any, error) {
	rawOps, err := objects(state["operations"])
	if err != nil {
		return nil, err
	}

	// Index pending handles per level so bare parent ids can be typed.
	pending := make(map[string]map[string]bool)
	for _, op := range rawOps {
		lvl := str(op, "entity_type")
		if pending[lvl] == nil {
			pending[lvl] = make(map[string]bool)
		}
		for _, key := range []string{"client_id", "operation_id"} {
			if h := str(op, key); h != "" {
				pending[lvl][h] = true
			}
		}
	}

	usedClientIDs := make(map[string]bool)
	ops := make([]any, 0, len(rawOps))
	for i, op := range rawOps {
		entity := str(op, "entity_type")
		opID := str(op, "operation_id")
		if opID == "" {
			opID = fmt.Sprintf("migrated_%d", i+1)
		}

		clientID := str(op, "client_id")
		if clientID == "" || usedClientIDs[clientID] {
			clientID = fmt.Sprintf("tmp_migrated_%s_%d", entity, i+1)
		}
		usedClientIDs[clientID] = true

		opType := str(op, "operation_type")
		if opType != "update" {
			opType = "create"
		}
		status := str(op, "validation_status")
		switch status {
		case "pending", "success", "error":
		default:
			status = "pending"
		}

		out := map[string]any{
			"operationId":      opID,
			"operationType":    opType,
			"entityType":       entity,
			"clientId":         clientID,
			"data":             stripData(op["data"]),
			"validationStatus": status,
		}
		if eid := str(op, "entity_id"); eid != "" && opType == "update" {
			out["entityId"] = eid
		}
		if msg := str(op, "validation_message"); msg != "" {
			out["validationMessage"] = msg
		}
		if pf, ok := parentFields[entity]; ok {
			if pid := str(op, "parent_id"); pid != "" {
				kind := "platform_id"
				if pending[pf.level][pid] {
					kind = "client_id"
				}
				out["parentRef"] = map[string]any{"kind": kind, "value": pid}
			}
		}
		ops = append(ops, out)
	}

	validateOnly := false
	if o, ok := state["options"].(map[string]any); ok {
		validateOnly, _ = o["validate_only"].(bool)
	}
	status := str(state, "status")
	if status != "submitted" {
		status = "draft"
	}

	out := map[string]any{
		"platform":     str(state, "platform"),
		"advertiserId": str(state, "advertiser_id"),
		"operations":   ops,
		"options":      map[string]any{"validateOnly": validateOnly},
		"status":       status,
		"seq":          float64(len(ops)),
	}
	if created, ok := state["created_at"].(string); ok {
		if _, err := time.Parse(time.RFC3339, created); err == nil {
			out["createdAt"] = created
		}
	}
	return out, nil
}

func stripData(v any) map[string]any {
	data, _ := v.(map[string]any)
	out := make(map[string]any, len(data))
	for k, val := range data {
		if k == "id" || strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = val
	}
	return out
}
