// Package dedup flags rows that would stage structurally identical operations.
package dedup

import (
	"encoding/json"

	"github.com/matthewbaird/adbatch/internal/draft"
	"github.com/matthewbaird/adbatch/internal/types"
)

// Group is a set of row ids whose payloads are identical, in input order.
type Group []string

// Canonical returns an order-independent serialization of the row payload.
// encoding/json writes map keys sorted at every depth, so two payloads with
// the same content always serialize to the same string.
func Canonical(row types.Row) (string, error) {
	b, err := json.Marshal(draft.Payload(row))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FindDuplicates groups rows that share a canonical payload. Groups are
// ordered by the first appearance of their first row. Rows whose payload
// cannot be serialized are never reported as duplicates.
func FindDuplicates(rows []types.Row) []Group {
	byKey := make(map[string]int)
	var groups []Group
	for _, row := range rows {
		key, err := Canonical(row)
		if err != nil {
			continue
		}
		if idx, ok := byKey[key]; ok {
			groups[idx] = append(groups[idx], row.ID)
			continue
		}
		byKey[key] = len(groups)
		groups = append(groups, Group{row.ID})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// HasDuplicates reports whether any two rows share a canonical payload.
func HasDuplicates(rows []types.Row) bool {
	return len(FindDuplicates(rows)) > 0
}
