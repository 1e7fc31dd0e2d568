// Package validate checks rows against their level schema for required data.
//
// Results are plain data (a per-row, per-field pass map); a missing value is
// never an error. Shallow mode checks the presence of object and array
// containers only; Deep mode also walks their sub-schemas.
package validate

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/types"
)

// Mode selects how far into nested containers required checks reach.
type Mode int

const (
	Shallow Mode = iota
	Deep
)

// ParseMode maps a config string to a Mode. Unknown values yield Shallow.
func ParseMode(s string) Mode {
	if s == "deep" {
		return Deep
	}
	return Shallow
}

func (m Mode) String() string {
	if m == Deep {
		return "deep"
	}
	return "shallow"
}

// FieldResults maps field id (or dotted nested path in Deep mode) to pass/fail.
type FieldResults map[string]bool

// Valid reports whether every entry passed.
func (r FieldResults) Valid() bool {
	for _, ok := range r {
		if !ok {
			return false
		}
	}
	return true
}

// Failed returns the failing field ids in sorted order.
func (r FieldResults) Failed() []string {
	var out []string
	for id, ok := range r {
		if !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Report maps row id to that row's field results.
type Report map[string]FieldResults

// HasErrors reports whether any row has a failing field.
func (r Report) HasErrors() bool {
	for _, fr := range r {
		if !fr.Valid() {
			return true
		}
	}
	return false
}

// Valid reports whether one row is submittable. Unknown rows are not.
func (r Report) Valid(rowID string) bool {
	fr, ok := r[rowID]
	return ok && fr.Valid()
}

// Failures returns the failing field ids per row, omitting valid rows.
func (r Report) Failures() map[string][]string {
	out := make(map[string][]string)
	for rowID, fr := range r {
		if failed := fr.Failed(); len(failed) > 0 {
			out[rowID] = failed
		}
	}
	return out
}

// Validator checks rows in the configured mode.
type Validator struct {
	mode Mode
}

// New creates a validator.
func New(mode Mode) *Validator {
	return &Validator{mode: mode}
}

// Mode returns the configured strictness.
func (v *Validator) Mode() Mode { return v.mode }

// ValidateRow returns one entry per active field of the schema; false marks a
// required, editable field whose value is missing.
func (v *Validator) ValidateRow(row types.Row, schema fieldschema.Schema) FieldResults {
	out := make(FieldResults)
	v.walk(out, "", row.Values, schema)
	return out
}

// ValidateBatchRows validates every row and keys the results by row id.
func (v *Validator) ValidateBatchRows(rows []types.Row, schema fieldschema.Schema) Report {
	rep := make(Report, len(rows))
	for _, row := range rows {
		rep[row.ID] = v.ValidateRow(row, schema)
	}
	return rep
}

// ValidateRow validates in Shallow mode.
func ValidateRow(row types.Row, schema fieldschema.Schema) FieldResults {
	return New(Shallow).ValidateRow(row, schema)
}

// ValidateBatchRows validates in Shallow mode.
func ValidateBatchRows(rows []types.Row, schema fieldschema.Schema) Report {
	return New(Shallow).ValidateBatchRows(rows, schema)
}

func (v *Validator) walk(out FieldResults, prefix string, values map[string]any, schema fieldschema.Schema) bool {
	allOK := true
	for _, f := range schema.Active() {
		key := prefix + f.ID
		val, present := values[f.ID]

		ok := true
		if f.Required && !f.Mandatory() {
			ok = present && !isEmpty(f, val)
		}
		if ok && v.mode == Deep && present {
			ok = v.walkContainer(out, key, f, val)
		}

		out[key] = ok
		if !ok {
			allOK = false
		}
	}
	return allOK
}

// walkContainer recurses into object and array values in Deep mode.
func (v *Validator) walkContainer(out FieldResults, key string, f fieldschema.Field, val any) bool {
	switch f.Kind() {
	case fieldschema.KindObject:
		m, ok := val.(map[string]any)
		if !ok || len(m) == 0 {
			return true
		}
		return v.walk(out, key+".", m, f.Schema)
	case fieldschema.KindArray:
		items, ok := val.([]any)
		if !ok {
			return true
		}
		allOK := true
		for i, item := range items {
			elemKey := key + "[" + strconv.Itoa(i) + "]"
			m, isMap := item.(map[string]any)
			if !isMap {
				out[elemKey] = false
				allOK = false
				continue
			}
			if !v.walk(out, elemKey+".", m, f.Schema) {
				allOK = false
			}
		}
		return allOK
	}
	return true
}

// isEmpty applies the per-kind presence rule to a present value.
func isEmpty(f fieldschema.Field, val any) bool {
	if val == nil {
		return true
	}
	switch f.Kind() {
	case fieldschema.KindObject:
		m, ok := val.(map[string]any)
		return !ok || len(m) == 0
	case fieldschema.KindArray:
		items, ok := val.([]any)
		return !ok || len(items) == 0
	}
	switch x := val.(type) {
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// Describe renders a row's failures for log lines and error payloads.
func Describe(fr FieldResults) string {
	failed := fr.Failed()
	if len(failed) == 0 {
		return ""
	}
	return fmt.Sprintf("missing required fields: %v", failed)
}
