// Package fieldschema describes the editable fields of each entity level.
//
// A schema is a recursive list of Field values: object and array fields carry
// a sub-schema describing their members (or one element, for arrays). The
// model is pure data; the row builder and validator walk it by Kind.
package fieldschema

import (
	"errors"
	"fmt"
)

// FieldType is the declared editor type of a field.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeNumber      FieldType = "number"
	TypeSelect      FieldType = "select"
	TypeMultiSelect FieldType = "multi-select"
	TypeDate        FieldType = "date"
	TypeDatetime    FieldType = "datetime"
	TypeTextarea    FieldType = "textarea"
	TypeURL         FieldType = "url"
	TypeObject      FieldType = "object"
	TypeArray       FieldType = "array"
)

// Kind is the closed set of shapes a field value can take.
type Kind int

const (
	KindScalar Kind = iota
	KindSelect
	KindObject
	KindArray
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSelect:
		return "select"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Kind classifies the field type. Unknown types return false.
func (t FieldType) Kind() (Kind, bool) {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeDatetime, TypeTextarea, TypeURL:
		return KindScalar, true
	case TypeSelect, TypeMultiSelect:
		return KindSelect, true
	case TypeObject:
		return KindObject, true
	case TypeArray:
		return KindArray, true
	default:
		return 0, false
	}
}

// Option is one choice of a select or multi-select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one form field.
type Field struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Editable bool      `json:"editable"`
	IsActive bool      `json:"isActive"`
	Options  []Option  `json:"options,omitempty"`
	Schema   Schema    `json:"schema,omitempty"`
}

// Kind returns the field's value shape. Callers should have run Validate.
func (f Field) Kind() Kind {
	k, _ := f.Type.Kind()
	return k
}

// Mandatory reports whether the field is required but system-managed.
// Such fields are always supplied and never checked by the validator.
func (f Field) Mandatory() bool {
	return f.Required && !f.Editable
}

// Validate checks the structural invariants of the field and its children.
func (f Field) Validate() error {
	if f.ID == "" {
		return errors.New("field id is empty")
	}
	kind, ok := f.Type.Kind()
	if !ok {
		return fmt.Errorf("field %q: unknown type %q", f.ID, f.Type)
	}
	switch kind {
	case KindObject, KindArray:
		if len(f.Schema) == 0 {
			return fmt.Errorf("field %q: %s field requires a schema", f.ID, f.Type)
		}
		if len(f.Options) > 0 {
			return fmt.Errorf("field %q: options are only allowed on select fields", f.ID)
		}
		if err := f.Schema.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.ID, err)
		}
	case KindSelect:
		if len(f.Schema) > 0 {
			return fmt.Errorf("field %q: schema is only allowed on object and array fields", f.ID)
		}
	default:
		if len(f.Schema) > 0 {
			return fmt.Errorf("field %q: schema is only allowed on object and array fields", f.ID)
		}
		if len(f.Options) > 0 {
			return fmt.Errorf("field %q: options are only allowed on select fields", f.ID)
		}
	}
	return nil
}

// Schema is the ordered field list of one level (or of one nested container).
type Schema []Field

// Validate checks every field and the uniqueness of ids at this level.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate field id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Active returns the fields currently offered to the operator.
func (s Schema) Active() Schema {
	out := make(Schema, 0, len(s))
	for _, f := range s {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the field with the given id.
func (s Schema) Lookup(id string) (Field, bool) {
	for _, f := range s {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
