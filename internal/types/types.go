// Package types provides the shared value types of the staging engine:
// entity levels, operation kinds, rows and typed parent references.
// These types travel between the row builder, the validator, the resolver
// and the batch store, and are serialized as JSON in persisted state.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntityType is one tier of the campaign -> adset -> ad hierarchy.
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityAdset    EntityType = "adset"
	EntityAd       EntityType = "ad"
)

// AllEntityTypes lists the levels in hierarchy order.
var AllEntityTypes = []EntityType{EntityCampaign, EntityAdset, EntityAd}

// IsValid reports whether t is a known level.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityCampaign, EntityAdset, EntityAd:
		return true
	}
	return false
}

// ParentType returns the level an entity of type t links to.
// Campaigns have no parent.
func (t EntityType) ParentType() (EntityType, bool) {
	switch t {
	case EntityAdset:
		return EntityCampaign, true
	case EntityAd:
		return EntityAdset, true
	default:
		return "", false
	}
}

// ParentField returns the row field holding the parent identifier
// (e.g. "campaign_id" on an adset row).
func (t EntityType) ParentField() (string, bool) {
	parent, ok := t.ParentType()
	if !ok {
		return "", false
	}
	return string(parent) + "_id", true
}

// OperationType is the kind of change an operation stages.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
)

func (o OperationType) IsValid() bool {
	return o == OperationCreate || o == OperationUpdate
}

// ValidationStatus tracks platform-side validation of a staged operation.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationSuccess ValidationStatus = "success"
	ValidationError   ValidationStatus = "error"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchDraft     BatchStatus = "draft"
	BatchSubmitted BatchStatus = "submitted"
)

// ParentRefKind tells whether a parent reference points into the batch or at
// an entity that already exists on the platform.
type ParentRefKind string

const (
	RefClientID   ParentRefKind = "client_id"
	RefPlatformID ParentRefKind = "platform_id"
)

// ParentRef is the tagged union linking a child operation to its parent.
type ParentRef struct {
	Kind  ParentRefKind `json:"kind"`
	Value string        `json:"value"`
}

// IsPending reports whether the parent is another operation in the batch.
func (r ParentRef) IsPending() bool { return r.Kind == RefClientID }

func (r ParentRef) String() string { return string(r.Kind) + ":" + r.Value }

// UnmarshalJSON rejects unknown kinds so persisted refs stay well-formed.
func (r *ParentRef) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind  ParentRefKind `json:"kind"`
		Value string        `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case RefClientID, RefPlatformID:
	default:
		return fmt.Errorf("unknown parent ref kind %q", raw.Kind)
	}
	r.Kind, r.Value = raw.Kind, raw.Value
	return nil
}

// Reserved row keys. Everything else in a row's JSON object is a field value.
const (
	RowIDKey    = "id"
	EntityIDKey = "entityId"
)

// Row is one line of user-entered data. ID is an opaque handle for list
// management and is never sent downstream. EntityID names the existing
// platform entity an update row targets.
type Row struct {
	ID       string
	EntityID string
	Values   map[string]any
}

// Get returns the value stored for a field id.
func (r Row) Get(fieldID string) (any, bool) {
	v, ok := r.Values[fieldID]
	return v, ok
}

// MarshalJSON flattens the row into a single object with the row id under "id".
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+2)
	for k, v := range r.Values {
		out[k] = v
	}
	out[RowIDKey] = r.ID
	if r.EntityID != "" {
		out[EntityIDKey] = r.EntityID
	}
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.ID, r.EntityID = "", ""
	if id, ok := raw[RowIDKey]; ok {
		r.ID = fmt.Sprint(id)
		delete(raw, RowIDKey)
	}
	if eid, ok := raw[EntityIDKey]; ok {
		r.EntityID = fmt.Sprint(eid)
		delete(raw, EntityIDKey)
	}
	r.Values = raw
	return nil
}

// IsTransientKey reports whether a row key is a UI-only flag such as
// _draft, _edited, _error or _groupColor.
func IsTransientKey(key string) bool {
	return strings.HasPrefix(key, "_")
}
