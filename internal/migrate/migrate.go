// Package migrate upgrades persisted batch state to the current shape.
//
// Each persisted layout has a version. An Upcaster takes the state of
// version N to version N+1; Migrate detects the stored version and applies
// the chain until the state is current. Current state passes through
// unchanged, so migrating twice equals migrating once.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion is the layout written by this build.
const CurrentVersion = 3

// ErrUnrecognized is returned for data that matches no known layout.
var ErrUnrecognized = errors.New("unrecognized persisted batch state")

// Upcaster converts a state map of one version into the next version.
type Upcaster func(state map[string]any) (map[string]any, error)

// chain[i] upgrades version i+1 to version i+2.
var chain = []Upcaster{
	upcastV1ToV2,
	upcastV2ToV3,
}

// Envelope is the persisted layout: the batch state plus its version.
type Envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Wrap serializes state into a current-version envelope.
func Wrap(state any) ([]byte, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return json.Marshal(Envelope{Version: CurrentVersion, State: b})
}

// Result is the outcome of a migration.
type Result struct {
	FromVersion int
	State       map[string]any
}

// Migrated reports whether any upcaster ran.
func (r Result) Migrated() bool { return r.FromVersion != CurrentVersion }

// Migrate decodes raw persisted bytes and upgrades them to CurrentVersion.
// Both enveloped and bare (pre-envelope) states are accepted.
func Migrate(raw []byte) (Result, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return Result{}, fmt.Errorf("%w: not a JSON object", ErrUnrecognized)
	}

	version, state, err := DetectVersion(doc)
	if err != nil {
		return Result{}, err
	}
	upgraded, err := Upgrade(version, state)
	if err != nil {
		return Result{}, err
	}
	return Result{FromVersion: version, State: upgraded}, nil
}

// Upgrade applies the upcasters from version to CurrentVersion.
func Upgrade(version int, state map[string]any) (map[string]any, error) {
	if version < 1 || version > CurrentVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnrecognized, version)
	}
	for v := version; v < CurrentVersion; v++ {
		next, err := chain[v-1](state)
		if err != nil {
			return nil, fmt.Errorf("upgrading v%d to v%d: %w", v, v+1, err)
		}
		state = next
	}
	return state, nil
}

// DetectVersion unwraps an envelope if present and determines the layout
// version of the contained state.
func DetectVersion(doc map[string]any) (int, map[string]any, error) {
	if inner, ok := doc["state"].(map[string]any); ok {
		if v, ok := doc["version"].(float64); ok && v >= 1 {
			return int(v), inner, nil
		}
		doc = inner
	}

	if _, ok := doc["items"]; ok {
		return 1, doc, nil
	}
	if _, ok := doc["advertiserId"]; ok {
		return 3, doc, nil
	}
	if _, ok := doc["advertiser_id"]; ok {
		return 2, doc, nil
	}
	if ops, ok := doc["operations"].([]any); ok {
		if len(ops) == 0 {
			return 3, doc, nil
		}
		if first, ok := ops[0].(map[string]any); ok {
			if _, ok := first["entityType"]; ok {
				return 3, doc, nil
			}
			if _, ok := first["entity_type"]; ok {
				return 2, doc, nil
			}
		}
	}
	return 0, nil, ErrUnrecognized
}

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func objects(v any) ([]map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list", ErrUnrecognized)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list of objects", ErrUnrecognized)
		}
		out = append(out, m)
	}
	return out, nil
}
