package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matthewbaird/adbatch/internal/types"
)

// Event types emitted by the batch store.
const (
	TypeOperationsStaged = "operations_staged"
	TypeOperationRemoved = "operation_removed"
	TypeBatchCleared     = "batch_cleared"
	TypeBatchSubmitted   = "batch_submitted"
	TypeBatchRestored    = "batch_restored"
)

// DomainEvent carries the canonical shape of every batch event.
type DomainEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"eventType"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Platform     string          `json:"platform"`
	AdvertiserID string          `json:"advertiserId"`
	Operations   []OperationRef  `json:"operations,omitempty"`
	Summary      string          `json:"summary"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// OperationRef identifies one operation touched by an event.
type OperationRef struct {
	OperationID string           `json:"operationId"`
	ClientID    string           `json:"clientId"`
	EntityType  types.EntityType `json:"entityType"`
}

// Scope names the batch an event belongs to.
type Scope struct {
	Platform     string
	AdvertiserID string
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newEvent(s Scope, eventType, summary string, refs []OperationRef, payload any) DomainEvent {
	evt := DomainEvent{
		ID:           newID(),
		EventType:    eventType,
		OccurredAt:   time.Now().UTC(),
		Platform:     s.Platform,
		AdvertiserID: s.AdvertiserID,
		Operations:   refs,
		Summary:      summary,
	}
	if payload != nil {
		evt.Payload = mustJSON(payload)
	}
	return evt
}

// NewOperationsStaged reports operations appended to the batch.
func NewOperationsStaged(s Scope, refs []OperationRef) DomainEvent {
	counts := make(map[types.EntityType]int)
	for _, r := range refs {
		counts[r.EntityType]++
	}
	return newEvent(s, TypeOperationsStaged,
		fmt.Sprintf("%d operation(s) staged", len(refs)), refs, map[string]any{"counts": counts})
}

// NewOperationRemoved reports a single removed operation.
func NewOperationRemoved(s Scope, ref OperationRef) DomainEvent {
	return newEvent(s, TypeOperationRemoved,
		fmt.Sprintf("%s operation %s removed", ref.EntityType, ref.ClientID), []OperationRef{ref}, nil)
}

// BatchClearedPayload carries the number of discarded operations.
type BatchClearedPayload struct {
	Discarded int `json:"discarded"`
}

func NewBatchCleared(s Scope, p BatchClearedPayload) DomainEvent {
	return newEvent(s, TypeBatchCleared,
		fmt.Sprintf("batch cleared, %d operation(s) discarded", p.Discarded), nil, p)
}

// BatchSubmittedPayload carries the publish outcome reported back to the store.
type BatchSubmittedPayload struct {
	Operations int               `json:"operations"`
	Bindings   map[string]string `json:"bindings,omitempty"`
}

func NewBatchSubmitted(s Scope, p BatchSubmittedPayload) DomainEvent {
	return newEvent(s, TypeBatchSubmitted,
		fmt.Sprintf("batch submitted with %d operation(s)", p.Operations), nil, p)
}

// BatchRestoredPayload describes how persisted state was brought back.
type BatchRestoredPayload struct {
	FromVersion int    `json:"fromVersion"`
	Operations  int    `json:"operations"`
	Source      string `json:"source"`
	Reset       bool   `json:"reset"`
}

func NewBatchRestored(s Scope, p BatchRestoredPayload) DomainEvent {
	summary := fmt.Sprintf("batch restored from %s (v%d, %d operation(s))", p.Source, p.FromVersion, p.Operations)
	if p.Reset {
		summary = "persisted batch unrecognized, reset to empty draft"
	}
	return newEvent(s, TypeBatchRestored, summary, nil, p)
}
