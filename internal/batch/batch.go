// Package batch holds the staging aggregate: an ordered list of pending
// create/update operations for one platform and advertiser, together with
// the store that mutates, persists and restores it.
package batch

import (
	"fmt"
	"time"

	"github.com/matthewbaird/adbatch/internal/types"
)

// Operation is one staged change to a single entity.
type Operation struct {
	OperationID       string                 `json:"operationId"`
	OperationType     types.OperationType    `json:"operationType"`
	EntityType        types.EntityType       `json:"entityType"`
	ClientID          string                 `json:"clientId"`
	EntityID          string                 `json:"entityId,omitempty"`
	ParentRef         *types.ParentRef       `json:"parentRef,omitempty"`
	Data              map[string]any         `json:"data"`
	ValidationStatus  types.ValidationStatus `json:"validationStatus"`
	ValidationMessage string                 `json:"validationMessage,omitempty"`
}

// Options are submission flags forwarded to the publish service.
type Options struct {
	ValidateOnly bool `json:"validateOnly"`
}

// Batch is the aggregate root. Operation order is review order.
type Batch struct {
	Platform     string            `json:"platform"`
	AdvertiserID string            `json:"advertiserId"`
	Operations   []Operation       `json:"operations"`
	Options      Options           `json:"options"`
	Status       types.BatchStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	SubmittedAt  *time.Time        `json:"submittedAt,omitempty"`
	// Seq is the last client id sequence number handed out. It only grows,
	// so a client id is never reused within a batch, even after Clear.
	Seq int `json:"seq"`
	// Published holds client id to platform id bindings reported by the
	// publish service.
	Published Correlator `json:"published,omitempty"`
}

// New returns an empty draft batch.
func New(platform, advertiserID string) *Batch {
	return &Batch{
		Platform:     platform,
		AdvertiserID: advertiserID,
		Operations:   []Operation{},
		Status:       types.BatchDraft,
		CreatedAt:    time.Now().UTC(),
	}
}

// Clone returns a copy that shares no slices or maps with b.
func (b *Batch) Clone() Batch {
	out := *b
	out.Operations = make([]Operation, len(b.Operations))
	for i, op := range b.Operations {
		out.Operations[i] = op.clone()
	}
	if b.SubmittedAt != nil {
		t := *b.SubmittedAt
		out.SubmittedAt = &t
	}
	out.Published = b.Published.clone()
	return out
}

func (op Operation) clone() Operation {
	out := op
	if op.ParentRef != nil {
		ref := *op.ParentRef
		out.ParentRef = &ref
	}
	out.Data = make(map[string]any, len(op.Data))
	for k, v := range op.Data {
		out.Data[k] = v
	}
	return out
}

// Find returns the operation with the given id.
func (b *Batch) Find(operationID string) (Operation, bool) {
	for _, op := range b.Operations {
		if op.OperationID == operationID {
			return op, true
		}
	}
	return Operation{}, false
}

// OfType returns the operations of one level, in batch order.
func (b *Batch) OfType(t types.EntityType) []Operation {
	var out []Operation
	for _, op := range b.Operations {
		if op.EntityType == t {
			out = append(out, op)
		}
	}
	return out
}

// Counts returns the number of operations per level.
func (b *Batch) Counts() map[types.EntityType]int {
	out := make(map[types.EntityType]int)
	for _, op := range b.Operations {
		out[op.EntityType]++
	}
	return out
}

// Check verifies the aggregate invariants: known enums, unique operation
// ids, unique client ids, and parent references only on child levels.
func (b *Batch) Check() error {
	switch b.Status {
	case types.BatchDraft, types.BatchSubmitted:
	default:
		return fmt.Errorf("unknown batch status %q", b.Status)
	}
	opIDs := make(map[string]bool, len(b.Operations))
	clientIDs := make(map[string]bool, len(b.Operations))
	for _, op := range b.Operations {
		if !op.EntityType.IsValid() {
			return fmt.Errorf("operation %s: unknown entity type %q", op.OperationID, op.EntityType)
		}
		if !op.OperationType.IsValid() {
			return fmt.Errorf("operation %s: unknown operation type %q", op.OperationID, op.OperationType)
		}
		if op.OperationID == "" || opIDs[op.OperationID] {
			return fmt.Errorf("operation id %q is empty or duplicated", op.OperationID)
		}
		opIDs[op.OperationID] = true
		if op.ClientID == "" || clientIDs[op.ClientID] {
			return fmt.Errorf("client id %q is empty or duplicated", op.ClientID)
		}
		clientIDs[op.ClientID] = true
		if _, hasParent := op.EntityType.ParentType(); !hasParent && op.ParentRef != nil {
			return fmt.Errorf("operation %s: %s cannot have a parent", op.OperationID, op.EntityType)
		}
	}
	return nil
}

// SubmissionPayload is the input of the external publish service.
type SubmissionPayload struct {
	Platform     string             `json:"platform"`
	AdvertiserID string             `json:"advertiserId"`
	Operations   []PayloadOperation `json:"operations"`
	Options      Options            `json:"options"`
}

// PayloadOperation is an operation as the publish service receives it,
// without local validation bookkeeping.
type PayloadOperation struct {
	OperationID   string              `json:"operationId"`
	OperationType types.OperationType `json:"operationType"`
	EntityType    types.EntityType    `json:"entityType"`
	ClientID      string              `json:"clientId"`
	EntityID      string              `json:"entityId,omitempty"`
	ParentRef     *types.ParentRef    `json:"parentRef,omitempty"`
	Data          map[string]any      `json:"data"`
}

// Payload builds the submission payload from the batch.
func (b *Batch) Payload() SubmissionPayload {
	c := b.Clone()
	ops := make([]PayloadOperation, len(c.Operations))
	for i, op := range c.Operations {
		ops[i] = PayloadOperation{
			OperationID:   op.OperationID,
			OperationType: op.OperationType,
			EntityType:    op.EntityType,
			ClientID:      op.ClientID,
			EntityID:      op.EntityID,
			ParentRef:     op.ParentRef,
			Data:          op.Data,
		}
	}
	return SubmissionPayload{
		Platform:     c.Platform,
		AdvertiserID: c.AdvertiserID,
		Operations:   ops,
		Options:      c.Options,
	}
}
