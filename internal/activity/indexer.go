package activity

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/event"
	"github.com/matthewbaird/adbatch/internal/types"
)

// Indexer consumes batch events and writes one activity entry per index
// key: one for the batch and one for every operation the event names.
// It is subscribed to the event bus as a handler.
type Indexer struct {
	store  Store
	logger logrus.FieldLogger
}

// NewIndexer creates a new activity indexer.
func NewIndexer(store Store, logger logrus.FieldLogger) *Indexer {
	return &Indexer{store: store, logger: logger}
}

// HandleEvent indexes evt and writes the entries.
func (idx *Indexer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	entries := Index(evt)
	if err := idx.store.WriteEntries(ctx, entries); err != nil {
		return err
	}
	idx.logger.WithFields(logrus.Fields{
		"event_type": evt.EventType,
		"entries":    len(entries),
	}).Debug("activity indexed")
	return nil
}

// Index fans an event out into entries. Operations come from the event's
// operation refs, plus the client ids bound by a submission.
func Index(evt event.DomainEvent) []Entry {
	base := Entry{
		EventID:      evt.ID,
		EventType:    evt.EventType,
		OccurredAt:   evt.OccurredAt,
		Platform:     evt.Platform,
		AdvertiserID: evt.AdvertiserID,
		Summary:      evt.Summary,
		Payload:      evt.Payload,
	}

	batchEntry := base
	batchEntry.Role = RoleBatch
	entries := []Entry{batchEntry}

	seen := make(map[string]bool)
	for _, ref := range extractRefs(evt) {
		if ref.clientID == "" || seen[ref.clientID] {
			continue
		}
		seen[ref.clientID] = true

		e := base
		e.ClientID = ref.clientID
		e.EntityType = ref.entityType
		e.Role = ref.role
		entries = append(entries, e)
	}
	return entries
}

// operationRef is an internal struct for tracking operation references
// during indexing.
type operationRef struct {
	clientID   string
	entityType types.EntityType
	role       string
}

func extractRefs(evt event.DomainEvent) []operationRef {
	refs := make([]operationRef, 0, len(evt.Operations))
	for _, op := range evt.Operations {
		refs = append(refs, operationRef{clientID: op.ClientID, entityType: op.EntityType, role: RoleSubject})
	}

	if evt.EventType == event.TypeBatchSubmitted && len(evt.Payload) > 0 {
		var p event.BatchSubmittedPayload
		if err := json.Unmarshal(evt.Payload, &p); err == nil {
			for clientID := range p.Bindings {
				refs = append(refs, operationRef{clientID: clientID, role: RolePublished})
			}
		}
	}
	return refs
}
