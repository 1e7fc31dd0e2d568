package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/event"
	"github.com/matthewbaird/adbatch/internal/migrate"
	"github.com/matthewbaird/adbatch/internal/persist"
	"github.com/matthewbaird/adbatch/internal/types"
)

var (
	// ErrPersist wraps storage failures. The in-memory state has already
	// changed when it is returned.
	ErrPersist = errors.New("persisting batch")
	// ErrSubmitted is returned when a submitted batch is edited.
	ErrSubmitted = errors.New("batch already submitted; clear it to start a new draft")
	// ErrAlreadySubmitted is returned by a second MarkSubmitted.
	ErrAlreadySubmitted = errors.New("batch already marked submitted")
)

// Draft is an operation before the store assigns its identifiers.
type Draft struct {
	OperationType types.OperationType
	EntityType    types.EntityType
	EntityID      string
	ParentRef     *types.ParentRef
	Data          map[string]any
}

// Key returns the persistence key of a platform/advertiser batch.
func Key(platform, advertiserID string) string {
	return fmt.Sprintf("adbatch:batch:%s:%s", platform, advertiserID)
}

// Store owns one batch. All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	batch      *Batch
	key        string
	persister  persist.Persister
	publisher  event.Publisher
	logger     logrus.FieldLogger
	legacyKeys []string
	now        func() time.Time
	// unread is set when Open could not read the persisted batch. Writes are
	// held back until a later read finds nothing to overwrite.
	unread bool
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sends lifecycle events to p.
func WithPublisher(p event.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithLogger sets the store logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLegacyKeys lists older keys to restore from when the current key is
// empty. A batch found there is moved to the current key.
func WithLegacyKeys(keys ...string) Option {
	return func(s *Store) { s.legacyKeys = append(s.legacyKeys, keys...) }
}

// Open restores the batch of platform/advertiserID from p, migrating older
// layouts. It always returns a usable store; the error reports a storage
// failure (ErrPersist) or unrecognized data that was reset
// (migrate.ErrUnrecognized).
func Open(ctx context.Context, p persist.Persister, platform, advertiserID string, opts ...Option) (*Store, error) {
	s := &Store{
		batch:     New(platform, advertiserID),
		key:       Key(platform, advertiserID),
		persister: p,
		publisher: event.Discard,
		logger:    logrus.StandardLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	log := s.logger.WithField("key", s.key)

	raw, source, err := s.load(ctx)
	if err != nil {
		log.WithError(err).Error("loading persisted batch")
		s.unread = true
		return s, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if raw == nil {
		return s, nil
	}

	res, err := migrate.Migrate(raw)
	var restored *Batch
	if err == nil {
		restored, err = s.decode(res.State)
	}
	if err != nil {
		log.WithError(err).WithField("source", source).Warn("persisted batch unrecognized, starting an empty draft")
		s.publish(ctx, event.NewBatchRestored(s.scope(), event.BatchRestoredPayload{Source: source, Reset: true}))
		if perr := s.relocate(ctx, source); perr != nil {
			return s, perr
		}
		return s, err
	}

	s.batch = restored
	log.WithFields(logrus.Fields{
		"source":       source,
		"from_version": res.FromVersion,
		"operations":   len(restored.Operations),
	}).Info("batch restored")
	s.publish(ctx, event.NewBatchRestored(s.scope(), event.BatchRestoredPayload{
		FromVersion: res.FromVersion,
		Operations:  len(restored.Operations),
		Source:      source,
	}))

	if res.Migrated() || source != s.key {
		if err := s.relocate(ctx, source); err != nil {
			return s, err
		}
	}
	return s, nil
}

// load returns the first persisted value found, current key first.
func (s *Store) load(ctx context.Context) ([]byte, string, error) {
	for _, key := range append([]string{s.key}, s.legacyKeys...) {
		raw, err := s.persister.Load(ctx, key)
		if errors.Is(err, persist.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, key, err
		}
		return raw, key, nil
	}
	return nil, "", nil
}

// relocate writes the current state under the current key and removes the
// legacy key it was read from.
func (s *Store) relocate(ctx context.Context, source string) error {
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	if source == s.key {
		return nil
	}
	if err := s.persister.Delete(ctx, source); err != nil {
		return fmt.Errorf("%w: removing legacy key %s: %v", ErrPersist, source, err)
	}
	return nil
}

// decode converts a migrated state map into a checked Batch. Layouts written
// before the platform was recorded adopt the store's platform and advertiser.
func (s *Store) decode(state map[string]any) (*Batch, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", migrate.ErrUnrecognized, err)
	}
	var out Batch
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", migrate.ErrUnrecognized, err)
	}
	if out.Platform == "" {
		out.Platform = s.batch.Platform
	}
	if out.AdvertiserID == "" {
		out.AdvertiserID = s.batch.AdvertiserID
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}
	if out.Operations == nil {
		out.Operations = []Operation{}
	}
	if out.Seq < len(out.Operations) {
		out.Seq = len(out.Operations)
	}
	if err := out.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", migrate.ErrUnrecognized, err)
	}
	return &out, nil
}

// Append stages drafts in input order and returns the created operations.
// Each operation gets a fresh operation id and client id and starts with
// pending validation. Duplicates are not filtered.
func (s *Store) Append(ctx context.Context, drafts ...Draft) ([]Operation, error) {
	for i, d := range drafts {
		if !d.EntityType.IsValid() {
			return nil, fmt.Errorf("draft %d: unknown entity type %q", i, d.EntityType)
		}
		if d.OperationType != "" && !d.OperationType.IsValid() {
			return nil, fmt.Errorf("draft %d: unknown operation type %q", i, d.OperationType)
		}
	}

	s.mu.Lock()
	if s.batch.Status == types.BatchSubmitted {
		s.mu.Unlock()
		return nil, ErrSubmitted
	}
	used := make(map[string]bool, len(s.batch.Operations))
	for _, op := range s.batch.Operations {
		used[op.ClientID] = true
	}

	created := make([]Operation, 0, len(drafts))
	for _, d := range drafts {
		op := Operation{
			OperationID:      uuid.New().String(),
			OperationType:    d.OperationType,
			EntityType:       d.EntityType,
			ClientID:         s.mintClientID(d.EntityType, used),
			Data:             copyData(d.Data),
			ValidationStatus: types.ValidationPending,
		}
		if op.OperationType == "" {
			op.OperationType = types.OperationCreate
		}
		if op.OperationType == types.OperationUpdate {
			op.EntityID = d.EntityID
		}
		if _, hasParent := d.EntityType.ParentType(); hasParent && d.ParentRef != nil {
			ref := *d.ParentRef
			op.ParentRef = &ref
		}
		s.batch.Operations = append(s.batch.Operations, op)
		created = append(created, op.clone())
	}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	if len(created) > 0 {
		s.publish(ctx, event.NewOperationsStaged(s.scope(), refs(created)))
	}
	return created, err
}

func (s *Store) mintClientID(entity types.EntityType, used map[string]bool) string {
	for {
		s.batch.Seq++
		id := ClientIDFor(s.batch.Platform, entity, s.batch.Seq)
		if !used[id] {
			used[id] = true
			return id
		}
	}
}

// Remove deletes the operation with the given id. It reports whether an
// operation was removed; an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, operationID string) (bool, error) {
	s.mu.Lock()
	if s.batch.Status == types.BatchSubmitted {
		s.mu.Unlock()
		return false, ErrSubmitted
	}
	idx := -1
	for i, op := range s.batch.Operations {
		if op.OperationID == operationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	removed := s.batch.Operations[idx]
	s.batch.Operations = append(s.batch.Operations[:idx:idx], s.batch.Operations[idx+1:]...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, event.NewOperationRemoved(s.scope(), ref(removed)))
	return true, err
}

// Clear discards every operation and starts a fresh draft. The client id
// sequence and publish bindings are kept.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	discarded := len(s.batch.Operations)
	fresh := New(s.batch.Platform, s.batch.AdvertiserID)
	fresh.CreatedAt = s.now()
	fresh.Seq = s.batch.Seq
	fresh.Published = s.batch.Published
	s.batch = fresh
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, event.NewBatchCleared(s.scope(), event.BatchClearedPayload{Discarded: discarded}))
	return err
}

// MarkSubmitted moves the batch from draft to submitted and records the
// client id to platform id bindings returned by the publish service.
func (s *Store) MarkSubmitted(ctx context.Context, bindings map[string]string) error {
	s.mu.Lock()
	if s.batch.Status == types.BatchSubmitted {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	at := s.now()
	s.batch.Status = types.BatchSubmitted
	s.batch.SubmittedAt = &at
	for clientID, platformID := range bindings {
		s.batch.Published.Bind(clientID, platformID)
	}
	n := len(s.batch.Operations)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, event.NewBatchSubmitted(s.scope(), event.BatchSubmittedPayload{
		Operations: n,
		Bindings:   bindings,
	}))
	return err
}

// SetOptions replaces the submission options of a draft batch.
func (s *Store) SetOptions(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch.Status == types.BatchSubmitted {
		return ErrSubmitted
	}
	s.batch.Options = opts
	return s.persistLocked(ctx)
}

// Save persists the current state.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked(ctx)
}

// Snapshot returns a deep copy of the batch.
func (s *Store) Snapshot() Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch.Clone()
}

// Pending returns copies of the operations of one level, in batch order.
func (s *Store) Pending(t types.EntityType) []Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := s.batch.OfType(t)
	for i := range ops {
		ops[i] = ops[i].clone()
	}
	return ops
}

// Payload builds the submission payload of the current batch.
func (s *Store) Payload() SubmissionPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch.Payload()
}

// Correlator returns a copy of the publish bindings.
func (s *Store) Correlator() Correlator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch.Published.clone()
}

// Key returns the persistence key of the store.
func (s *Store) Key() string { return s.key }

// persistLocked writes the versioned envelope. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	if s.unread {
		raw, _, err := s.load(ctx)
		switch {
		case err != nil:
			return fmt.Errorf("%w: persisted batch not read yet: %v", ErrPersist, err)
		case raw != nil:
			s.logger.WithField("key", s.key).Warn("persisted batch was never loaded, not overwriting it")
			return fmt.Errorf("%w: persisted batch was never loaded; restart to restore it", ErrPersist)
		}
		s.unread = false
	}
	data, err := migrate.Wrap(s.batch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.persister.Save(ctx, s.key, data); err != nil {
		s.logger.WithError(err).WithField("key", s.key).Error("saving batch")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) scope() event.Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return event.Scope{Platform: s.batch.Platform, AdvertiserID: s.batch.AdvertiserID}
}

func (s *Store) publish(ctx context.Context, evt event.DomainEvent) {
	s.publisher.Publish(ctx, evt)
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func ref(op Operation) event.OperationRef {
	return event.OperationRef{OperationID: op.OperationID, ClientID: op.ClientID, EntityType: op.EntityType}
}

func refs(ops []Operation) []event.OperationRef {
	out := make([]event.OperationRef, len(ops))
	for i, op := range ops {
		out[i] = ref(op)
	}
	return out
}
