// Package stage runs the bulk-create flow: rows are validated, checked for
// duplicates, linked to their parents and appended to the batch as
// operations.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/dedup"
	"github.com/matthewbaird/adbatch/internal/draft"
	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/resolve"
	"github.com/matthewbaird/adbatch/internal/types"
	"github.com/matthewbaird/adbatch/internal/validate"
)

var (
	// ErrUnknownLevel is returned for a level the platform does not define.
	ErrUnknownLevel = errors.New("unknown entity level")
	// ErrInvalidRequest is returned for requests that cannot be staged at all.
	ErrInvalidRequest = errors.New("invalid stage request")
)

// Request is one bulk-create submission for a single level.
type Request struct {
	EntityType            types.EntityType
	OperationType         types.OperationType
	Rows                  []types.Row
	AcknowledgeDuplicates bool
}

// Result is the outcome of a stage or check call. When Report has errors or
// NeedsAcknowledgement is set, nothing was staged.
type Result struct {
	Operations           []batch.Operation
	Report               validate.Report
	Duplicates           []dedup.Group
	NeedsAcknowledgement bool
	// Warning carries a non-fatal persistence failure. The operations are
	// staged in memory.
	Warning string
}

// Staged reports whether the call appended operations.
func (r Result) Staged() bool { return len(r.Operations) > 0 }

// Stager wires the flow to one batch store and platform.
type Stager struct {
	store     *batch.Store
	registry  *fieldschema.Registry
	templates fieldschema.Templates
	validator *validate.Validator
	platform  string
	logger    logrus.FieldLogger
}

// Config holds the Stager collaborators. Templates may be nil.
type Config struct {
	Store     *batch.Store
	Registry  *fieldschema.Registry
	Templates fieldschema.Templates
	Validator *validate.Validator
	Platform  string
	Logger    logrus.FieldLogger
}

// New creates a Stager. A nil validator means shallow validation.
func New(cfg Config) *Stager {
	s := &Stager{
		store:     cfg.Store,
		registry:  cfg.Registry,
		templates: cfg.Templates,
		validator: cfg.Validator,
		platform:  cfg.Platform,
		logger:    cfg.Logger,
	}
	if s.validator == nil {
		s.validator = validate.New(validate.Shallow)
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// Schema returns the active schema of a level.
func (s *Stager) Schema(lvl types.EntityType) (fieldschema.Schema, error) {
	schema, ok := s.registry.Config(s.platform).Level(lvl)
	if !ok {
		return nil, fmt.Errorf("%w: %q on platform %q", ErrUnknownLevel, lvl, s.platform)
	}
	return schema, nil
}

// InitRows returns n fresh rows for a level, prefilled from the templates.
func (s *Stager) InitRows(lvl types.EntityType, n int) ([]types.Row, error) {
	schema, err := s.Schema(lvl)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}
	defaults := s.templates.Defaults(s.platform, lvl)
	var rows []types.Row
	for i := 0; i < n; i++ {
		rows = draft.AddRow(rows, schema, defaults)
	}
	return rows, nil
}

// Check runs the validation and duplicate gates without staging.
func (s *Stager) Check(req Request) (Result, error) {
	schema, err := s.Schema(req.EntityType)
	if err != nil {
		return Result{}, err
	}
	if err := checkRowIDs(req.Rows); err != nil {
		return Result{}, err
	}
	return Result{
		Report:     s.validator.ValidateBatchRows(req.Rows, schema),
		Duplicates: dedup.FindDuplicates(req.Rows),
	}, nil
}

// Stage runs the full flow. Validation failures and unacknowledged
// duplicates are returned in the Result, not as errors.
func (s *Stager) Stage(ctx context.Context, req Request) (Result, error) {
	schema, err := s.Schema(req.EntityType)
	if err != nil {
		return Result{}, err
	}
	if req.OperationType == "" {
		req.OperationType = types.OperationCreate
	}
	if !req.OperationType.IsValid() {
		return Result{}, fmt.Errorf("%w: operation type %q", ErrInvalidRequest, req.OperationType)
	}
	if len(req.Rows) == 0 {
		return Result{}, fmt.Errorf("%w: no rows", ErrInvalidRequest)
	}
	if err := checkRowIDs(req.Rows); err != nil {
		return Result{}, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"level":     req.EntityType,
		"operation": req.OperationType,
		"rows":      len(req.Rows),
	})

	report := s.validator.ValidateBatchRows(req.Rows, schema)
	if report.HasErrors() {
		log.WithField("failures", len(report.Failures())).Debug("stage blocked by validation")
		return Result{Report: report}, nil
	}

	dups := dedup.FindDuplicates(req.Rows)
	if len(dups) > 0 && !req.AcknowledgeDuplicates {
		log.WithField("groups", len(dups)).Debug("stage waiting for duplicate acknowledgement")
		return Result{Report: report, Duplicates: dups, NeedsAcknowledgement: true}, nil
	}

	drafts, err := s.drafts(req)
	if err != nil {
		return Result{}, err
	}

	ops, err := s.store.Append(ctx, drafts...)
	res := Result{Operations: ops, Report: report, Duplicates: dups}
	if err != nil {
		if !errors.Is(err, batch.ErrPersist) {
			return Result{}, err
		}
		log.WithError(err).Warn("operations staged but not persisted")
		res.Warning = err.Error()
	}
	log.WithField("staged", len(ops)).Info("operations staged")
	return res, nil
}

// checkRowIDs requires every row to carry its own id. Reports and duplicate
// groups are keyed by row id, so a missing or shared id would merge rows.
func checkRowIDs(rows []types.Row) error {
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return fmt.Errorf("%w: row %d has no id", ErrInvalidRequest, i)
		}
		if seen[row.ID] {
			return fmt.Errorf("%w: row id %q is repeated", ErrInvalidRequest, row.ID)
		}
		seen[row.ID] = true
	}
	return nil
}

// drafts converts rows into store drafts, resolving parents against the
// operations already pending in the batch.
func (s *Stager) drafts(req Request) ([]batch.Draft, error) {
	var pending []batch.Operation
	if parent, ok := req.EntityType.ParentType(); ok {
		pending = s.store.Pending(parent)
	}
	published := s.store.Correlator()

	drafts := make([]batch.Draft, 0, len(req.Rows))
	for _, row := range req.Rows {
		d := batch.Draft{
			OperationType: req.OperationType,
			EntityType:    req.EntityType,
			Data:          draft.Payload(row),
		}
		if req.OperationType == types.OperationUpdate {
			if row.EntityID == "" {
				return nil, fmt.Errorf("%w: row %s: update needs an entityId", ErrInvalidRequest, row.ID)
			}
			d.EntityID = row.EntityID
		}
		if ref, ok := resolve.ResolveFor(req.EntityType, row, pending); ok {
			// A client id from an earlier, already published batch points at
			// its platform entity now.
			if _, bound := published.PlatformID(ref.Value); bound {
				ref = published.Rewrite(types.ParentRef{Kind: types.RefClientID, Value: ref.Value})
			}
			d.ParentRef = &ref
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
