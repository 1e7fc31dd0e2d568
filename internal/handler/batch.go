package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/dedup"
	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/stage"
	"github.com/matthewbaird/adbatch/internal/types"
	validatepkg "github.com/matthewbaird/adbatch/internal/validate"
)

// BatchHandler serves the schema, row and batch endpoints.
type BatchHandler struct {
	stager   *stage.Stager
	store    *batch.Store
	registry *fieldschema.Registry
	platform string
	logger   logrus.FieldLogger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(st *stage.Stager, store *batch.Store, registry *fieldschema.Registry, platform string, logger logrus.FieldLogger) *BatchHandler {
	return &BatchHandler{stager: st, store: store, registry: registry, platform: platform, logger: logger}
}

// Routes registers the handler on r. A non-nil feed is served at
// /batch/feed and a non-nil history at /batch/activity.
func (h *BatchHandler) Routes(r chi.Router, feed, history http.Handler) {
	r.Get("/schema", h.GetSchema)
	r.Get("/schema/{level}", h.GetLevelSchema)
	r.Post("/rows/init", h.InitRows)
	r.Post("/rows/check", h.CheckRows)

	r.Route("/batch", func(r chi.Router) {
		r.Get("/", h.GetBatch)
		r.Delete("/", h.ClearBatch)
		r.Get("/payload", h.GetPayload)
		r.Post("/stage", h.Stage)
		r.Post("/submitted", h.MarkSubmitted)
		r.Delete("/operations/{operationID}", h.RemoveOperation)
		if feed != nil {
			r.Get("/feed", feed.ServeHTTP)
		}
		if history != nil {
			r.Get("/activity", history.ServeHTTP)
		}
	})
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

type schemaResponse struct {
	Platform  string                                  `json:"platform"`
	Hierarchy []types.EntityType                      `json:"hierarchy"`
	Levels    map[types.EntityType]fieldschema.Schema `json:"levels"`
}

func (h *BatchHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	cfg := h.registry.Config(h.platform)
	levels := make(map[types.EntityType]fieldschema.Schema, len(cfg.PlatformHierarchy))
	for _, lvl := range cfg.PlatformHierarchy {
		levels[lvl], _ = cfg.Level(lvl)
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Platform:  h.platform,
		Hierarchy: cfg.PlatformHierarchy,
		Levels:    levels,
	})
}

func (h *BatchHandler) GetLevelSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.stager.Schema(types.EntityType(chi.URLParam(r, "level")))
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

type initRowsRequest struct {
	Level string `json:"level" validate:"required"`
	Count int    `json:"count" validate:"gte=0,lte=500"`
}

func (h *BatchHandler) InitRows(w http.ResponseWriter, r *http.Request) {
	var req initRowsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rows, err := h.stager.InitRows(types.EntityType(req.Level), req.Count)
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type rowsRequest struct {
	Level                 string      `json:"level" validate:"required"`
	OperationType         string      `json:"operationType" validate:"omitempty,oneof=create update"`
	Rows                  []types.Row `json:"rows" validate:"required,min=1,max=5000"`
	AcknowledgeDuplicates bool        `json:"acknowledgeDuplicates"`
}

func (req rowsRequest) toStage() stage.Request {
	return stage.Request{
		EntityType:            types.EntityType(req.Level),
		OperationType:         types.OperationType(req.OperationType),
		Rows:                  req.Rows,
		AcknowledgeDuplicates: req.AcknowledgeDuplicates,
	}
}

type rowsResponse struct {
	Operations           []batch.Operation   `json:"operations,omitempty"`
	Report               validatepkg.Report  `json:"report"`
	Failures             map[string][]string `json:"failures,omitempty"`
	Duplicates           []dedup.Group       `json:"duplicates,omitempty"`
	NeedsAcknowledgement bool                `json:"needsAcknowledgement"`
	Warning              string              `json:"warning,omitempty"`
}

func newRowsResponse(res stage.Result) rowsResponse {
	return rowsResponse{
		Operations:           res.Operations,
		Report:               res.Report,
		Failures:             res.Report.Failures(),
		Duplicates:           res.Duplicates,
		NeedsAcknowledgement: res.NeedsAcknowledgement,
		Warning:              res.Warning,
	}
}

// CheckRows validates rows and reports duplicates without staging them.
func (h *BatchHandler) CheckRows(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.stager.Check(req.toStage())
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newRowsResponse(res))
}

// Stage runs the bulk-create flow. Blocked requests answer 422 for
// validation failures and 409 for duplicates awaiting acknowledgement.
func (h *BatchHandler) Stage(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.stager.Stage(r.Context(), req.toStage())
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	switch {
	case res.Report.HasErrors():
		status = http.StatusUnprocessableEntity
	case res.NeedsAcknowledgement:
		status = http.StatusConflict
	}
	writeJSON(w, status, newRowsResponse(res))
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

type batchResponse struct {
	Batch   batch.Batch `json:"batch"`
	Warning string      `json:"warning,omitempty"`
}

func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, batchResponse{Batch: h.store.Snapshot()})
}

func (h *BatchHandler) GetPayload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Payload())
}

func (h *BatchHandler) RemoveOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operationID")
	removed, err := h.store.Remove(r.Context(), id)
	warning, err := persistWarning(h.logger, err)
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "operation not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Batch: h.store.Snapshot(), Warning: warning})
}

func (h *BatchHandler) ClearBatch(w http.ResponseWriter, r *http.Request) {
	warning, err := persistWarning(h.logger, h.store.Clear(r.Context()))
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Batch: h.store.Snapshot(), Warning: warning})
}

type submittedRequest struct {
	Bindings map[string]string `json:"bindings" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// MarkSubmitted is called by the publish service after a successful publish.
func (h *BatchHandler) MarkSubmitted(w http.ResponseWriter, r *http.Request) {
	var req submittedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	warning, err := persistWarning(h.logger, h.store.MarkSubmitted(r.Context(), req.Bindings))
	if err != nil {
		domainErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Batch: h.store.Snapshot(), Warning: warning})
}
