package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/activity"
	"github.com/matthewbaird/adbatch/internal/batch"
)

// ActivityHandler serves the event history of the current batch, or of one
// operation when a clientId is given.
//
// GET /v1/batch/activity?clientId=&eventType=&since=&until=&limit=&cursor=
type ActivityHandler struct {
	store  activity.Store
	batch  *batch.Store
	logger logrus.FieldLogger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store, b *batch.Store, logger logrus.FieldLogger) *ActivityHandler {
	return &ActivityHandler{store: store, batch: b, logger: logger}
}

func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "since must be RFC 3339")
			return
		}
		opts.Since = &t
	}
	if u := q.Get("until"); u != "" {
		t, err := time.Parse(time.RFC3339, u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "until must be RFC 3339")
			return
		}
		opts.Until = &t
	}
	if et := q.Get("eventType"); et != "" {
		opts.EventTypes = strings.Split(et, ",")
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be a positive integer")
			return
		}
		opts.Limit = min(n, 500)
	}
	opts.Cursor = q.Get("cursor")

	snap := h.batch.Snapshot()
	var (
		page activity.Page
		err  error
	)
	if clientID := q.Get("clientId"); clientID != "" {
		page, err = h.store.QueryByOperation(r.Context(), snap.Platform, snap.AdvertiserID, clientID, opts)
	} else {
		page, err = h.store.QueryByBatch(r.Context(), snap.Platform, snap.AdvertiserID, opts)
	}
	if err != nil {
		h.logger.WithError(err).Error("activity query failed")
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "activity query failed")
		return
	}
	if page.Entries == nil {
		page.Entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, page)
}
