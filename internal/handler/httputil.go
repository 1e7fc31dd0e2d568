package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/stage"
)

// maxBodyBytes bounds request bodies; a few thousand rows fit easily.
const maxBodyBytes = 8 << 20

var validate = validator.New()

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("writeJSON encode error")
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

// domainErrorToHTTP maps store and stager errors to HTTP responses.
func domainErrorToHTTP(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, stage.ErrUnknownLevel):
		writeError(w, http.StatusNotFound, "UNKNOWN_LEVEL", err.Error())
	case errors.Is(err, stage.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, batch.ErrSubmitted):
		writeError(w, http.StatusConflict, "BATCH_SUBMITTED", err.Error())
	case errors.Is(err, batch.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, "ALREADY_SUBMITTED", err.Error())
	default:
		logger.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// persistWarning turns a persistence failure into a response warning.
// Any other error is returned for the caller to map.
func persistWarning(logger logrus.FieldLogger, err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if errors.Is(err, batch.ErrPersist) {
		logger.WithError(err).Warn("batch changed but not persisted")
		return err.Error(), nil
	}
	return "", err
}
