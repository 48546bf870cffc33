package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeError maps a vmscore.Error's Kind to an HTTP status, per SPEC_FULL
// §7 ("the control surface maps Kind to an HTTP status in one place").
// Errors that are not a *vmscore.Error (a programmer mistake reaching the
// handler layer) are treated as 500s.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var verr *vmscore.Error
	if !errors.As(err, &verr) {
		logger.WithError(err).Error("unclassified error reached the control surface")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch verr.Kind {
	case vmscore.KindNotFound:
		status = http.StatusNotFound
	case vmscore.KindConflict:
		status = http.StatusConflict
	case vmscore.KindValidation:
		status = http.StatusBadRequest
	case vmscore.KindTransient:
		status = http.StatusServiceUnavailable
	case vmscore.KindCancelled:
		status = http.StatusRequestTimeout
	case vmscore.KindFatal:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("control surface request failed")
	}
	writeJSON(w, status, errorBody{Error: verr.Message})
}
