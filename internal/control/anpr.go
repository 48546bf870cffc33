package control

import (
	"net/http"

	"github.com/cortexvms/vms-core/internal/store"
)

func (s *Server) listANPREvents(w http.ResponseWriter, r *http.Request) {
	cameraID := r.URL.Query().Get("cameraId")
	if cameraID != "" {
		if err := s.validator.ValidateCameraID(cameraID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid from timestamp"})
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid to timestamp"})
		return
	}

	events, err := s.app.Store().ListANPREvents(r.Context(), store.ANPREventFilter{
		CameraID: cameraID,
		From:     from,
		To:       to,
		Plate:    s.validator.SanitizeString(r.URL.Query().Get("plate")),
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type anprProcessRequest struct {
	CameraID string `json:"cameraId"`
}

// processANPR triggers a one-shot ANPR tick outside the worker's periodic
// schedule (SPEC_FULL §4.4 "one-shot" trigger mode).
func (s *Server) processANPR(w http.ResponseWriter, r *http.Request) {
	var req anprProcessRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if err := s.validator.ValidateCameraID(req.CameraID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.app.TriggerANPR(r.Context(), req.CameraID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
