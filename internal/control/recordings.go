package control

import (
	"net/http"
	"time"

	"github.com/cortexvms/vms-core/internal/store"
)

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
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

	recs, err := s.app.Store().ListRecordings(r.Context(), store.RecordingFilter{
		CameraID: cameraID,
		From:     from,
		To:       to,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
