package control

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cortexvms/vms-core/internal/app"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// cameraView is a Camera with its Credential Vault ciphertext omitted and
// its username masked, per SPEC_FULL §6.1 ("responses must omit encrypted
// secrets and mask usernames").
type cameraView struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Location       string                `json:"location"`
	IngressURL     string                `json:"ingressUrl"`
	Username       string                `json:"username"`
	Tags           []string              `json:"tags"`
	ProtocolHLS    bool                  `json:"protocolHls"`
	ProtocolRecord bool                  `json:"protocolRecord"`
	ProtocolANPR   bool                  `json:"protocolAnpr"`
	Grid           vmscore.GridPosition  `json:"grid"`
	Recording      vmscore.RecordingPolicy `json:"recording"`
	ANPR           vmscore.ANPRPolicy    `json:"anpr"`
	Status         vmscore.CameraStatus  `json:"status"`
}

func maskUsername(u string) string {
	if len(u) <= 2 {
		return "**"
	}
	return u[:1] + "***" + u[len(u)-1:]
}

func toCameraView(c *vmscore.Camera) cameraView {
	return cameraView{
		ID:             c.ID,
		Name:           c.Name,
		Location:       c.Location,
		IngressURL:     c.IngressURL,
		Username:       maskUsername(c.Username),
		Tags:           c.Tags,
		ProtocolHLS:    c.ProtocolHLS,
		ProtocolRecord: c.ProtocolRecord,
		ProtocolANPR:   c.ProtocolANPR,
		Grid:           c.Grid,
		Recording:      c.Recording,
		ANPR:           c.ANPR,
		Status:         c.Status,
	}
}

// cameraRequest is the POST/PUT /cameras request body.
type cameraRequest struct {
	Name           string                  `json:"name"`
	Location       string                  `json:"location"`
	IngressURL     string                  `json:"ingressUrl"`
	Username       string                  `json:"username"`
	Password       string                  `json:"password"`
	Tags           []string                `json:"tags"`
	ProtocolHLS    bool                    `json:"protocolHls"`
	ProtocolRecord bool                    `json:"protocolRecord"`
	ProtocolANPR   bool                    `json:"protocolAnpr"`
	Grid           vmscore.GridPosition    `json:"grid"`
	Recording      vmscore.RecordingPolicy `json:"recording"`
	ANPR           vmscore.ANPRPolicy      `json:"anpr"`
}

func (req cameraRequest) toInput() app.CameraInput {
	return app.CameraInput{
		Name:           req.Name,
		Location:       req.Location,
		IngressURL:     req.IngressURL,
		Username:       req.Username,
		Password:       req.Password,
		Tags:           req.Tags,
		ProtocolHLS:    req.ProtocolHLS,
		ProtocolRecord: req.ProtocolRecord,
		ProtocolANPR:   req.ProtocolANPR,
		Grid:           req.Grid,
		Recording:      req.Recording,
		ANPR:           req.ANPR,
	}
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := s.app.ListCameras(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	views := make([]cameraView, 0, len(cams))
	for _, c := range cams {
		views = append(views, toCameraView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.validator.ValidateCameraID(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	cam, err := s.app.GetCamera(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCameraView(cam))
}

func (s *Server) createCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	cam, err := s.app.CreateCamera(r.Context(), req.toInput())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCameraView(cam))
}

func (s *Server) updateCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.validator.ValidateCameraID(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	cam, err := s.app.UpdateCamera(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCameraView(cam))
}

func (s *Server) deleteCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.validator.ValidateCameraID(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.app.DeleteCamera(r.Context(), id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recordingID, err := s.app.StartRecording(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recordingId": recordingID})
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.app.StopRecording(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) takeSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.app.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
