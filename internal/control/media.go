package control

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// hlsPlaylist serves the live playlist file for a camera, per SPEC_FULL
// §6.1. The camera id is validated as a UUID before touching the
// filesystem; there is no user-supplied filename component here (the
// playlist name is fixed), so no ValidateFilename check is needed.
func (s *Server) hlsPlaylist(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	if err := s.validator.ValidateCameraID(cameraID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	path := filepath.Join(s.app.StreamsDir(), cameraID, "live", "index.m3u8")
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// hlsSegment serves a single named segment file. segment is attacker
// controlled (it comes straight off the URL path), so it is run through
// ValidateFilename before being joined into a filesystem path — rejecting
// "..", path separators, and control characters closes the traversal
// route a raw filepath.Join(segment) would otherwise open.
func (s *Server) hlsSegment(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	segment := chi.URLParam(r, "segment")

	if err := s.validator.ValidateCameraID(cameraID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.validator.ValidateFilename(segment); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	path := filepath.Join(s.app.StreamsDir(), cameraID, "live", segment)
	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "max-age=2")
	http.ServeFile(w, r, path)
}
