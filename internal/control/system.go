package control

import "net/http"

func (s *Server) systemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Store().SystemStats(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
