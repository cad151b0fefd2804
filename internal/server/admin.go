package server

import "net/http"

func (s *Server) handleAdminModelLoad(w http.ResponseWriter, r *http.Request) {
	alreadyLoaded, err := s.manager.EnsureLoaded(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if alreadyLoaded {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_loaded"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

func (s *Server) handleAdminModelUnload(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Unload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unloaded"})
}

// testRequest is the POST /api/v1/admin/model/test/ body. All fields are
// optional; defaults exercise the active model with a fixed phrase.
type testRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_language"`
	TargetLang string `json:"target_language"`
}

func (s *Server) handleAdminModelTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.TestTranslate(r.Context(), req.Text, req.SourceLang, req.TargetLang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": res,
	})
}

func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      nowUTC(),
		"system":         s.monitor.Snapshot(r.Context()),
		"uptime_seconds": s.monitor.Uptime().Seconds(),
		"model":          s.modelInfo(),
		"queue":          s.queueInfo(),
		"shutdown_phase": s.coord.Phase(),
	})
}

func (s *Server) handleAdminStatistics(w http.ResponseWriter, r *http.Request) {
	summary := s.window.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"statistics": map[string]any{
			"total_requests":         summary.TotalRequests,
			"success_requests":       summary.SuccessRequests,
			"failed_requests":        summary.FailedRequests,
			"success_rate":           summary.SuccessRate,
			"avg_processing_time_ms": summary.AvgProcessingMS,
			"hourly_breakdown":       s.window.HourlyBreakdown(),
		},
	})
}
