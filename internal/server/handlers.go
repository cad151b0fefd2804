package server

import (
	"net/http"
	"time"

	"github.com/lexigate/lexigate/internal/queue"
	"github.com/lexigate/lexigate/internal/translate"
)

// translateRequest is the POST /api/v1/translate/ body.
type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_language"`
	TargetLang string `json:"target_language"`
	ModelID    string `json:"model_id"`
	Quality    string `json:"quality"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.svc.Translate(r.Context(), translate.Request{
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		ModelID:    req.ModelID,
		Quality:    req.Quality,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if res.Status == translate.StatusPending {
		code = http.StatusAccepted
	}
	writeJSON(w, code, res)
}

// statusResponse is the queue view of one request.
type statusResponse struct {
	RequestID            string  `json:"request_id"`
	Status               string  `json:"status"`
	Position             int     `json:"queue_position,omitempty"`
	EstimatedWaitSeconds float64 `json:"estimated_wait_seconds,omitempty"`
}

func (s *Server) handleTranslateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.svc.Status(id)
	if !ok {
		// Completed requests leave the queue immediately, so an unknown id
		// is indistinguishable from a finished one.
		writeJSON(w, http.StatusNotFound, statusResponse{RequestID: id, Status: "not_found"})
		return
	}
	resp := statusResponse{RequestID: snap.ID, Status: string(snap.Status)}
	if snap.Status == queue.StatusQueued {
		resp.Position = snap.Position
		resp.EstimatedWaitSeconds = float64(snap.Position) * 3
	}
	writeJSON(w, http.StatusOK, resp)
}

// languageEntry is one row of the languages listing.
type languageEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameEN string `json:"name_en"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := s.registry.List()
	out := make([]languageEntry, 0, len(langs))
	for _, l := range langs {
		out = append(out, languageEntry{Code: l.Code, Name: l.Name, NameEN: l.NameEN})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"languages": out,
		"defaults": map[string]string{
			"source_language": s.cfg.Languages.Defaults.SourceLanguage,
			"target_language": s.cfg.Languages.Defaults.TargetLanguage,
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"model":          s.modelInfo(),
		"queue":          s.queueInfo(),
		"shutdown_phase": s.coord.Phase(),
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.window.Snapshot())
}

func (s *Server) modelInfo() map[string]any {
	provider, id := s.manager.Active()
	info := map[string]any{
		"active_model_id": id,
		"loaded":          false,
		"switching":       s.manager.Switching(),
	}
	if provider != nil {
		info["loaded"] = provider.Loaded()
		info["execution_mode"] = provider.Mode()
	}
	return info
}

func (s *Server) queueInfo() map[string]any {
	active, waiting := s.queue.Counts()
	return map[string]any{
		"active":         active,
		"waiting":        waiting,
		"max_concurrent": s.cfg.App.Queue.MaxConcurrent,
		"max_queue_size": s.cfg.App.Queue.MaxQueueSize,
	}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
