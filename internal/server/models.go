package server

import (
	"net/http"

	"github.com/lexigate/lexigate/internal/catalog"
	"github.com/lexigate/lexigate/internal/errcode"
)

// selectionCookie carries the model a browser session picked ahead of an
// actual switch.
const selectionCookie = "lexigate_selected_model"

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := catalog.Scan(s.cfg.Model.ModelsDir)
	writeJSON(w, http.StatusOK, map[string]any{
		"models":            models,
		"active_model_id":   s.manager.ActiveID(),
		"selected_model_id": selectedModel(r),
	})
}

// selectionRequest is the PUT /api/v1/models/selection/ body.
type selectionRequest struct {
	ModelID string `json:"model_id"`
}

func (s *Server) handleModelSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := catalog.ValidateID(req.ModelID); err != nil {
		writeError(w, r, err)
		return
	}
	if !s.manager.Exists(req.ModelID) {
		writeError(w, r, errcode.New(errcode.ModelNotFound))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     selectionCookie,
		Value:    req.ModelID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	active := s.manager.ActiveID()
	writeJSON(w, http.StatusOK, map[string]any{
		"selected_model_id": req.ModelID,
		"active_model_id":   active,
		"requires_switch":   req.ModelID != active,
	})
}

func selectedModel(r *http.Request) string {
	c, err := r.Cookie(selectionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// switchRequest is the POST /api/v1/models/switch/ body.
type switchRequest struct {
	ModelID string `json:"model_id"`
	Force   bool   `json:"force"`
}

func (s *Server) handleModelSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.manager.Switch(r.Context(), req.ModelID, req.Force); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "switched",
		"model_id": req.ModelID,
	})
}

func (s *Server) handleLoadProgress(w http.ResponseWriter, r *http.Request) {
	provider, _ := s.manager.Active()
	progress := s.manager.Progress()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"progress":     progress.Percent,
		"model_status": progress.State,
		"loaded":       provider != nil && provider.Loaded(),
	})
}
