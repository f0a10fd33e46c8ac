package server

import (
	"net/http"
	"slices"
)

type modelMetadata struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string          `json:"object"`
	Data   []modelMetadata `json:"data"`
}

// supportedModels lists the configured models, default first.
func (s *Server) supportedModels() []modelMetadata {
	ids := []string{s.cfg.DefaultModel}
	for _, id := range s.cfg.Models {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	models := make([]modelMetadata, 0, len(ids))
	for _, id := range ids {
		models = append(models, modelMetadata{
			ID:      id,
			Object:  "model",
			OwnedBy: s.cfg.Backend,
		})
	}
	return models
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, modelsResponse{
		Object: "list",
		Data:   s.supportedModels(),
	})
}
