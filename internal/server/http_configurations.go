package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/confengine/internal/idgen"
	"github.com/alfredjeanlab/confengine/internal/model"
)

// listResponse is the body of list endpoints.
type listResponse struct {
	Items  []*model.Configuration `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// handleListConfigurations handles GET /api/v1/configurations. search
// matches a substring of the key or label, active filters on the flag.
func (s *ConfigServer) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	q := listQuery{Limit: model.DefaultPageLimit}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, name+" must be an integer")
			return
		}
		*dst = n
	}
	q.Search = r.URL.Query().Get("search")
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "active must be true or false")
			return
		}
		q.Active = &active
	}
	if err := validateInput(q); err != nil {
		writeServiceError(w, r, err)
		return
	}

	configs, total, err := s.store.ListConfigurations(r.Context(), model.ConfigurationFilter{
		Active: q.Active,
		Search: q.Search,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Ensure items is never null in JSON output.
	if configs == nil {
		configs = []*model.Configuration{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: configs, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// handleCreateConfiguration handles POST /api/v1/configurations.
func (s *ConfigServer) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var in createConfigurationInput
	if err := decodeBody(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	c, err := s.createConfiguration(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGetConfiguration handles GET /api/v1/configurations/{id}. The path
// segment may also be a record key.
func (s *ConfigServer) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	c, err := s.lookupConfiguration(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleUpdateConfiguration handles PUT /api/v1/configurations/{id}.
func (s *ConfigServer) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var in updateConfigurationInput
	if err := decodeBody(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	c, err := s.updateConfiguration(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteConfiguration handles DELETE /api/v1/configurations/{id}.
func (s *ConfigServer) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteConfiguration(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleParentOptions handles GET /api/v1/configurations/parent-options and
// GET /api/v1/configurations/parent-options/by/{id}.
func (s *ConfigServer) handleParentOptions(w http.ResponseWriter, r *http.Request) {
	configs, err := s.parentOptions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if configs == nil {
		configs = []*model.Configuration{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: configs, Total: len(configs), Limit: len(configs)})
}

// handleGetEvents handles GET /api/v1/configurations/{id}/events. History
// outlives the record, so an unknown id gives an empty list.
func (s *ConfigServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idgen.IsRecordID(id) {
		writeJSON(w, http.StatusOK, map[string]any{"events": []*model.Event{}})
		return
	}
	evts, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
