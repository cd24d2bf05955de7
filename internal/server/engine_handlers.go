package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MeKo-Tech/qrlens/internal/engines"
)

// EngineRequest is the body of engine create and edit calls.
type EngineRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SearchResponse lists search links for one image URL.
type SearchResponse struct {
	ImageURL string         `json:"image_url"`
	Links    []engines.Link `json:"links"`
}

// TemplateInfo describes one predefined engine.
type TemplateInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) listEnginesHandler(w http.ResponseWriter, _ *http.Request) {
	list, err := s.engines.List()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) getEngineHandler(w http.ResponseWriter, r *http.Request) {
	e, err := s.engines.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) addEngineHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEngineRequest(w, r)
	if !ok {
		return
	}
	e, err := s.engines.Add(req.Name, req.URL)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) editEngineHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEngineRequest(w, r)
	if !ok {
		return
	}
	e, err := s.engines.Edit(mux.Vars(r)["id"], req.Name, req.URL)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEngineHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.engines.Delete(mux.Vars(r)["id"]); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleEngineHandler(w http.ResponseWriter, r *http.Request) {
	e, err := s.engines.Toggle(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) listTemplatesHandler(w http.ResponseWriter, _ *http.Request) {
	keys := engines.TemplateKeys()
	out := make([]TemplateInfo, 0, len(keys))
	for _, k := range keys {
		t := engines.Templates[k]
		out = append(out, TemplateInfo{Key: k, Name: t.Name, URL: t.URL})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) addTemplateHandler(w http.ResponseWriter, r *http.Request) {
	e, err := s.engines.AddTemplate(mux.Vars(r)["name"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) resetEnginesHandler(w http.ResponseWriter, _ *http.Request) {
	list, err := s.engines.Reset()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// searchHandler builds search links for ?url=, limited to ?engine= when set.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	imageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if imageURL == "" {
		s.writeErrorResponse(w, "Missing url parameter", "invalid_request", http.StatusBadRequest)
		return
	}

	resp := SearchResponse{ImageURL: imageURL, Links: []engines.Link{}}
	if name := r.URL.Query().Get("engine"); name != "" {
		e, err := s.engines.FindByName(name)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		resp.Links = append(resp.Links, engines.Link{Engine: e.Name, URL: engines.SearchURL(e, imageURL)})
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	list, err := s.engines.Enabled()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	resp.Links = append(resp.Links, engines.SearchLinks(list, imageURL)...)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readEngineRequest(w http.ResponseWriter, r *http.Request) (EngineRequest, bool) {
	var req EngineRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// writeEngineError maps registry errors to status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engines.ErrNotFound), errors.Is(err, engines.ErrUnknownTemplate):
		s.writeErrorResponse(w, err.Error(), "not_found", http.StatusNotFound)
	case errors.Is(err, engines.ErrDuplicate):
		s.writeErrorResponse(w, err.Error(), "duplicate", http.StatusConflict)
	case errors.Is(err, engines.ErrInvalid):
		s.writeErrorResponse(w, err.Error(), "invalid_request", http.StatusBadRequest)
	default:
		s.writeErrorResponse(w, err.Error(), "internal_error", http.StatusInternalServerError)
	}
}
