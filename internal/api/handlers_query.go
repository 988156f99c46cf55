package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/fingest/internal/app"
	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/llm"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/retrieval"
	"github.com/dgallion1/fingest/internal/store"
)

const maxQueryDocuments = 26

type queryRequest struct {
	Question  string   `json:"question"`
	Documents []string `json:"documents"`
}

type contextResponse struct {
	retrieval.Selection
	Labels map[string]string `json:"labels"` // label ID -> stored doc ID
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	resp, code, err := s.selectContext(r, req)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type searchResponse struct {
	Results []retrieval.Result `json:"results"`
	Labels  map[string]string  `json:"labels"`
}

// handleSearch returns the top_k chunks above the similarity threshold,
// without packing or keyword fallback.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	sess, labels, code, err := s.loadSession(r, req)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	results := sess.Selector.Search(req.Question)
	if results == nil {
		results = []retrieval.Result{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{Results: results, Labels: labels})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	resp, code, err := s.selectContext(r, req)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	ans, err := s.app.Answerer.Answer(r.Context(), req.Question, resp.Context)
	status := http.StatusOK
	body := map[string]any{
		"answer":   ans.Text,
		"accepted": ans.Accepted,
		"context":  resp,
	}
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body["error"] = err.Error()
	case err != nil:
		jsonError(w, "answer failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return req, false
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxQueryDocuments {
		jsonError(w, fmt.Sprintf("between 1 and %d documents are required", maxQueryDocuments), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// selectContext labels the requested documents A, B, ... in request order
// and packs the context for the question.
func (s *Server) selectContext(r *http.Request, req queryRequest) (contextResponse, int, error) {
	sess, labels, code, err := s.loadSession(r, req)
	if err != nil {
		return contextResponse{}, code, err
	}
	sel := sess.Selector.Select(req.Question)
	s.log.Info("context selected", "documents", len(labels), "summary", sel.Describe())
	return contextResponse{Selection: sel, Labels: labels}, 0, nil
}

func (s *Server) loadSession(r *http.Request, req queryRequest) (*retrieval.Session, map[string]string, int, error) {
	labels := make(map[string]string, len(req.Documents))
	trees := make([]*doctree.DocTree, 0, len(req.Documents))
	for i, docID := range req.Documents {
		doc, err := s.store().Get(r.Context(), docID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, http.StatusNotFound, fmt.Errorf("document not found: %s", docID)
		}
		if err != nil {
			return nil, nil, http.StatusInternalServerError, err
		}
		id := string(rune('A' + i))
		tree, err := app.ParseReport(&parser.TextParser{}, strings.NewReader(doc.Report), id, doc.Filename)
		if err != nil {
			return nil, nil, http.StatusInternalServerError, err
		}
		labels[id] = docID
		trees = append(trees, tree)
	}
	return s.app.NewSession(trees), labels, 0, nil
}
