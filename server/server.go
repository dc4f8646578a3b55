// Package server exposes the transform, check, compose, and push operations
// over HTTP. Every endpoint accepts the same parameters its CLI counterpart
// takes, as a JSON body, and returns the operation's output as the response
// instead of writing a file.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
	"github.com/tabular-tools/tik/integration"
	"github.com/tabular-tools/tik/transform"
)

// Server routes the REST surface. Construct with NewServer and mount via
// Handler.
type Server struct {
	router *mux.Router
}

// NewServer builds the router with all endpoints registered under /1.0/.
func NewServer() *Server {
	s := &Server{router: mux.NewRouter()}
	r := s.router.PathPrefix("/1.0").Subrouter()
	r.HandleFunc("/Status", s.handleStatus).Methods("GET")
	r.HandleFunc("/CSV/Check", s.handleCheck(',')).Methods("POST")
	r.HandleFunc("/TSV/Check", s.handleCheck('\t')).Methods("POST")
	r.HandleFunc("/CSV/Transform", s.handleTransform(transform.NewCSVMain)).Methods("POST")
	r.HandleFunc("/TSV/Transform", s.handleTransform(transform.NewTSVMain)).Methods("POST")
	r.HandleFunc("/JSONArray/Transform", s.handleTransform(transform.NewJSONArrayMain)).Methods("POST")
	r.HandleFunc("/JSONArray/TransformRecords", s.handleTransformRecords).Methods("POST")
	r.HandleFunc("/Comprehension/Intersect", s.handleIntersect).Methods("POST")
	r.HandleFunc("/Comprehension/ToArray", s.handleToArray).Methods("POST")
	r.HandleFunc("/Comprehension/ToCSV", s.handleToCSV).Methods("POST")
	r.HandleFunc("/Comprehension/Push", s.handlePush).Methods("POST")
	return s
}

// Handler returns the root handler with request logging attached.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(os.Stderr, s.router)
}

// TransformRequest is the body of every transform-family endpoint.
type TransformRequest struct {
	Path         string       `json:"Path"`
	Incoming     string       `json:"Incoming,omitempty"`
	MappingFile  string       `json:"MappingFile,omitempty"`
	Entity       string       `json:"Entity,omitempty"`
	GUIDName     string       `json:"GUIDName,omitempty"`
	GUIDTemplate string       `json:"GUIDTemplate,omitempty"`
	Columns      string       `json:"Columns,omitempty"`
	Extended     bool         `json:"Extended,omitempty"`
	Records      []tik.Record `json:"Records,omitempty"`
}

// ComposeRequest is the body of the comprehension composition endpoints.
type ComposeRequest struct {
	Path      string `json:"Path"`
	Primary   string `json:"Primary,omitempty"`
	Secondary string `json:"Secondary,omitempty"`
	Entity    string `json:"Entity,omitempty"`
}

// PushRequest is the body of the push endpoint.
type PushRequest struct {
	Path           string `json:"Path"`
	URL            string `json:"URL"`
	Entity         string `json:"Entity,omitempty"`
	GUIDPrefix     string `json:"GUIDPrefix,omitempty"`
	RetryThreshold int    `json:"RetryThreshold,omitempty"`
	SkipDeletes    bool   `json:"SkipDeletes,omitempty"`
}

// CheckRequest is the body of the check endpoints.
type CheckRequest struct {
	Path    string `json:"Path"`
	Records bool   `json:"Records,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"Status": "running"})
}

func (s *Server) handleCheck(delimiter rune) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckRequest
		if !decodeBody(w, r, &req) || !requireFile(w, req.Path) {
			return
		}
		m := transform.NewCSVCheckMain()
		if delimiter == '\t' {
			m = transform.NewTSVCheckMain()
		}
		m.Path = req.Path
		m.Records = req.Records
		stats, err := m.Check()
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleTransform(newMain func() *transform.Main) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransformRequest
		if !decodeBody(w, r, &req) || !requireFile(w, req.Path) {
			return
		}
		m := newMain()
		s.applyTransformRequest(m, &req)
		outcome, err := m.Transform()
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondOutcome(w, outcome, req.Extended)
	}
}

// handleTransformRecords transforms records carried inline in the request
// body rather than read from a file.
func (s *Server) handleTransformRecords(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Records) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no records in request"))
		return
	}
	outcome := tik.NewMappingOutcome()
	outcome.DatasetLabel = req.Entity
	user := &tik.MappingConfig{
		Entity:       req.Entity,
		GUIDName:     req.GUIDName,
		GUIDTemplate: req.GUIDTemplate,
	}
	if mappings, err := transform.ParseColumnMappings(req.Columns); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	} else {
		user.Mappings = mappings
	}
	outcome.UserConfiguration = user
	if req.Incoming != "" {
		prior, err := tik.LoadComprehension(req.Incoming)
		if err != nil {
			respondError(w, http.StatusNotFound, err)
			return
		}
		outcome.ExistingComprehension = prior
	}
	if err := tik.NewTransformer().Run(tik.NewSliceSource(req.Records), outcome); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondOutcome(w, outcome, req.Extended)
}

func (s *Server) applyTransformRequest(m *transform.Main, req *TransformRequest) {
	m.Path = req.Path
	m.Incoming = req.Incoming
	m.MappingFile = req.MappingFile
	m.Entity = req.Entity
	m.GUIDName = req.GUIDName
	m.GUIDTemplate = req.GUIDTemplate
	m.Columns = req.Columns
	m.Extended = req.Extended
}

func (s *Server) handleIntersect(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if !decodeBody(w, r, &req) || !requireFile(w, req.Primary) || !requireFile(w, req.Secondary) {
		return
	}
	primary, err := tik.LoadComprehension(req.Primary)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	secondary, err := tik.LoadComprehension(req.Secondary)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	out, err := tik.Intersect(primary, secondary, req.Entity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleToArray(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if !decodeBody(w, r, &req) || !requireFile(w, req.Path) {
		return
	}
	comp, err := tik.LoadComprehension(req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entity, err := comp.InferEntity(req.Entity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	records, err := comp.ToArray(entity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleToCSV(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if !decodeBody(w, r, &req) || !requireFile(w, req.Path) {
		return
	}
	comp, err := tik.LoadComprehension(req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entity, err := comp.InferEntity(req.Entity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	records, err := comp.ToArray(entity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := tik.WriteRecordsCSV(w, records); err != nil {
		log.Printf("writing CSV response: %v", err)
	}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if !decodeBody(w, r, &req) || !requireFile(w, req.Path) {
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, errors.New("no URL in request"))
		return
	}
	m := integration.NewMain()
	m.Path = req.Path
	m.URL = req.URL
	m.Entity = req.Entity
	if req.GUIDPrefix != "" {
		m.GUIDPrefix = req.GUIDPrefix
	}
	if req.RetryThreshold > 0 {
		m.RetryThreshold = req.RetryThreshold
	}
	m.SkipDeletes = req.SkipDeletes
	if err := m.Run(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"Status": "pushed"})
}

// respondOutcome writes the two transform response shapes: the bare
// comprehension, or the full outcome when extended output is requested.
func respondOutcome(w http.ResponseWriter, outcome *tik.MappingOutcome, extended bool) {
	if extended {
		respondJSON(w, http.StatusOK, outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome.Comprehension)
}

// decodeBody reads a JSON request body, responding 400 on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		respondError(w, http.StatusBadRequest, errors.Wrap(err, "parsing request body"))
		return false
	}
	return true
}

// requireFile responds 400 when path is missing from the request and 404
// when it does not exist on disk.
func requireFile(w http.ResponseWriter, path string) bool {
	if path == "" {
		respondError(w, http.StatusBadRequest, errors.New("no file path in request"))
		return false
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, errors.Wrapf(err, "locating %s", path))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]interface{}{
		"Error": err.Error(),
		"code":  status,
	})
}

// Main contains the configuration for the REST server.
type Main struct {
	Bind string `help:"Address to listen on."`
}

// NewMain gets a Main with the default configuration.
func NewMain() *Main {
	return &Main{Bind: ":8087"}
}

// Run serves until the listener fails.
func (m *Main) Run() error {
	s := NewServer()
	log.Printf("listening on %s", m.Bind)
	return errors.Wrap(http.ListenAndServe(m.Bind, s.Handler()), "serving")
}
