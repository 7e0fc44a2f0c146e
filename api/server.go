// Package api serves completion and validation over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/codegangsta/negroni"
	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/format"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.api")

// maxBody bounds request bodies; scripts are small.
const maxBody = 4 << 20

const basePath = "/api/gce"

// EngineFunc returns the engine to answer the next request with. It lets a
// reloader swap engines between requests.
type EngineFunc func() *complete.Engine

// Static always answers with e.
func Static(e *complete.Engine) EngineFunc {
	return func() *complete.Engine { return e }
}

type Server struct {
	engine  EngineFunc
	router  *mux.Router
	handler http.Handler
}

func NewServer(engine EngineFunc) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc(basePath+"/hint", s.handleHint).Methods(http.MethodPost)
	s.router.HandleFunc(basePath+"/validate", s.handleValidate).Methods(http.MethodPost)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, errors.Errorf("%s %s: method not allowed", r.Method, r.URL.Path))
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, errors.Errorf("%s: not found", r.URL.Path))
	})

	s.handler = negroni.New(
		RequestIDs{},
		Logger{},
		Recovery{},
		negroni.Wrap(s.router),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type hintRequest struct {
	Name   string  `json:"name"`
	Script string  `json:"script"`
	Line   int     `json:"line"`
	Ch     int     `json:"ch"`
	Sticky *string `json:"sticky"`
}

type validateRequest struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req hintRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var sticky complete.Sticky
	if req.Sticky != nil {
		var err error
		if sticky, err = complete.ParseSticky(*req.Sticky); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	log.Debugf("%s: hint %s %d:%d %s", RequestID(r.Context()), req.Name, req.Line, req.Ch, sticky)

	cands, err := s.engine().Complete(r.Context(), complete.Request{
		Name:   req.Name,
		Text:   req.Script,
		Line:   req.Line,
		Ch:     req.Ch,
		Sticky: sticky,
	})
	if errors.Is(err, complete.ErrBadRequest) {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, format.Hints(cands))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	unit, err := s.engine().Analyze(req.Name, req.Script)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, format.Errors(unit.Errors))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %s", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %s", RequestID(r.Context()), err)
	} else {
		log.Debugf("%s: %s", RequestID(r.Context()), err)
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}
