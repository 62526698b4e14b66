// Package api exposes the engine over HTTP for remote DM tools.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
	"go.uber.org/zap"
)

const maxDocumentBytes = 8 << 20

// Server serves one engine.
type Server struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// New returns a Server. A nil logger is replaced by a no-op one.
func New(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{eng: eng, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/state", s.getState)
	r.Post("/turns", s.startTurn)
	r.Post("/skip", s.skip)
	r.Post("/interaction/commit", s.commit)
	r.Post("/interaction/conflict", s.resolveConflict)
	r.Put("/sects/{sect}/stats", s.editStat)
	r.Get("/save", s.save)
	r.Post("/load", s.load)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type stateResponse struct {
	State     models.GameState    `json:"state"`
	Phase     engine.Phase        `json:"phase"`
	Busy      bool                `json:"busy"`
	Pending   *engine.Interaction `json:"pending"`
	Finishers []models.SectID     `json:"finishers"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	st := s.eng.State()
	resp := stateResponse{
		State:     st,
		Phase:     s.eng.Phase(),
		Busy:      s.eng.Busy(),
		Finishers: st.Finishers(),
	}
	if in, ok := s.eng.Pending(); ok {
		resp.Pending = &in
	}
	if resp.Finishers == nil {
		resp.Finishers = []models.SectID{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type turnRequest struct {
	Magnitude looseFloat `json:"magnitude"`
}

type turnResponse struct {
	Skipped     bool                `json:"skipped"`
	Sect        models.SectID       `json:"sect"`
	Interaction *engine.Interaction `json:"interaction,omitempty"`
}

func (s *Server) startTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.eng.StartTurn(r.Context(), float64(req.Magnitude))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Skipped: res.Skipped, Sect: res.Sect, Interaction: res.Interaction})
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	id, err := s.eng.Skip()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.SectID{"sect": id})
}

type commitRequest struct {
	ID           uuid.UUID           `json:"id"`
	Adjudication adjudicationRequest `json:"adjudication"`
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := s.eng.Commit(req.ID, req.Adjudication.adjudication())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"committed": ok})
}

type conflictRequest struct {
	ID      uuid.UUID     `json:"id"`
	Winner  models.SectID `json:"winner"`
	Outcome string        `json:"outcome"`
	Retreat *looseInt     `json:"retreat"`
	LogText string        `json:"logText"`
}

func (s *Server) resolveConflict(w http.ResponseWriter, r *http.Request) {
	var req conflictRequest
	if !decode(w, r, &req) {
		return
	}
	outcome, err := engine.ParseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, err)
		return
	}
	d := engine.ConflictDecision{Winner: req.Winner, Outcome: outcome, Retreat: engine.DefaultRetreat, LogText: req.LogText}
	if req.Retreat != nil {
		d.Retreat = int(*req.Retreat)
	}
	next, err := s.eng.ResolveConflict(r.Context(), req.ID, d)
	if err != nil {
		s.fail(w, err)
		return
	}
	if next == nil {
		writeJSON(w, http.StatusOK, map[string]any{"resolved": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": true, "interaction": next})
}

type statRequest struct {
	Stat  models.StatKind `json:"stat"`
	Value looseInt        `json:"value"`
}

func (s *Server) editStat(w http.ResponseWriter, r *http.Request) {
	sect, err := models.ParseSect(chi.URLParam(r, "sect"))
	if err != nil {
		s.fail(w, err)
		return
	}
	var req statRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.EditStat(sect, req.Stat, int(req.Value)); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.State().Sects[sect])
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	doc, err := s.eng.Save()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="sects-save.json"`)
	w.Write(doc)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := s.eng.Load(doc); err != nil {
		s.fail(w, err)
		return
	}
	s.getState(w, r)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrInteractionPending),
		errors.Is(err, engine.ErrConflictPending):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidDecision),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrUnknownSect),
		errors.Is(err, models.ErrUnknownStat):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
