package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/globeid"
	"github.com/roach88/knotter/internal/scene"
)

// maxBodyBytes bounds insert payloads.
const maxBodyBytes = 64 << 10

type messageResponse struct {
	Message string `json:"message"`
}

type insertResponse struct {
	Message       string `json:"message"`
	GlobeID       string `json:"globe_id"`
	TransactionID string `json:"transaction_id"`
}

type pageResponse struct {
	BallTransactions []scene.Transaction `json:"ball_transactions"`
}

type newGlobeIDResponse struct {
	NewGlobeID string `json:"new_globe_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Everything is working fine"})
}

func (s *Server) handleNewGlobeID(w http.ResponseWriter, r *http.Request) {
	id, err := s.globes.Allocate(r.Context())
	if err != nil {
		writeEngineError(w, r, s.logger, fmt.Errorf("allocate globe id: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, newGlobeIDResponse{NewGlobeID: id})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeBall(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.metrics.events.WithLabelValues("insert", "rejected").Inc()
		writeBadRequest(w, r, engine.CodeSerialization, err.Error())
		return
	}

	globe := r.PathValue("globeId")
	id, err := s.events.Insert(r.Context(), globe, ev)
	s.metrics.observeEvent("insert", err)
	if err != nil {
		writeEngineError(w, r, s.logger, err)
		return
	}

	normalized, _ := globeid.Normalize(globe)
	writeJSON(w, http.StatusOK, insertResponse{
		Message:       "Successfully inserted.",
		GlobeID:       normalized,
		TransactionID: id,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	globe := r.PathValue("globeId")
	uuid := r.PathValue("uuid")

	id, err := s.events.Delete(r.Context(), globe, uuid)
	s.metrics.observeEvent("delete", err)
	if err != nil {
		writeEngineError(w, r, s.logger, err)
		return
	}

	normalized, _ := globeid.Normalize(globe)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Successfully deleted: Globe ID: %s, Object_uuid: %s, New Transaction ID: %s", normalized, uuid, id)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	txs, err := s.events.Page(r.Context(), r.PathValue("globeId"), r.PathValue("cursor"))
	if err != nil {
		writeEngineError(w, r, s.logger, err)
		return
	}
	if txs == nil {
		txs = []scene.Transaction{}
	}
	writeJSON(w, http.StatusOK, pageResponse{BallTransactions: txs})
}

func decodeBall(body io.Reader) (scene.BallEvent, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return scene.BallEvent{}, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return scene.BallEvent{}, fmt.Errorf("read body: %w", err)
	}
	return scene.Decode(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
