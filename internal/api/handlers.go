package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atmoslabs/atmos-core/internal/gateway"
	"github.com/atmoslabs/atmos-core/internal/registry"
)

// handleHealth reports process liveness and basic component state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessionID, stage := s.scheduler.Current()
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"session_id": sessionID,
		"stage":      stage,
		"clients":    clients,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

// handleEvent accepts one event envelope over HTTP and routes it
// through the same dispatch path as WebSocket events.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var env gateway.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeBadRequest(w, "invalid event envelope")
		return
	}

	if err := s.gateway.Dispatch(r.Context(), env); err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidEvent), errors.Is(err, gateway.ErrUnknownEventType):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "event dispatch failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"accepted": env.Type})
}

// handleGetSession returns the live session and its stage.
func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	sessionID, stage := s.scheduler.Current()
	if sessionID == "" {
		writeNotFound(w, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"stage":      stage,
		"label":      stage.Label(),
	})
}

// handleRestartSession abandons the live session and starts a fresh
// timeline, for operator recovery.
func (s *Server) handleRestartSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.scheduler.StartNewSession("operator_restart")
	if err != nil {
		writeInternalError(w, "restart failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

// handleActiveUsers lists the users currently participating.
func (s *Server) handleActiveUsers(w http.ResponseWriter, _ *http.Request) {
	users := s.registry.ActiveUsers(s.activeWindow)
	if users == nil {
		users = []*registry.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleListSnapshots lists the last-applied environment per target.
func (s *Server) handleListSnapshots(w http.ResponseWriter, _ *http.Request) {
	snaps := s.registry.ListSnapshots()
	if snaps == nil {
		snaps = []*registry.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": snaps})
}

// handleGetSnapshot returns the last-applied environment for one
// target, for displays reconnecting after a gap.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")

	snap, err := s.registry.GetSnapshot(target)
	if err != nil {
		if errors.Is(err, registry.ErrSnapshotNotFound) {
			writeNotFound(w, "no snapshot for target "+target)
			return
		}
		writeInternalError(w, "snapshot lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListDevices lists display controller health records.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.ListDevices()
	if devices == nil {
		devices = []*registry.DeviceHealth{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// handleStats returns registry counters for monitoring.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}
