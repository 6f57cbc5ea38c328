package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-gpio/internal/ackbus"
	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/wire"
)

// PinResponse describes one live pin.
type PinResponse struct {
	Pin      int    `json:"pin"`
	Mode     string `json:"mode"`
	State    bool   `json:"state"`
	Resistor string `json:"resistor,omitempty"`
	Hardware bool   `json:"hardware"`
}

func pinResponse(info gpio.PinInfo) PinResponse {
	return PinResponse{
		Pin:      info.Number,
		Mode:     info.Mode.String(),
		State:    info.State,
		Resistor: info.Resistor.String(),
		Hardware: info.IsHardware,
	}
}

// handleListPins returns every live pin ordered by number.
func (s *Server) handleListPins(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.runtime.Snapshot()
	pins := make([]PinResponse, 0, len(snapshot))
	for _, info := range snapshot {
		pins = append(pins, pinResponse(info))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pins":  pins,
		"count": len(pins),
	})
}

// handleGetPin returns one pin.
func (s *Server) handleGetPin(w http.ResponseWriter, r *http.Request) {
	pin, ok := pinParam(w, r)
	if !ok {
		return
	}
	info, ok := s.pinInfo(pin)
	if !ok {
		writeNotFound(w, "pin not found")
		return
	}
	writeJSON(w, http.StatusOK, pinResponse(info))
}

// handleReportState applies a reported level through the observer
// receive path and answers with the resulting edge.
//
// Body: {"state": true, "mode": "output", "resistor": "pu"}
func (s *Server) handleReportState(w http.ResponseWriter, r *http.Request) {
	pin, ok := pinParam(w, r)
	if !ok {
		return
	}

	var cmd wire.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	report, err := cmd.Report(pin)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if _, ok := s.runtime.Lookup(pin); !ok {
		writeNotFound(w, "pin not found")
		return
	}

	edge, err := s.report(r.Context(), report)
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewAck(cmd.ID, pin, edge, nil))
}

// handlePinHistory returns recorded transitions for a pin.
//
// Query: ?limit=N (default 50, max 500)
func (s *Server) handlePinHistory(w http.ResponseWriter, r *http.Request) {
	pin, ok := pinParam(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeUnavailable(w, "transition history is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), pin, limit)
	if err != nil {
		s.logger.Error("listing transition history", "pin", pin, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}

	out := make([]wire.Transition, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.FromTransition(e.Transition))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pin":         pin,
		"transitions": out,
		"count":       len(out),
	})
}

func (s *Server) pinInfo(pin int) (gpio.PinInfo, bool) {
	for _, info := range s.runtime.Snapshot() {
		if info.Number == pin {
			return info, true
		}
	}
	return gpio.PinInfo{}, false
}

// pinParam parses the {pin} URL parameter, writing a 400 on failure.
func pinParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	pin, err := strconv.Atoi(chi.URLParam(r, "pin"))
	if err != nil || pin < 1 {
		writeBadRequest(w, "pin must be a positive integer")
		return 0, false
	}
	return pin, true
}

// writeReportError maps receive-path failures to HTTP statuses.
func writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ackbus.ErrStale), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, ErrNoHandler), errors.Is(err, ackbus.ErrClosed):
		writeUnavailable(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
