package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/history"
)

func TestListPins(t *testing.T) {
	env := newTestEnv(t, nil, true)

	resp, body := env.do(t, http.MethodGet, "/api/v1/pins", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	pins := body["pins"].([]any)
	first := pins[0].(map[string]any)
	second := pins[1].(map[string]any)
	if first["pin"] != float64(11) || first["mode"] != "input" {
		t.Errorf("pins[0] = %v, want input 11", first)
	}
	if second["pin"] != float64(12) || second["mode"] != "output" {
		t.Errorf("pins[1] = %v, want output 12", second)
	}
	if first["hardware"] != false {
		t.Errorf("hardware = %v, want false in emulation", first["hardware"])
	}
}

func TestGetPin(t *testing.T) {
	env := newTestEnv(t, nil, true)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing", "/api/v1/pins/12", http.StatusOK},
		{"missing", "/api/v1/pins/13", http.StatusNotFound},
		{"not a number", "/api/v1/pins/abc", http.StatusBadRequest},
		{"zero", "/api/v1/pins/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, tt.path, "")
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestReportState(t *testing.T) {
	env := newTestEnv(t, nil, true)

	// Steps run in order against the same runtime.
	tests := []struct {
		name       string
		pin        string
		body       string
		wantStatus int
		wantEdge   string
	}{
		{"output rises", "12", `{"state":true,"mode":"output"}`, http.StatusOK, "rising"},
		{"output unchanged", "12", `{"state":true,"mode":"output"}`, http.StatusOK, "unknown"},
		{"output falls", "12", `{"state":false,"mode":"out"}`, http.StatusOK, "falling"},
		{"mode mismatch is acknowledged", "12", `{"state":true,"mode":"input"}`, http.StatusOK, "unknown"},
		{"input rises", "11", `{"state":true,"mode":"input"}`, http.StatusOK, "rising"},
		{"invalid mode", "12", `{"state":true,"mode":"sideways"}`, http.StatusBadRequest, ""},
		{"missing mode", "12", `{"state":true}`, http.StatusBadRequest, ""},
		{"body pin mismatch", "12", `{"pin":11,"state":true,"mode":"output"}`, http.StatusBadRequest, ""},
		{"invalid JSON", "12", `{`, http.StatusBadRequest, ""},
		{"unknown pin", "30", `{"state":true,"mode":"output"}`, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/v1/pins/"+tt.pin+"/state", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantEdge != "" && body["edge"] != tt.wantEdge {
				t.Errorf("edge = %v, want %q", body["edge"], tt.wantEdge)
			}
		})
	}

	pin, _ := env.rt.Lookup(11)
	if !pin.IsOn() {
		t.Error("input 11 not high after report")
	}
}

func TestReportState_NotAttached(t *testing.T) {
	env := newTestEnv(t, nil, false)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/pins/12/state", `{"state":true,"mode":"output"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestPinHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{entries: []history.Entry{
		{ID: 2, Transition: gpio.Transition{Pin: 12, Mode: gpio.Output, State: false, Edge: gpio.Falling, Source: gpio.SourceRemote, At: at.Add(time.Second)}},
		{ID: 1, Transition: gpio.Transition{Pin: 12, Mode: gpio.Output, State: true, Edge: gpio.Rising, Source: gpio.SourceLocal, At: at}},
	}}
	env := newTestEnv(t, hist, true)

	resp, body := env.do(t, http.MethodGet, "/api/v1/pins/12/history?limit=5", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if hist.lastPin != 12 || hist.lastLimit != 5 {
		t.Errorf("List(pin=%d, limit=%d), want 12, 5", hist.lastPin, hist.lastLimit)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	first := body["transitions"].([]any)[0].(map[string]any)
	if first["edge"] != "falling" || first["source"] != "remote" || first["mode"] != "output" {
		t.Errorf("transitions[0] = %v", first)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/pins/12/history?limit=zero", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", resp.StatusCode)
	}

	hist.err = errors.New("disk on fire")
	resp, _ = env.do(t, http.MethodGet, "/api/v1/pins/12/history", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("failing store status = %d, want 500", resp.StatusCode)
	}
	if hist.lastLimit != 0 {
		t.Errorf("default limit passed = %d, want 0", hist.lastLimit)
	}
}

func TestPinHistory_Disabled(t *testing.T) {
	env := newTestEnv(t, nil, true)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/pins/12/history", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
