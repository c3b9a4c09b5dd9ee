package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aquafarm"
	"aquafarm/internal/service"
)

func TestReadingHandlers_Ingest(t *testing.T) {
	ing := &mockIngest{reading: aquafarm.SensorReading{ID: 5, SensorID: 1, Value: 31.2}}
	s := &service.Service{Authorization: &mockAuth{parseID: 3}, Ingest: ing}
	r := newTestRouter(s)

	// push requires auth → 401 without header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings/", bytes.NewBufferString(`{"sensor_id":1,"value":31.2}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	// with auth → 200 and stored reading in body
	w = doAuthed(r, http.MethodPost, "/api/v1/readings/", bytes.NewBufferString(`{"sensor_id":1,"value":31.2}`))
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status=%d, body=%s", w.Code, w.Body.String())
	}
	if ing.calls != 1 {
		t.Fatalf("expected one HandleReading call, got %d", ing.calls)
	}
	if ing.lastParams.SensorID != 1 || ing.lastParams.Value != 31.2 {
		t.Fatalf("unexpected params: %+v", ing.lastParams)
	}
	var resp struct {
		Status  string                 `json:"status"`
		Reading aquafarm.SensorReading `json:"reading"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != statusAccepted || resp.Reading.ID != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// missing sensor_id → 400 from binding
	w = doAuthed(r, http.MethodPost, "/api/v1/readings/", bytes.NewBufferString(`{"value":31.2}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing sensor_id, got %d", w.Code)
	}
}

func TestJobHandlers_ListAndSetActive(t *testing.T) {
	jb := &mockJobs{jobs: []aquafarm.Job{{ID: 2, Name: "night aeration", IsActive: true}}}
	s := &service.Service{Authorization: &mockAuth{parseID: 3}, Jobs: jb}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/jobs/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d, body=%s", w.Code, w.Body.String())
	}
	var listResp struct {
		Count int            `json:"count"`
		Jobs  []aquafarm.Job `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.Count != 1 || listResp.Jobs[0].Name != "night aeration" {
		t.Fatalf("unexpected list response: %+v", listResp)
	}

	// deactivate → 200, flag reaches the service
	w = doAuthed(r, http.MethodPatch, "/api/v1/jobs/2/active", bytes.NewBufferString(`{"active":false}`))
	if w.Code != http.StatusOK {
		t.Fatalf("set active status=%d, body=%s", w.Code, w.Body.String())
	}
	if jb.lastActiveJobID != 2 || jb.lastActive != false {
		t.Fatalf("unexpected SetActive call: id=%d active=%v", jb.lastActiveJobID, jb.lastActive)
	}

	// non-numeric id → 400
	w = doAuthed(r, http.MethodPatch, "/api/v1/jobs/abc/active", bytes.NewBufferString(`{"active":true}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}

	// missing flag → 400 from binding
	w = doAuthed(r, http.MethodPatch, "/api/v1/jobs/2/active", bytes.NewBufferString(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing flag, got %d", w.Code)
	}
}
