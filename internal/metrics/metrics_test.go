package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct {
	workers        int
	next, total    uint64
	cand, workerID string
	found          bool
}

func (f fakeSource) WorkerCount() int           { return f.workers }
func (f fakeSource) Progress() (uint64, uint64) { return f.next, f.total }
func (f fakeSource) Winner() (string, string, bool) {
	return f.cand, f.workerID, f.found
}

func TestStatusEndpointReportsProgress(t *testing.T) {
	src := fakeSource{workers: 3, next: 250, total: 1000}
	h := Handler(src, time.Now().Add(-2*time.Second))

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Workers != 3 || got.NextIndex != 250 || got.Keyspace != 1000 {
		t.Errorf("got %+v, want workers=3 next=250 keyspace=1000", got)
	}
	if got.PercentRun != 25 {
		t.Errorf("PercentRun = %v, want 25", got.PercentRun)
	}
	if got.ElapsedSec <= 0 {
		t.Errorf("ElapsedSec = %v, want > 0", got.ElapsedSec)
	}
}

func TestStatusEndpointReportsWinner(t *testing.T) {
	src := fakeSource{cand: "hunter2", workerID: "w1", found: true, total: 100, next: 100}
	h := Handler(src, time.Now())

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Found || got.Candidate != "hunter2" || got.WorkerID != "w1" {
		t.Errorf("got %+v, want found candidate=hunter2 worker_id=w1", got)
	}
}

func TestStatusEndpointRejectsNonGet(t *testing.T) {
	h := Handler(fakeSource{}, time.Now())
	req := httptest.NewRequest("POST", "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 405 {
		t.Errorf("status = %d, want 405 for POST", rec.Code)
	}
}
