package detection

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store := newTestStore(t)
	cfg := DefaultConfig()
	pl := NewPipelineWithInspectors(cfg, store,
		&stubDomainInspector{set: healthyDomainSet()},
		&stubContentInspector{set: healthyContentSet()})
	return NewHandlers(pl, store)
}

func TestCheckHandler(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/check",
		strings.NewReader(`{"url":"https://www.example.com/login"}`))
	w := httptest.NewRecorder()
	h.Check(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res ClassificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Label != LabelBenign && res.Label != LabelMalicious {
		t.Errorf("label = %q", res.Label)
	}
	if res.Vector != nil {
		t.Error("vector present without include_vector")
	}
}

func TestCheckHandlerIncludeVector(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/check",
		strings.NewReader(`{"url":"https://www.example.com/","include_vector":true}`))
	w := httptest.NewRecorder()
	h.Check(w, req)

	var res ClassificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(res.Vector) != 79 {
		t.Errorf("vector length = %d, want 79", len(res.Vector))
	}
}

func TestCheckHandlerInvalidInput(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/check",
		strings.NewReader(`{"url":"not a url"}`))
	w := httptest.NewRecorder()
	h.Check(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var res errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.ErrorType != "InvalidInput" {
		t.Errorf("error_type = %q, want InvalidInput", res.ErrorType)
	}
}

func TestCheckHandlerBadJSON(t *testing.T) {
	h := newTestHandlers(t)

	for _, body := range []string{`{not json`, `{}`, `{"url":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.Check(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestBatchHandler(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/batch",
		strings.NewReader(`{"urls":["https://www.example.com/a","bogus url"]}`))
	w := httptest.NewRecorder()
	h.Batch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var items []BatchItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("batch returned %d items, want 2", len(items))
	}
	if items[0].Result == nil {
		t.Errorf("item 0: expected result, got %+v", items[0])
	}
	if items[1].ErrorType != "InvalidInput" {
		t.Errorf("item 1: error_type = %q, want InvalidInput", items[1].ErrorType)
	}
}

func TestBatchHandlerEmptyList(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/batch", strings.NewReader(`{"urls":[]}`))
	w := httptest.NewRecorder()
	h.Batch(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandlers(t)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["ready"] != true {
		t.Errorf("ready = %v, want true", body["ready"])
	}
	if body["features"] != float64(79) {
		t.Errorf("features = %v, want 79", body["features"])
	}
}

func TestHealthHandlerBadBundle(t *testing.T) {
	store := NewModelStore("/nonexistent/bundle.json")
	pl := NewPipelineWithInspectors(DefaultConfig(), store,
		&stubDomainInspector{}, &stubContentInspector{})
	h := NewHandlers(pl, store)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
