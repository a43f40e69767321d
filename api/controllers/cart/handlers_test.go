package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cartsvc "github.com/mercatolabs/cartsync/internal/cart"
	"github.com/mercatolabs/cartsync/internal/reconcile"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc, err := reconcile.NewService(cartsvc.NewMemoryStorage(), nil)
	if err != nil {
		t.Fatalf("service init failed: %v", err)
	}
	r := chi.NewRouter()
	r.Post("/api/cart/sync", Sync(svc, nil))
	r.Get("/api/cart/{cartID}", Fetch(svc, nil))
	return r
}

func TestSyncReturnsBareContract(t *testing.T) {
	router := newTestRouter(t)

	body := `{"items":[{"id":"li","productId":"p1","price":799.99,"quantity":2}],"timestamp":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync?cart_id=session-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload cartsvc.SyncPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response must be the bare sync payload: %v", err)
	}
	if payload.Timestamp != 100 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if strings.Contains(rec.Body.String(), `"data"`) {
		t.Fatalf("sync response must not be enveloped: %s", rec.Body.String())
	}
}

func TestSyncStaleSubmissionAnswersStored(t *testing.T) {
	router := newTestRouter(t)

	seed := `{"items":[{"id":"li","productId":"p1","price":10,"quantity":1}],"timestamp":200}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync?cart_id=s", strings.NewReader(seed))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	stale := `{"items":[],"timestamp":150}`
	req = httptest.NewRequest(http.MethodPost, "/api/cart/sync?cart_id=s", strings.NewReader(stale))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload cartsvc.SyncPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Timestamp != 200 || len(payload.Items) != 1 {
		t.Fatalf("stale submission must get the stored copy back, got %+v", payload)
	}
}

func TestSyncRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") {
		t.Fatalf("expected validation error envelope, got %s", rec.Body.String())
	}
}

func TestSyncRejectsNegativeTimestamp(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", strings.NewReader(`{"items":[],"timestamp":-5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSyncDefaultsCartID(t *testing.T) {
	router := newTestRouter(t)

	body := `{"items":[],"timestamp":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/cart/"+cartsvc.DefaultStorageKey, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"timestamp":10`) {
		t.Fatalf("default cart should hold the synced snapshot, got %s", rec.Body.String())
	}
}

func TestFetchIsEnveloped(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cart/whatever", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data"`) {
		t.Fatalf("fetch response should use the API envelope, got %s", rec.Body.String())
	}
}

func TestSyncWithoutServiceFails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", strings.NewReader(`{"items":[],"timestamp":0}`))
	Sync(nil, nil)(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
