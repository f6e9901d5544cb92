package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/auth"
	"github.com/erazemk/custody/internal/db"
	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/revoke"
	"github.com/erazemk/custody/internal/store"
)

const testJWTSecret = "test-secret-0123456789"

func setupTestServer(t *testing.T, requireToken bool) (*httptest.Server, store.Backend) {
	t.Helper()
	backend := store.NewSQLite(db.NewTestDB(t))
	return setupWithBackend(t, backend, requireToken), backend
}

func setupWithBackend(t *testing.T, backend store.Backend, requireToken bool) *httptest.Server {
	t.Helper()

	creds, err := auth.NewCredentials("admin", "admin", "123")
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	router := NewRouter(Options{
		Store:        backend,
		Credentials:  creds,
		Revoker:      revoke.NewStore(backend),
		JWTSecret:    testJWTSecret,
		TokenTTL:     time.Hour,
		RequireToken: requireToken,
		BodyLimit:    1 << 20,
		Log:          zap.NewNop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, server *httptest.Server, role, id, password string) string {
	t.Helper()
	resp := doJSON(t, "POST", server.URL+"/api/auth/login", "",
		map[string]string{"role": role, "id": id, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s/%s: status %d", role, id, resp.StatusCode)
	}
	var out loginResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Token == "" {
		t.Fatal("empty token from login")
	}
	return out.Token
}

func sampleSync() map[string]any {
	return map[string]any{
		"departments": []model.Department{{ID: "1", Name: "Maintenance"}},
		"workers": []model.Worker{
			{ID: "w1", Name: "Ahmed", DepartmentID: "1", Status: model.WorkerActive},
			{ID: "w2", Name: "Sara", DepartmentID: "1", Status: model.WorkerActive, Password: "pw"},
		},
		"items": []model.Item{
			{SerialNumber: "1001", Status: model.StatusAssigned, WorkerID: "w1", DeliveryDate: "2024-01-02"},
			{SerialNumber: "1002", Status: model.StatusAvailable},
		},
		"logs": []model.Log{
			{ID: "a", SerialNumber: "1001", WorkerID: "w1", Status: model.StatusAssigned,
				Timestamp: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
			{ID: "b", SerialNumber: "1001", WorkerID: "w1", Status: model.StatusAssigned,
				Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		},
	}
}

func TestDataEmptyStore(t *testing.T) {
	server, _ := setupTestServer(t, false)

	resp := doJSON(t, "GET", server.URL+"/api/data", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	want := `{"departments":[],"workers":[],"items":[],"logs":[]}`
	if strings.TrimSpace(string(body)) != want {
		t.Errorf("got %s, want %s", body, want)
	}
}

func TestSyncThenFetch(t *testing.T) {
	server, _ := setupTestServer(t, false)

	resp := doJSON(t, "POST", server.URL+"/api/sync", "", sampleSync())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d", resp.StatusCode)
	}
	var ok map[string]bool
	json.NewDecoder(resp.Body).Decode(&ok)
	if !ok["success"] {
		t.Error("expected success: true")
	}

	resp = doJSON(t, "GET", server.URL+"/api/data", "", nil)
	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(snap.Departments) != 1 || len(snap.Workers) != 2 || len(snap.Items) != 2 || len(snap.Logs) != 2 {
		t.Fatalf("unexpected snapshot sizes: %+v", snap)
	}
	if snap.Logs[0].ID != "b" {
		t.Errorf("expected newest log first, got %s", snap.Logs[0].ID)
	}
	if snap.Items[0].DeliveryDate != "2024-01-02" {
		t.Errorf("item fields not preserved: %+v", snap.Items[0])
	}
}

func TestSyncRejectsBadBodies(t *testing.T) {
	server, backend := setupTestServer(t, false)

	if resp := doJSON(t, "POST", server.URL+"/api/sync", "", sampleSync()); resp.StatusCode != http.StatusOK {
		t.Fatalf("seed sync: %d", resp.StatusCode)
	}

	missingLogs := sampleSync()
	delete(missingLogs, "logs")

	badStatus := sampleSync()
	badStatus["items"] = []map[string]string{{"serialNumber": "1", "status": "removed"}}

	dupSerial := sampleSync()
	dupSerial["items"] = []model.Item{
		{SerialNumber: "1", Status: model.StatusAvailable},
		{SerialNumber: "1", Status: model.StatusAvailable},
	}

	tests := []struct {
		name string
		body any
	}{
		{"malformed", "{not json"},
		{"missing collection", missingLogs},
		{"unknown status", badStatus},
		{"duplicate serial", dupSerial},
	}

	for _, tt := range tests {
		resp := doJSON(t, "POST", server.URL+"/api/sync", "", tt.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, resp.StatusCode)
		}
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		if e["error"] == "" {
			t.Errorf("%s: expected error message", tt.name)
		}
	}

	snap, err := backend.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(snap.Items) != 2 {
		t.Errorf("rejected syncs must not change state, got %d items", len(snap.Items))
	}
}

func TestSyncStoresWorkerAndLogStatusesAsGiven(t *testing.T) {
	server, backend := setupTestServer(t, false)

	body := sampleSync()
	body["workers"] = []map[string]string{{"id": "w1", "name": "Ahmed", "status": "suspended"}}
	body["logs"] = []map[string]string{{
		"id": "x", "serialNumber": "1001", "workerId": "system",
		"status": "archived", "timestamp": "2024-01-03T08:00:00Z",
	}}

	resp := doJSON(t, "POST", server.URL+"/api/sync", "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	snap, err := backend.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(snap.Workers) != 1 || snap.Workers[0].Status != "suspended" {
		t.Errorf("worker status not stored as given: %+v", snap.Workers)
	}
	if len(snap.Logs) != 1 || snap.Logs[0].Status != "archived" {
		t.Errorf("log status not stored as given: %+v", snap.Logs)
	}
}

func TestSyncBodyTooLarge(t *testing.T) {
	server, _ := setupTestServer(t, false)

	big := `{"departments":[{"id":"1","name":"` + strings.Repeat("x", (1<<20)+4096) + `"}],"workers":[],"items":[],"logs":[]}`
	resp := doJSON(t, "POST", server.URL+"/api/sync", "", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", resp.StatusCode)
	}
}

// failingBackend simulates an unreachable store.
type failingBackend struct {
	store.Backend
}

func (failingBackend) FetchAll(context.Context) (*model.Snapshot, error) {
	return nil, model.ErrStorageUnavailable
}

func (failingBackend) ReplaceAll(context.Context, *model.Snapshot) error {
	return errors.New("disk full")
}

func TestStorageFailures(t *testing.T) {
	backend := store.NewSQLite(db.NewTestDB(t))
	server := setupWithBackend(t, failingBackend{Backend: backend}, false)

	resp := doJSON(t, "GET", server.URL+"/api/data", "", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("data: expected 500, got %d", resp.StatusCode)
	}
	var e map[string]string
	json.NewDecoder(resp.Body).Decode(&e)
	if e["error"] == "" {
		t.Error("data: expected error message")
	}

	resp = doJSON(t, "POST", server.URL+"/api/sync", "", sampleSync())
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("sync: expected 500, got %d", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	server, _ := setupTestServer(t, false)
	doJSON(t, "POST", server.URL+"/api/sync", "", sampleSync())

	login(t, server, model.RoleAdmin, " Admin ", "admin")
	login(t, server, model.RoleWorker, "w1", "123")
	login(t, server, model.RoleWorker, "w2", "pw")

	tests := []struct {
		name, role, id, password string
		want                     int
	}{
		{"bad admin password", model.RoleAdmin, "admin", "wrong", http.StatusUnauthorized},
		{"default password on worker with password", model.RoleWorker, "w2", "123", http.StatusUnauthorized},
		{"unknown worker", model.RoleWorker, "w9", "123", http.StatusUnauthorized},
		{"unknown role", "manager", "admin", "admin", http.StatusBadRequest},
		{"missing password", model.RoleAdmin, "admin", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := doJSON(t, "POST", server.URL+"/api/auth/login", "",
			map[string]string{"role": tt.role, "id": tt.id, "password": tt.password})
		if resp.StatusCode != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, resp.StatusCode)
		}
	}
}

func TestWorkerLoginOmitsPassword(t *testing.T) {
	server, _ := setupTestServer(t, false)
	doJSON(t, "POST", server.URL+"/api/sync", "", sampleSync())

	resp := doJSON(t, "POST", server.URL+"/api/auth/login", "",
		map[string]string{"role": model.RoleWorker, "id": "w2", "password": "pw"})
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), `"password"`) {
		t.Errorf("login response leaks password: %s", body)
	}
	if !strings.Contains(string(body), `"name":"Sara"`) {
		t.Errorf("expected worker in response: %s", body)
	}
}

func TestRequireToken(t *testing.T) {
	server, _ := setupTestServer(t, true)

	if resp := doJSON(t, "GET", server.URL+"/api/data", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "GET", server.URL+"/api/data", "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "GET", server.URL+"/api/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health should be public, got %d", resp.StatusCode)
	}

	token := login(t, server, model.RoleAdmin, "admin", "admin")
	if resp := doJSON(t, "POST", server.URL+"/api/sync", token, sampleSync()); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := setupTestServer(t, true)
	token := login(t, server, model.RoleAdmin, "admin", "admin")

	if resp := doJSON(t, "POST", server.URL+"/api/auth/logout", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "GET", server.URL+"/api/data", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected revoked token to be rejected, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "POST", server.URL+"/api/auth/logout", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("logout without token: expected 401, got %d", resp.StatusCode)
	}
}
