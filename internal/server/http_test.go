package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"logdesk/internal/interfaces"
	"logdesk/internal/service"
	"logdesk/internal/storage"
	"logdesk/internal/testdata"
	"logdesk/internal/types"
)

// testResponse mirrors APIResponse with the payload left raw
type testResponse struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Redirect string          `json:"redirect"`
}

// setupTestHTTPServer creates a test HTTP server over n generated records
func setupTestHTTPServer(t *testing.T, n int) (*HTTPServer, *service.DeskService, *httptest.Server) {
	t.Helper()

	store, err := storage.NewStore(testdata.Records(n))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	desk := service.NewDeskService(store, time.UTC)

	config := &types.Config{
		HTTPPort:        8080,
		MetricsEnabled:  true,
		ShutdownTimeout: 5 * time.Second,
	}
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>logdesk</html>")},
		"app.js":     &fstest.MapFile{Data: []byte("console.log('logdesk')")},
	}

	httpServer := NewHTTPServerWithStaticFiles(config, desk, staticFS)
	ts := httptest.NewServer(httpServer.Handler())

	t.Cleanup(func() {
		ts.Close()
		desk.Close()
	})
	return httpServer, desk, ts
}

func doRequest(t *testing.T, method, url string, body interface{}) (*http.Response, testResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded testResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, decoded
}

func selectRole(t *testing.T, baseURL, role string) {
	t.Helper()
	resp, _ := doRequest(t, http.MethodPost, baseURL+"/api/session/role", map[string]string{"role": role})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Selecting role %q returned %d", role, resp.StatusCode)
	}
}

func decodeTable(t *testing.T, raw json.RawMessage) interfaces.TableView {
	t.Helper()
	var view interfaces.TableView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("Failed to decode table view: %v", err)
	}
	return view
}

func TestHTTPServer_Start_Stop(t *testing.T) {
	store, err := storage.NewStore(testdata.Records(3))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	desk := service.NewDeskService(store, time.UTC)
	defer desk.Close()

	server := NewHTTPServer(&types.Config{HTTPPort: 0, ShutdownTimeout: time.Second}, desk)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start HTTP server: %v", err)
	}
	if !server.GetStats().IsRunning {
		t.Error("Server should be running")
	}
	if err := server.Start(); err == nil {
		t.Error("Starting an already running server should fail")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop HTTP server: %v", err)
	}
	if server.GetStats().IsRunning {
		t.Error("Server should not be running")
	}
	if err := server.Stop(); err != nil {
		t.Errorf("Stopping a stopped server should be a no-op, got %v", err)
	}
}

func TestHTTPServer_Health(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected a request id header")
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy status, got %q", health.Status)
	}
	if _, ok := health.Services["desk_service"]; !ok {
		t.Error("Expected desk_service stats in health response")
	}
}

func TestHTTPServer_RequestIDIsEchoed(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 1)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected echoed request id, got %q", got)
	}
}

func TestHTTPServer_RolesAndSession(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/roles", nil)
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("Roles request failed: %d %s", resp.StatusCode, body.Error)
	}
	var roles []struct {
		Role         string          `json:"role"`
		Capabilities map[string]bool `json:"capabilities"`
	}
	if err := json.Unmarshal(body.Data, &roles); err != nil {
		t.Fatalf("Failed to decode roles: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("Expected 3 roles, got %d", len(roles))
	}
	for _, r := range roles {
		if r.Role == "admin" && !r.Capabilities["update_status"] {
			t.Error("Admin should have update_status")
		}
		if r.Role == "viewer" && r.Capabilities["use_filters"] {
			t.Error("Viewer should not have use_filters")
		}
	}

	selectRole(t, ts.URL, "operator")

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/session", nil)
	var info interfaces.SessionInfo
	if err := json.Unmarshal(body.Data, &info); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	if info.Role != "operator" || !info.Capabilities["view_detail"] || info.Capabilities["update_status"] {
		t.Errorf("Unexpected operator session: %+v", info)
	}
}

func TestHTTPServer_SelectRoleValidation(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)

	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown role", map[string]string{"role": "root"}},
		{"empty role", map[string]string{"role": ""}},
		{"missing role", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/session/role", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
			if body.Success || body.Error == "" {
				t.Errorf("Expected error response, got %+v", body)
			}
		})
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/session/role", strings.NewReader("{not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed JSON, got %d", resp.StatusCode)
	}
}

func TestHTTPServer_TableRequiresRole(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}
	if body.Redirect != "/" {
		t.Errorf("Expected redirect to role selection, got %q", body.Redirect)
	}
}

func TestHTTPServer_ViewerTable(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 25)
	selectRole(t, ts.URL, "viewer")

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs?page=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body.Error)
	}
	view := decodeTable(t, body.Data)
	if view.Number != 3 || view.TotalPages != 3 || len(view.Records) != 5 {
		t.Errorf("Expected page 3 of 3 with 5 records, got page %d of %d with %d", view.Number, view.TotalPages, len(view.Records))
	}
	if view.CanFilter || view.ShowActions {
		t.Error("Viewer should not see filters or actions")
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs?text=error", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected viewer filtering to be forbidden, got %d", resp.StatusCode)
	}
	if body.Redirect != "" {
		t.Errorf("Filter denial should not redirect, got %q", body.Redirect)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs/L1", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected viewer detail to be forbidden, got %d", resp.StatusCode)
	}
	if body.Redirect != "/" {
		t.Errorf("Detail denial should redirect to role selection, got %q", body.Redirect)
	}
}

func TestHTTPServer_OperatorFilters(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 25)
	selectRole(t, ts.URL, "operator")

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs?text=ERROR", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body.Error)
	}
	view := decodeTable(t, body.Data)
	if view.TotalMatches != 7 {
		t.Errorf("Expected 7 ERROR records, got %d", view.TotalMatches)
	}
	for _, r := range view.Records {
		if r.Severity != types.SeverityError {
			t.Errorf("Unexpected record %s with severity %s", r.ID, r.Severity)
		}
	}

	// The filter persists across requests that omit it
	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs", nil)
	if view := decodeTable(t, body.Data); view.FilterText != "ERROR" || view.TotalMatches != 7 {
		t.Errorf("Expected persisted ERROR filter, got %q with %d matches", view.FilterText, view.TotalMatches)
	}

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs?text=&date=2024-01-02", nil)
	view = decodeTable(t, body.Data)
	if view.DateFilter != "2024-01-02" || view.TotalMatches != 11 {
		t.Errorf("Expected 11 records on 2024-01-02, got %d (date %q)", view.TotalMatches, view.DateFilter)
	}

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs?date=", nil)
	view = decodeTable(t, body.Data)
	if view.DateFilter != "" || view.TotalMatches != 25 {
		t.Errorf("Expected cleared date filter, got %q with %d matches", view.DateFilter, view.TotalMatches)
	}
}

func TestHTTPServer_LogsQueryValidation(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)
	selectRole(t, ts.URL, "admin")

	for _, query := range []string{"date=01/02/2024", "date=2024-13-01", "page=two", "page=1.5"} {
		t.Run(query, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs?"+query, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
			if body.Success {
				t.Error("Expected unsuccessful response")
			}
		})
	}
}

func TestHTTPServer_OutOfRangePageIsClamped(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 25)
	selectRole(t, ts.URL, "viewer")

	tests := []struct {
		query string
		want  int
	}{
		{"page=99", 3},
		{"page=0", 1},
		{"page=2", 2},
		{"page=-3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs?"+tt.query, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body.Error)
			}
			if view := decodeTable(t, body.Data); view.Number != tt.want {
				t.Errorf("Expected page %d, got %d", tt.want, view.Number)
			}
		})
	}
}

func TestHTTPServer_Detail(t *testing.T) {
	_, desk, ts := setupTestHTTPServer(t, 5)
	selectRole(t, ts.URL, "operator")

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/logs/L3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body.Error)
	}
	var record types.LogRecord
	if err := json.Unmarshal(body.Data, &record); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}
	if record.ID != "L3" {
		t.Errorf("Expected L3, got %s", record.ID)
	}
	if desk.Session().SelectedID != "L3" {
		t.Errorf("Expected L3 to be selected, got %q", desk.Session().SelectedID)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/logs/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
	if desk.Session().SelectedID != "L3" {
		t.Errorf("Unknown id should leave the selection unchanged, got %q", desk.Session().SelectedID)
	}
}

func TestHTTPServer_UpdateStatus(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)

	selectRole(t, ts.URL, "operator")
	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/logs/L2/status", map[string]bool{"resolved": true})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected operator status update to be forbidden, got %d", resp.StatusCode)
	}

	selectRole(t, ts.URL, "admin")
	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/logs/L2/status", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 without resolved, got %d", resp.StatusCode)
	}

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/logs/L2/status", map[string]bool{"resolved": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body.Error)
	}
	var record types.LogRecord
	json.Unmarshal(body.Data, &record)
	if record.ID != "L2" || !record.Resolved {
		t.Errorf("Expected L2 resolved, got %+v", record)
	}

	// The change is visible in the table without re-filtering
	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/logs?text=UNRESOLVED", nil)
	view := decodeTable(t, body.Data)
	for _, r := range view.Records {
		if r.ID == "L2" {
			t.Error("L2 should no longer match UNRESOLVED")
		}
	}

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/logs/nope/status", map[string]bool{"resolved": true})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown id, got %d", resp.StatusCode)
	}
}

func TestHTTPServer_Logout(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 5)
	selectRole(t, ts.URL, "admin")
	doRequest(t, http.MethodGet, ts.URL+"/api/logs/L1", nil)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/session/logout", nil)
	if resp.StatusCode != http.StatusOK || body.Redirect != "/" {
		t.Fatalf("Unexpected logout response: %d %+v", resp.StatusCode, body)
	}

	var info interfaces.SessionInfo
	json.Unmarshal(body.Data, &info)
	if info.Role != "" || info.SelectedID != "" {
		t.Errorf("Expected cleared session, got %+v", info)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/logs", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected table to be forbidden after logout, got %d", resp.StatusCode)
	}
}

func TestHTTPServer_StaticAndMetrics(t *testing.T) {
	_, _, ts := setupTestHTTPServer(t, 1)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Index request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Unexpected index response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(ts.URL + "/static/app.js")
	if err != nil {
		t.Fatalf("Static request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/javascript" {
		t.Errorf("Unexpected static response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(ts.URL + "/static/missing.css")
	if err != nil {
		t.Fatalf("Static request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for missing file, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected metrics status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPServer_StatusStream(t *testing.T) {
	_, desk, ts := setupTestHTTPServer(t, 5)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/logs/stream"

	// No role: the upgrade is refused
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Expected dial to fail without a role")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 response, got %v", resp)
	}

	selectRole(t, ts.URL, "admin")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for desk.GetStats().ActiveSubscribers == 0 {
		if time.Now().After(deadline) {
			t.Fatal("WebSocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	doRequest(t, http.MethodPost, ts.URL+"/api/logs/L4/status", map[string]bool{"resolved": true})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change interfaces.StatusChange
	if err := conn.ReadJSON(&change); err != nil {
		t.Fatalf("Failed to read status change: %v", err)
	}
	if change.ID != "L4" || !change.Resolved || change.Role != "admin" {
		t.Errorf("Unexpected status change: %+v", change)
	}
}

func TestHTTPServer_StopWaitsForOpenStreams(t *testing.T) {
	httpServer, desk, ts := setupTestHTTPServer(t, 5)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/logs/stream"

	// Stop shuts down the httptest server as if Start had created it
	httpServer.runningMux.Lock()
	httpServer.server = ts.Config
	httpServer.isRunning = true
	httpServer.runningMux.Unlock()

	selectRole(t, ts.URL, "viewer")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for desk.GetStats().ActiveSubscribers == 0 {
		if time.Now().After(deadline) {
			t.Fatal("WebSocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- httpServer.Stop()
	}()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return with a stream open")
	}

	// Everything the stream held is released by the time Stop returns
	if active := httpServer.GetStats().ActiveWebSockets; active != 0 {
		t.Errorf("Expected 0 active WebSockets, got %d", active)
	}
	if subs := desk.GetStats().ActiveSubscribers; subs != 0 {
		t.Errorf("Expected 0 subscribers, got %d", subs)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected a normal close frame, got %v", err)
	}

	if httpServer.trackConnection() {
		t.Error("Expected no new stream connections after Stop")
	}
}
