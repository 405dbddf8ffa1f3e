package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"logdesk/internal/access"
	"logdesk/internal/interfaces"
	"logdesk/internal/metrics"
	"logdesk/internal/service"
	"logdesk/internal/types"
)

// Version is reported by the health endpoint; set at build time by main
var Version = "dev"

// HTTPServer implements an HTTP server for the web UI and REST API
type HTTPServer struct {
	config  *types.Config
	desk    interfaces.DeskService
	metrics *metrics.DeskMetrics
	server  *http.Server

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Static files (embedded)
	staticFS fs.FS

	// Server lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	runningMux sync.RWMutex

	// Stream connections register here; closing refuses new ones once Stop began
	connMux sync.Mutex
	closing bool

	// Statistics
	stats      HTTPServerStats
	statsMutex sync.RWMutex
}

// HTTPServerStats represents statistics about the HTTP server
type HTTPServerStats struct {
	RequestsHandled      int64 `json:"requests_handled"`
	RequestErrors        int64 `json:"request_errors"`
	WebSocketConnections int64 `json:"websocket_connections"`
	ActiveWebSockets     int64 `json:"active_websockets"`
	IsRunning            bool  `json:"is_running"`
}

// APIResponse represents a standard API response structure
type APIResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Services  map[string]interface{} `json:"services"`
}

// roleSelectionPath is where denied table or detail requests are sent
const roleSelectionPath = "/"

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(config *types.Config, desk interfaces.DeskService) *HTTPServer {
	ctx, cancel := context.WithCancel(context.Background())

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The API is meant for a local operator console
			return true
		},
	}

	return &HTTPServer{
		config:   config,
		desk:     desk,
		metrics:  metrics.GetDeskMetrics(),
		upgrader: upgrader,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// NewHTTPServerWithStaticFiles creates a new HTTP server instance serving the embedded web page
func NewHTTPServerWithStaticFiles(config *types.Config, desk interfaces.DeskService, staticFS fs.FS) *HTTPServer {
	server := NewHTTPServer(config, desk)
	server.staticFS = staticFS
	return server
}

// Handler builds the routed handler, wrapped in the request middleware
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return s.requestMiddleware(mux)
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.runningMux.Lock()
	defer s.runningMux.Unlock()

	if s.isRunning {
		return fmt.Errorf("HTTP server is already running")
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.isRunning = true
	s.updateStats(func(stats *HTTPServerStats) {
		stats.IsRunning = true
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		log.Info().Int("port", s.config.HTTPPort).Msg("HTTP server starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.runningMux.Lock()
	defer s.runningMux.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to signal shutdown to websocket loops
	s.cancel()

	s.connMux.Lock()
	s.closing = true
	s.connMux.Unlock()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}

	s.wg.Wait()

	s.isRunning = false
	s.updateStats(func(stats *HTTPServerStats) {
		stats.IsRunning = false
	})

	log.Info().Msg("HTTP server stopped")
	return nil
}

// GetStats returns server statistics
func (s *HTTPServer) GetStats() HTTPServerStats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}

// setupRoutes configures all HTTP routes
func (s *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// API routes
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/roles", s.handleRoles)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/session/role", s.handleSelectRole)
	mux.HandleFunc("POST /api/session/logout", s.handleLogout)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/logs/stream", s.handleLogsStream)
	mux.HandleFunc("GET /api/logs/{id}", s.handleLogDetail)
	mux.HandleFunc("POST /api/logs/{id}/status", s.handleLogStatus)

	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Static file serving
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /static/", s.handleStatic)
}

// handleHealth handles the health check endpoint
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Services: map[string]interface{}{
			"desk_service": s.desk.GetStats(),
			"http_server":  s.GetStats(),
		},
	}

	s.sendJSONResponse(w, http.StatusOK, response)
}

// handleRoles lists the selectable roles with their capabilities
func (s *HTTPServer) handleRoles(w http.ResponseWriter, r *http.Request) {
	type roleInfo struct {
		Role         access.Role                `json:"role"`
		Label        string                     `json:"label"`
		Capabilities map[access.Capability]bool `json:"capabilities"`
	}

	roles := access.Roles()
	data := make([]roleInfo, 0, len(roles))
	for _, role := range roles {
		data = append(data, roleInfo{
			Role:         role,
			Label:        role.Label(),
			Capabilities: access.Permissions(role),
		})
	}

	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// handleSession returns the current session
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: s.desk.Session()})
}

// handleSelectRole selects the operator role
func (s *HTTPServer) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	if err := s.desk.SelectRole(access.Role(req.Role)); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: s.desk.Session()})
}

// handleLogout resets the session
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.desk.Logout()
	s.sendJSONResponse(w, http.StatusOK, APIResponse{
		Success:  true,
		Data:     s.desk.Session(),
		Redirect: roleSelectionPath,
	})
}

// handleLogs handles the log table endpoint
func (s *HTTPServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	req, err := parseLogsQuery(r)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid query parameters: %v", err))
		return
	}

	view, err := s.desk.Query(req)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: view})
}

// handleLogDetail selects a record for the detail view
func (s *HTTPServer) handleLogDetail(w http.ResponseWriter, r *http.Request) {
	record, err := s.desk.Detail(r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: record})
}

// handleLogStatus updates the resolution status of a record
func (s *HTTPServer) handleLogStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	record, err := s.desk.UpdateStatus(r.PathValue("id"), *req.Resolved)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: record})
}

// sendServiceError maps desk errors onto HTTP responses
func (s *HTTPServer) sendServiceError(w http.ResponseWriter, err error) {
	var permErr *service.PermissionError
	switch {
	case errors.As(err, &permErr):
		response := APIResponse{Success: false, Error: permErr.Error()}
		if permErr.Capability == access.ViewTable || permErr.Capability == access.ViewDetail {
			response.Redirect = roleSelectionPath
		}
		s.updateStats(func(stats *HTTPServerStats) {
			stats.RequestErrors++
		})
		s.sendJSONResponse(w, http.StatusForbidden, response)
	case errors.Is(err, service.ErrNotFound):
		s.sendErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrUnknownRole):
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("desk operation failed")
		s.sendErrorResponse(w, http.StatusConflict, err.Error())
	}
}

// sendJSONResponse sends a JSON response
func (s *HTTPServer) sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("error encoding JSON response")
		s.updateStats(func(stats *HTTPServerStats) {
			stats.RequestErrors++
		})
	}
}

// sendErrorResponse sends an error response
func (s *HTTPServer) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.updateStats(func(stats *HTTPServerStats) {
		stats.RequestErrors++
	})

	s.sendJSONResponse(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// handleLogsStream streams status changes over a WebSocket
func (s *HTTPServer) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	if !access.IsPermitted(s.desk.Session().Role, access.ViewTable) {
		s.sendServiceError(w, &service.PermissionError{Role: s.desk.Session().Role, Capability: access.ViewTable})
		return
	}

	if !s.trackConnection() {
		s.sendErrorResponse(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		s.updateStats(func(stats *HTTPServerStats) {
			stats.RequestErrors++
		})
		return
	}

	s.updateStats(func(stats *HTTPServerStats) {
		stats.WebSocketConnections++
		stats.ActiveWebSockets++
	})

	s.handleWebSocketConnection(conn)
}

// trackConnection adds a stream connection to the wait group Stop waits on.
// It returns false once Stop has begun.
func (s *HTTPServer) trackConnection() bool {
	s.connMux.Lock()
	defer s.connMux.Unlock()

	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// handleWebSocketConnection manages a single WebSocket connection. It returns
// only after its reader goroutine has exited.
func (s *HTTPServer) handleWebSocketConnection(conn *websocket.Conn) {
	readerDone := make(chan struct{})
	defer func() {
		conn.Close()
		<-readerDone
		s.updateStats(func(stats *HTTPServerStats) {
			stats.ActiveWebSockets--
		})
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	subscription := s.desk.Subscribe()
	defer s.desk.Unsubscribe(subscription)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	// Reader detects client disconnection
	go func() {
		defer close(readerDone)
		defer cancel()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Msg("WebSocket read error")
				}
				return
			}
		}
	}()

	for {
		select {
		case change, ok := <-subscription:
			if !ok {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(change); err != nil {
				log.Warn().Err(err).Msg("WebSocket write error")
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("WebSocket ping error")
				return
			}

		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// updateStats safely updates the server statistics
func (s *HTTPServer) updateStats(updateFunc func(*HTTPServerStats)) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	updateFunc(&s.stats)
}

// handleIndex serves the main UI page
func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveEmbeddedFile(w, r, "index.html")
}

// handleStatic serves static files (CSS, JS, etc.)
func (s *HTTPServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/static/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(path, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	s.serveEmbeddedFile(w, r, path)
}

// serveEmbeddedFile serves a file from the static filesystem
func (s *HTTPServer) serveEmbeddedFile(w http.ResponseWriter, r *http.Request, filename string) {
	if s.staticFS == nil {
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(s.staticFS, filename)
	if err != nil {
		log.Debug().Err(err).Str("file", filename).Msg("static file not found")
		http.NotFound(w, r)
		return
	}

	if w.Header().Get("Content-Type") == "" && strings.HasSuffix(filename, ".html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
