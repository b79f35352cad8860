// Package web implements the HTTP server for prm. It routes the JSON API,
// streams payment notifications over SSE and websocket, and serves the
// rendered documentation.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"payrecorder.mini/prm/internal/api"
	"payrecorder.mini/prm/internal/docs"
	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/types"
)

// PageData holds the data passed to the status page.
type PageData struct {
	CurrentVersion string
	BuildTime      string
	Recent         []events.Event
	DocList        []string
}

// Server is the web server for the API and event streams.
type Server struct {
	port       int
	templates  *template.Template
	logger     *logger.Logger
	broker     *events.Broker
	apiService *api.Service
	docService *docs.Service
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(port int, apiService *api.Service, broker *events.Broker, docService *docs.Service, logger *logger.Logger) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		port:       port,
		templates:  templates,
		logger:     logger,
		broker:     broker,
		apiService: apiService,
		docService: docService,
	}
	s.logger.Infof("PRM server initialized")
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/", s.handlePageLoad)

	router.HandlerFunc(http.MethodGet, "/api/health", s.apiService.HandleHealth)
	router.HandlerFunc(http.MethodGet, "/api/version", s.apiService.HandleVersion)
	router.HandlerFunc(http.MethodGet, "/api/logs", s.apiService.HandleLogs)
	router.HandlerFunc(http.MethodPost, "/api/tx", s.apiService.HandleSubmitTx)
	router.HandlerFunc(http.MethodPost, "/api/tx/check", s.apiService.HandleCheckTx)
	router.HandlerFunc(http.MethodGet, "/api/history", s.apiService.HandleHistory)
	router.HandlerFunc(http.MethodPost, "/api/history/me", s.apiService.HandleMyHistory)
	router.HandlerFunc(http.MethodGet, "/api/events/recent", s.apiService.HandleRecentEvents)
	router.HandlerFunc(http.MethodGet, "/api/events/stream", s.handleEventsStream)
	router.HandlerFunc(http.MethodPost, "/api/backup", s.apiService.HandleBackup)
	router.HandlerFunc(http.MethodGet, "/api/backups", s.apiService.HandleBackupsList)
	router.HandlerFunc(http.MethodGet, "/api/backup/download", s.apiService.HandleBackupDownload)

	router.HandlerFunc(http.MethodGet, "/ws/events", s.broker.ServeWS)

	if s.docService != nil {
		router.Handler(http.MethodGet, "/docs/*name", s.docService)
	}
	return router
}

// Start runs the web server until Shutdown is called.
func (s *Server) Start() <-chan error {
	log.Printf("Web: Starting API server on http://localhost:%d", s.port)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	errCh := make(chan error, 1)

	go func() {
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := PageData{
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
		Recent:         s.broker.Recent(20),
	}
	if s.docService != nil {
		data.DocList, _ = s.docService.ListDocs()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.setCacheHeaders(w)
	if err := s.templates.ExecuteTemplate(w, "status", data); err != nil {
		log.Printf("Error executing status template: %s", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// formatSSEEvent frames one notification as a server-sent event.
func formatSSEEvent(ev events.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent: payment\ndata: %s\n\n", ev.ID, payload)), nil
}

// handleEventsStream pushes PaymentRecorded notifications as SSE.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.broker.Subscribe(16)
	defer cancel()

	s.logger.Infof("SSE client connected for payment events")
	defer s.logger.Infof("SSE client disconnected")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := formatSSEEvent(ev)
			if err != nil {
				continue
			}
			w.Write(data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
