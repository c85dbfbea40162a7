// Package web implements the HTTP server for cmx. It mounts the JSON API,
// streams committed marketplace events over websockets and serves the
// operator documentation.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/decred/slog"

	"carbonex.market/cmx/internal/api"
	"carbonex.market/cmx/internal/docs"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/types"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Server is the web server for the API, event stream and docs.
type Server struct {
	port       int
	templates  *template.Template
	logger     *logger.Logger
	apiService *api.Service
	docService *docs.Service
	hub        *Hub
	httpServer *http.Server
}

// NewServer creates a new web server. docService may be nil when no
// documentation directory is configured.
func NewServer(port int, apiService *api.Service, docService *docs.Service, hub *Hub, logger *logger.Logger) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if hub == nil {
		hub = NewHub()
	}

	s := &Server{
		port:       port,
		templates:  templates,
		logger:     logger,
		apiService: apiService,
		docService: docService,
		hub:        hub,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Hub returns the event hub subscribers are served from.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes (delegated to apiService)
	mux.HandleFunc("/api/tx", s.apiService.HandleSubmit)
	mux.HandleFunc("/api/balance", s.apiService.HandleBalance)
	mux.HandleFunc("/api/proceeds", s.apiService.HandleProceeds)
	mux.HandleFunc("/api/government", s.apiService.HandleGovernment)
	mux.HandleFunc("/api/proposal", s.apiService.HandleProposal)
	mux.HandleFunc("/api/auction", s.apiService.HandleAuction)
	mux.HandleFunc("/api/sale", s.apiService.HandleSale)
	mux.HandleFunc("/api/proposals", s.apiService.HandleProposals)
	mux.HandleFunc("/api/auctions", s.apiService.HandleAuctions)
	mux.HandleFunc("/api/sales", s.apiService.HandleSales)
	mux.HandleFunc("/api/health", s.apiService.HandleHealth)
	mux.HandleFunc("/api/version", s.apiService.HandleVersion)
	mux.HandleFunc("/api/logs", s.apiService.HandleLogs)

	// WebSocket routes
	mux.HandleFunc("/ws/events", s.hub.ServeWS)

	// Docs
	mux.HandleFunc("/docs", s.handleDocsView)
	mux.HandleFunc("/docs/", s.handleDocsView)

	return mux
}

// Start runs the web server in the background. The returned channel
// receives the error that stopped it.
func (s *Server) Start() <-chan error {
	log.Infof("Starting API server on http://localhost:%d", s.port)
	if s.logger != nil {
		s.logger.Info(fmt.Sprintf("API server listening on port %d", s.port))
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
		close(errCh)
	}()

	return errCh
}

// Shutdown disconnects event subscribers and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDocsView(w http.ResponseWriter, r *http.Request) {
	if s.docService == nil {
		http.NotFound(w, r)
		return
	}

	docName := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/docs"), "/")
	docList, err := s.docService.ListDocs()
	if err != nil {
		log.Warnf("Failed to list docs: %v", err)
	}

	data := TemplateData{
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
		DocList:        docList,
		CurrentDoc:     docName,
	}
	if docName != "" {
		page, err := s.docService.GetDoc(r.Context(), docName)
		switch {
		case errors.Is(err, docs.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			log.Errorf("Failed to load doc %s: %v", docName, err)
			http.Error(w, "Failed to render document", http.StatusInternalServerError)
			return
		}
		data.DocTitle = page.Title
		data.DocContent = template.HTML(page.HTML)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "docs-view.html", data); err != nil {
		log.Errorf("Error executing docs-view template: %s", err)
		http.Error(w, "Failed to render view", http.StatusInternalServerError)
		return
	}

	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// setCacheHeaders sets cache-busting headers so edited docs show up
// immediately.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
