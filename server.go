package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
)

const (
	maxPostBody = 1 << 20
	maxSaveBody = 512 << 10

	testResponse = `{"code":202,"body":{}}`
)

// Option is a function that configures the server
type Option func(*Server)

// WithName sets the MCP server name
func WithName(name string) Option {
	return func(s *Server) {
		s.config.Name = name
	}
}

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.config.Addr = addr
	}
}

// WithBaseURL sets the public base URL used by the MCP SSE endpoint
func WithBaseURL(baseURL string) Option {
	return func(s *Server) {
		s.config.BaseURL = baseURL
	}
}

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// config holds server configuration
type config struct {
	Name    string
	Version string
	Addr    string
	BaseURL string
}

// Server serves static files, the /api endpoints and the MCP surface.
type Server struct {
	config   config
	logger   *slog.Logger
	settings *Settings
	gateway  *Gateway
	router   *Router

	tools     []server.ServerTool
	resources []server.ServerResource
	mcpServer *server.MCPServer
	handler   http.Handler

	stopping   atomic.Bool
	cancel     context.CancelFunc
	listener   net.Listener
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a server for settings. Remote fetches go through gw.
func NewServer(settings *Settings, gw *Gateway, opts ...Option) (*Server, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if gw == nil {
		gw = NewGateway(settings.Resources, WithUserAgent(settings.UserAgent))
	}

	s := &Server{
		config: config{
			Name:    settings.ServerName,
			Version: settings.ServerVersion,
			Addr:    fmt.Sprintf(":%d", settings.Port),
		},
		logger:   slog.Default(),
		settings: settings,
		gateway:  gw,
		router:   NewRouter(settings.APIs, gw),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.config.BaseURL == "" {
		s.config.BaseURL = fmt.Sprintf("http://localhost:%d", settings.Port)
	}

	s.setupMCP()
	s.handler = s.routes()

	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the MCP server mounted at /sse and /message.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) routes() http.Handler {
	sseServer := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(s.config.BaseURL),
		server.WithUseFullURLForMessageEndpoint(true),
	)

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.unavailableWhenStopping)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/sse", sseServer.SSEHandler())
	r.Handle("/message", sseServer.MessageHandler())

	r.Route("/api", func(r chi.Router) {
		r.Head("/shutdown", s.handleShutdown)
		r.Head("/*", notFoundEmpty)
		r.Get("/{command}", s.handleCommand)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIHeaders)
			r.Post("/test", s.handleTest)
			r.Post("/post", s.handleEcho)
			r.Post("/save", s.handleSave)
			r.Post("/{command}", s.handlePostCommand)
		})
	})

	r.Get("/*", s.handleFile)
	r.Head("/*", notFoundEmpty)

	return r
}

// requestLogger logs every request with its status and size.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) unavailableWhenStopping(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.stopping.Load() {
			writeText(w, http.StatusServiceUnavailable, "Service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIHeaders enforces api_required_headers on every POST route.
func (s *Server) requireAPIHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasHeaders(s.settings.APIRequiredHeaders, r.Header) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Shutdown requested", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusAccepted)
	s.Shutdown()
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	api, ok := s.router.Resolve(chi.URLParam(r, "command"), http.MethodGet)
	if !ok {
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}
	if !api.HasRequiredHeaders(r.Header) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.serveAPI(w, r, api, nil)
}

func (s *Server) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	api, ok := s.router.Resolve(chi.URLParam(r, "command"), http.MethodPost)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !api.HasRequiredHeaders(r.Header) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, status := readBody(w, r, maxPostBody)
	if status != 0 {
		writeBodyError(w, status)
		return
	}
	s.serveAPI(w, r, api, body)
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request, api *ServerAPI, body []byte) {
	if code, contentType, data, ok := api.ResolveAsData(); ok {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(code)
		_, _ = w.Write(data)
		return
	}

	result, err := s.router.Run(r.Context(), api, r.URL.Query(), body)
	if err != nil {
		if errors.Is(err, ErrInternal) {
			s.logger.Error("Command resource is missing", "api", api.Name, "command", api.Command, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.logger.Warn("Command failed", "api", api.Name, "command", api.Command, "error", err)
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}

	w.Header().Set("Content-Type", result.Model.MIME())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, testResponse)
}

// handleEcho answers with the data field of a ProxyData body.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, status := readBody(w, r, maxPostBody)
	if status != 0 {
		writeBodyError(w, status)
		return
	}

	pd, err := ParseProxyData(body)
	if err != nil {
		s.logger.Debug("Invalid proxy data", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, pd.Data)
}

// handleSave writes the body to the file named by the raw query string.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	name, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil || name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if !s.settings.Paths.CanWrite(name) {
		notFoundEmpty(w, r)
		return
	}

	body, status := readBody(w, r, maxSaveBody)
	if status != 0 {
		writeBodyError(w, status)
		return
	}

	target, err := s.settings.Paths.Resolve(name)
	if err != nil {
		notFoundEmpty(w, r)
		return
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		s.logger.Error("Failed to save file", "path", target, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.logger.Info("File saved", "path", target, "bytes", len(body))
	w.WriteHeader(http.StatusCreated)
}

// readBody reads at most limit bytes. A non-zero status reports failure.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, int) {
	if r.ContentLength > limit {
		return nil, http.StatusRequestEntityTooLarge
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge
		}
		return nil, http.StatusBadRequest
	}
	return body, 0
}

func writeBodyError(w http.ResponseWriter, status int) {
	if status == http.StatusRequestEntityTooLarge {
		writeText(w, status, "Content Too Large")
		return
	}
	w.WriteHeader(status)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func notFoundEmpty(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

// Start listens and serves in the background until ctx is done or a
// shutdown is requested. Call Wait or Close afterwards.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Gateway listening", "addr", ln.Addr().String(), "root", s.settings.ServerRoot, "mcp", s.config.BaseURL+"/sse")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	go func() {
		defer s.wg.Done()

		<-ctx.Done()
		s.stopping.Store(true)
		s.logger.Info("Shutting down HTTP server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
		} else {
			s.logger.Info("HTTP server shutdown successfully")
		}

		s.gateway.Wait()
	}()

	return nil
}

// Addr is the bound listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and triggers a graceful stop.
func (s *Server) Shutdown() {
	s.stopping.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
}

// Stopping reports whether a shutdown was requested.
func (s *Server) Stopping() bool {
	return s.stopping.Load()
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close stops the server and waits for it to finish.
func (s *Server) Close() {
	s.Shutdown()
	s.wg.Wait()
}
