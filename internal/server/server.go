// Package server runs the development servers: the app server (static
// files, coverage report, error overlay, build status API) and the
// reload server hosting one websocket hub per reload channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olivejs/ginger/internal/build"
	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/livereload"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scheduler"
	"github.com/olivejs/ginger/internal/version"
)

// Routes on the app server.
const (
	RouteHealth      = "/health"
	RouteMetrics     = "/metrics"
	RouteErrors      = "/__ginger/errors"
	RouteBuildStatus = "/api/build/status"
	RouteReport      = "/coverage/"
)

const shutdownTimeout = 5 * time.Second

// TaskStatus exposes the latest status of every task.
type TaskStatus interface {
	Snapshot() map[string]scheduler.Result
}

// Config wires the server to the pipeline.
type Config struct {
	Options      *config.Options
	Collector    *gerrors.ErrorCollector
	BuildMetrics *build.BuildMetrics
	Tasks        TaskStatus
	Metrics      http.Handler
	Browser      *livereload.Hub
	Report       *livereload.Hub
	// ReportDir holds the coverage report served under RouteReport.
	ReportDir string
	// Open launches the system browser once the app server listens.
	Open   bool
	Logger logging.Logger
}

// Server runs the app and reload listeners.
type Server struct {
	cfg    Config
	logger logging.Logger

	serverMutex  sync.Mutex
	servers      []*http.Server
	shutdownOnce sync.Once
}

// New creates a server. Nil collaborators are replaced with empty ones.
func New(cfg Config) *Server {
	if cfg.Options == nil {
		cfg.Options = config.Default()
	}
	if cfg.Collector == nil {
		cfg.Collector = gerrors.NewErrorCollector()
	}
	if cfg.BuildMetrics == nil {
		cfg.BuildMetrics = build.NewBuildMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Browser == nil {
		cfg.Browser = livereload.NewHub("browser", livereload.WithLogger(cfg.Logger))
	}
	if cfg.Report == nil {
		cfg.Report = livereload.NewHub("report", livereload.WithLogger(cfg.Logger))
	}
	return &Server{cfg: cfg, logger: cfg.Logger.WithComponent("server")}
}

// Handler returns the app server handler.
func (s *Server) Handler() http.Handler {
	opts := s.cfg.Options

	mux := http.NewServeMux()
	mux.HandleFunc(RouteHealth, s.handleHealth)
	mux.HandleFunc(RouteErrors, s.handleErrors)
	mux.HandleFunc(RouteBuildStatus, s.handleBuildStatus)
	if s.cfg.Metrics != nil {
		mux.Handle(RouteMetrics, s.cfg.Metrics)
	}
	if s.cfg.ReportDir != "" {
		mux.Handle(RouteReport, &staticHandler{
			mounts:  []mount{{prefix: RouteReport, dir: s.cfg.ReportDir}},
			snippet: livereload.Snippet(opts.Ports.BS, s.cfg.Report.Channel()),
		})
	}
	mux.Handle("/", &staticHandler{
		mounts: []mount{
			{prefix: "/" + filepath.ToSlash(filepath.Clean(opts.Paths.Vendor)) + "/", dir: opts.VendorDir()},
			{prefix: "/", dir: opts.ServeDir()},
			{prefix: "/", dir: opts.SrcDir()},
			// View URLs are relative to src/app, as in the template cache.
			{prefix: "/", dir: filepath.Join(opts.SrcDir(), "app")},
		},
		snippet: livereload.Snippet(opts.Ports.BS, s.cfg.Browser.Channel()),
	})
	return s.addMiddleware(mux)
}

// ReloadHandler returns the handler for the reload port: one websocket
// endpoint per channel.
func (s *Server) ReloadHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(livereload.Endpoint(s.cfg.Browser.Channel()), s.cfg.Browser)
	mux.Handle(livereload.Endpoint(s.cfg.Report.Channel()), s.cfg.Report)
	return mux
}

// Start listens on the app and reload ports and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ports := s.cfg.Options.Ports
	listeners := []struct {
		name    string
		port    int
		handler http.Handler
	}{
		{"app", ports.App, s.Handler()},
		{"reload", ports.BS, s.ReloadHandler()},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.cfg.Browser.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.cfg.Report.Run(gctx)
		return nil
	})

	for _, l := range listeners {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
		if err != nil {
			_ = s.Shutdown(context.Background())
			return gerrors.NewNetworkError(gerrors.ErrCodeListenFailed, fmt.Sprintf("cannot listen for %s server", l.name), err).
				WithContext("port", l.port)
		}
		srv := &http.Server{Handler: l.handler, ReadHeaderTimeout: 10 * time.Second}
		s.serverMutex.Lock()
		s.servers = append(s.servers, srv)
		s.serverMutex.Unlock()

		s.logger.Info(ctx, "Serving", "server", l.name, "url", fmt.Sprintf("http://localhost:%d", l.port))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", l.name, err)
			}
			return nil
		})
	}

	if s.cfg.Open {
		go s.openBrowser(ctx, fmt.Sprintf("http://localhost:%d/", ports.App))
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully stops every listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down servers")

		s.serverMutex.Lock()
		servers := s.servers
		s.serverMutex.Unlock()

		for _, srv := range servers {
			if err := srv.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		s.logger.Warn(ctx, nil, "Cannot open a browser on this platform", "os", runtime.GOOS)
		return
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
	}
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     version.GetShortVersion(),
		"environment": s.cfg.Options.Environment,
		"clients": map[string]int{
			s.cfg.Browser.Channel(): s.cfg.Browser.Clients(),
			s.cfg.Report.Channel():  s.cfg.Report.Clients(),
		},
	}
	s.writeJSON(w, r, health)
}

// handleBuildStatus returns task states and production build metrics.
func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	diags := s.cfg.Collector.GetErrors()
	status := "healthy"
	if len(diags) > 0 {
		status = "error"
	}

	var tasks map[string]scheduler.Result
	if s.cfg.Tasks != nil {
		tasks = s.cfg.Tasks.Snapshot()
	}

	response := map[string]interface{}{
		"status":       status,
		"tasks":        tasks,
		"build":        s.cfg.BuildMetrics.GetSnapshot(),
		"success_rate": s.cfg.BuildMetrics.GetSuccessRate(),
		"errors":       len(diags),
		"timestamp":    time.Now().Unix(),
	}
	s.writeJSON(w, r, response)
}

// handleErrors renders the error overlay, or the raw diagnostics when
// JSON is asked for.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	diags := s.cfg.Collector.GetErrors()
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, r, map[string]interface{}{
			"errors": diags,
			"count":  len(diags),
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := overlay(diags, s.cfg.Options.Ports.BS, s.cfg.Browser.Channel()).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to render error overlay")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}
