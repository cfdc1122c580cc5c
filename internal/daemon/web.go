package daemon

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/dustin/go-humanize"

	"plantcam/internal/api"
	"plantcam/internal/config"
	"plantcam/internal/logging"
	"plantcam/internal/media"
	"plantcam/internal/services"
	"plantcam/internal/timelapse"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"humanBytes": func(size int64) string { return humanize.Bytes(uint64(size)) },
	"timestamp": func(at *time.Time) string {
		if at == nil {
			return "never"
		}
		return at.Format("2006-01-02 15:04:05")
	},
}).Parse(dashboardHTML))

type webServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	cfg    *config.Config

	listener net.Listener
	server   *http.Server
}

func newWebServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *webServer {
	srv := &webServer{
		bind:   strings.TrimSpace(cfg.Paths.WebBind),
		logger: logging.WithComponent(logger, "web"),
		daemon: d,
		cfg:    cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleDashboard)
	mux.HandleFunc("/live.jpg", srv.handleLiveView)
	mux.HandleFunc("/videos/", srv.handleVideo)
	mux.HandleFunc("/download/", srv.handleDownload)
	mux.HandleFunc("/capture-now", srv.handleCaptureNow)
	mux.HandleFunc("/convert-now", srv.handleConvertNow)
	mux.HandleFunc("/merge-now", srv.handleMergeNow)
	mux.HandleFunc("/delete/", srv.handleDelete)
	mux.HandleFunc("/settings", srv.handleSettings)
	mux.HandleFunc("/update", srv.handleUpdate)
	mux.HandleFunc("/api/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute, // video downloads over slow links
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *webServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *webServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

type dashboardData struct {
	Status   api.Status
	Videos   []api.Video
	History  []api.HistoryEvent
	Logs     []string
	Notice   string
	ErrorMsg string
}

func (s *webServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	videos, err := s.daemon.Videos()
	if err != nil {
		s.logger.Warn("video listing failed", logging.Error(err))
	}
	history, err := s.daemon.History(r.Context(), 10)
	if err != nil {
		s.logger.Warn("history query failed", logging.Error(err))
	}

	data := dashboardData{
		Status:   s.daemon.Status(r.Context()),
		Videos:   videos,
		History:  history,
		Logs:     s.daemon.RecentLogs(),
		Notice:   r.URL.Query().Get("notice"),
		ErrorMsg: r.URL.Query().Get("error"),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		s.logger.Error("dashboard render failed", logging.Error(err))
	}
}

func (s *webServer) handleLiveView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := s.cfg.LiveViewPath()
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "live view not available yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	http.ServeFile(w, r, path)
}

func (s *webServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, strings.TrimPrefix(r.URL.Path, "/videos/"), false)
}

func (s *webServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, strings.TrimPrefix(r.URL.Path, "/download/"), true)
}

func (s *webServer) serveVideo(w http.ResponseWriter, r *http.Request, name string, attachment bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !media.ValidVideoName(name) {
		http.Error(w, "invalid video name", http.StatusBadRequest)
		return
	}
	item, err := s.daemon.catalog.Video(name)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, item.Name))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, item.Path)
}

func (s *webServer) handleCaptureNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.daemon.CaptureNow(r.Context()); err != nil {
		s.redirectError(w, r, fmt.Sprintf("capture failed: %v", err))
		return
	}
	s.redirectNotice(w, r, "frame captured")
}

func (s *webServer) handleConvertNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch result := s.daemon.ConvertNow(); result {
	case timelapse.ConvertStarted:
		s.redirectNotice(w, r, "conversion started")
	default:
		s.redirectNotice(w, r, string(result))
	}
}

func (s *webServer) handleMergeNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	merged, err := s.daemon.MergeNow(r.Context())
	if err != nil {
		s.redirectError(w, r, fmt.Sprintf("merge failed: %v", err))
		return
	}
	s.redirectNotice(w, r, "merged into "+merged.Name)
}

func (s *webServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/delete/")
	if err := s.daemon.DeleteVideo(name); err != nil {
		s.redirectError(w, r, fmt.Sprintf("delete failed: %v", err))
		return
	}
	s.redirectNotice(w, r, "deleted "+name)
}

func (s *webServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.redirectError(w, r, "invalid form submission")
		return
	}

	current := s.daemon.Status(r.Context()).Settings
	settings, err := settingsFromForm(current, r.PostForm)
	if err != nil {
		s.redirectError(w, r, err.Error())
		return
	}
	if err := s.daemon.UpdateSettings(settings); err != nil {
		s.redirectError(w, r, fmt.Sprintf("settings rejected: %v", err))
		return
	}
	s.redirectNotice(w, r, "settings updated")
}

func settingsFromForm(current api.Settings, form url.Values) (api.Settings, error) {
	next := current
	if raw := strings.TrimSpace(form.Get("capture_interval_seconds")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return api.Settings{}, fmt.Errorf("capture interval must be a number, got %q", raw)
		}
		next.CaptureIntervalSeconds = value
	}
	if raw := strings.TrimSpace(form.Get("rotation_degrees")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return api.Settings{}, fmt.Errorf("rotation must be a number, got %q", raw)
		}
		next.RotationDegrees = value
	}
	if raw := strings.TrimSpace(form.Get("frame_threshold")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return api.Settings{}, fmt.Errorf("frame threshold must be a number, got %q", raw)
		}
		next.FrameThreshold = value
	}
	if raw := strings.TrimSpace(form.Get("black_detection_percentage")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return api.Settings{}, fmt.Errorf("black detection percentage must be a number, got %q", raw)
		}
		next.BlackDetectionPercentage = value
	}
	return next, nil
}

func (s *webServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.daemon.StartUpdate(); err != nil {
		s.redirectError(w, r, fmt.Sprintf("update failed to start: %v", err))
		return
	}
	s.redirectNotice(w, r, "update started; the daemon restarts when it completes")
}

func (s *webServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.daemon.Status(r.Context())); err != nil {
		s.logger.Warn("status encode failed", logging.Error(err))
	}
}

func (s *webServer) redirectNotice(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/?notice="+url.QueryEscape("OK: "+notice), http.StatusSeeOther)
}

func (s *webServer) redirectError(w http.ResponseWriter, r *http.Request, detail string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape("ERROR: "+detail), http.StatusSeeOther)
}
