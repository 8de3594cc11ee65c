package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	"go.uber.org/zap"
)

// recentLimit is how many 10-minute results /api/evap10/recent returns
const recentLimit = 100

// EvaporationService is the part of the evaporation use case the HTTP API needs
type EvaporationService interface {
	RunRolling(ctx context.Context)
	RunDailyAt(ctx context.Context, ref time.Time)
	LiveReading(ctx context.Context) (*entities.LiveReading, error)
	RecordHeight(ctx context.Context, distance float64, at time.Time) error
	RecentRolling(ctx context.Context, limit int) ([]entities.RollingRecord, error)
	DailyResults(ctx context.Context) ([]entities.DailyRecord, error)
	AvailableRainLogs(ctx context.Context) ([]time.Time, error)
	Location() *time.Location
}

// HTTPServer exposes readings, results and manual triggers over HTTP
type HTTPServer struct {
	service EvaporationService
	server  http.Server
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewHTTPServer creates the API server listening on addr
func NewHTTPServer(addr string, service EvaporationService, logger *zap.SugaredLogger) *HTTPServer {
	s := &HTTPServer{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
	s.server.Addr = addr
	s.server.Handler = s.Handler()
	s.server.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Handler returns the router wrapped with access logging, CORS and panic recovery
func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/realtime", s.getRealtime).Methods(http.MethodGet)
	router.HandleFunc("/api/evap10/recent", s.getRecentRolling).Methods(http.MethodGet)
	router.HandleFunc("/api/daily", s.getDaily).Methods(http.MethodGet)
	router.HandleFunc("/api/trigger10", s.triggerRolling).Methods(http.MethodPost)
	router.HandleFunc("/api/triggerDaily", s.triggerDaily).Methods(http.MethodPost)
	router.HandleFunc("/api/devices/live", s.postLiveReading).Methods(http.MethodPost)
	router.HandleFunc("/api/rainlogs", s.getRainLogs).Methods(http.MethodGet)

	stdLog := zap.NewStdLog(s.logger.Desugar())
	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog))(h)
	h = handlers.CombinedLoggingHandler(stdLog.Writer(), h)
	return h
}

// Start serves in the background until ctx is cancelled
func (s *HTTPServer) Start(ctx context.Context, wg *sync.WaitGroup) {
	s.logger.Infow("starting HTTP API", "addr", s.server.Addr)
	wg.Add(1)

	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("HTTP server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down the HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP API shutdown incomplete", "error", err)
		}
	}()
}

func (s *HTTPServer) getRealtime(w http.ResponseWriter, r *http.Request) {
	live, err := s.service.LiveReading(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read live height", err)
		return
	}
	if live == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	s.writeJSON(w, http.StatusOK, live)
}

func (s *HTTPServer) getRecentRolling(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.RecentRolling(r.Context(), recentLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read rolling results", err)
		return
	}

	byKey := make(map[string]entities.RollingRecord, len(records))
	for _, rec := range records {
		byKey[strconv.FormatInt(rec.Timestamp, 10)] = rec
	}
	s.writeJSON(w, http.StatusOK, byKey)
}

func (s *HTTPServer) getDaily(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.DailyResults(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read daily results", err)
		return
	}

	byDate := make(map[string]entities.DailyRecord, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
	}
	s.writeJSON(w, http.StatusOK, byDate)
}

// triggerRolling answers ok whether the cycle saved a result or was skipped
func (s *HTTPServer) triggerRolling(w http.ResponseWriter, r *http.Request) {
	s.service.RunRolling(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) triggerDaily(w http.ResponseWriter, r *http.Request) {
	ref := s.now()
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := time.ParseInLocation(entities.DailyKeyLayout, date, s.service.Location())
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
			return
		}
		ref = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	}

	s.service.RunDailyAt(context.WithoutCancel(r.Context()), ref)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type liveReadingRequest struct {
	Distance  *float64 `json:"distance"`
	UpdatedAt int64    `json:"updatedAt"` // Unix milliseconds, optional
}

func (s *HTTPServer) postLiveReading(w http.ResponseWriter, r *http.Request) {
	var req liveReadingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.Distance == nil {
		s.writeError(w, http.StatusBadRequest, "distance is required", nil)
		return
	}

	var at time.Time
	if req.UpdatedAt > 0 {
		at = time.UnixMilli(req.UpdatedAt)
	}
	if err := s.service.RecordHeight(r.Context(), *req.Distance, at); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to record height", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) getRainLogs(w http.ResponseWriter, r *http.Request) {
	dates, err := s.service.AvailableRainLogs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to list rain logs", err)
		return
	}

	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, d.Format(entities.DateKeyLayout))
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"dates": keys})
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		s.logger.Warnw(msg, "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnw("failed to write response", "status", status, "error", err)
	}
}
