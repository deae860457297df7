package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/device"
	"zerotrace/internal/method"
	"zerotrace/internal/reporting"
	"zerotrace/internal/session"
)

// Server HTTP интерфейс движка для локального GUI и автоматизации
type Server struct {
	cfg     config.APIConfig
	mgr     *session.Manager
	builder *certificate.Builder
	store   *reporting.Store
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewServer создаёт HTTP сервер поверх менеджера сессий
func NewServer(cfg config.APIConfig, mgr *session.Manager, builder *certificate.Builder, store *reporting.Store, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		mgr:     mgr,
		builder: builder,
		store:   store,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst),
	}
}

// Router собирает маршруты API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.rateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Get("/drives", s.handleDrives)
		r.Get("/methods", s.handleMethods)
		r.Post("/wipe", s.handleStartWipe)
		r.Get("/wipe/{id}/progress", s.handleProgress)
		r.Post("/wipe/{id}/cancel", s.handleCancel)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/certificates/{id}", s.handleCertificate)
		r.Post("/verify", s.handleVerify)
	})

	return r
}

// ListenAndServe запускает сервер и останавливает его по контексту
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API запущен", zap.String("listen", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// logRequests логирует каждый запрос
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP запрос",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// rateLimit ограничивает частоту запросов
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"drives": device.List()})
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	type methodInfo struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Passes    int      `json:"passes"`
		Hardware  bool     `json:"hardware"`
		Standards []string `json:"standards"`
	}

	methods := make([]methodInfo, 0)
	for _, m := range method.List() {
		methods = append(methods, methodInfo{
			ID:        m.ID,
			Name:      m.Name,
			Passes:    m.Passes,
			Hardware:  m.RequiresHardware,
			Standards: m.Standards,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"methods": methods})
}

// wipeRequest тело запроса на затирание
type wipeRequest struct {
	DevicePath string `json:"device_path"`
	Method     string `json:"method"`
	Passes     int    `json:"passes,omitempty"`
	Force      bool   `json:"force,omitempty"`
	Operator   string `json:"operator,omitempty"`
}

func (s *Server) handleStartWipe(w http.ResponseWriter, r *http.Request) {
	var req wipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	desc, err := device.Resolve(req.DevicePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, err := s.mgr.Start(r.Context(), session.StartRequest{
		Device:   desc,
		Method:   req.Method,
		Passes:   req.Passes,
		Force:    req.Force,
		Operator: req.Operator,
	})
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.mgr.GetProgress(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.Cancel(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "cancelled"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.mgr.List()})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.LoadCertificate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var doc certificate.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid certificate body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.builder.Verify(&doc))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
