package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/notify"
	"github.com/sells-group/lead-prospector/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initProspector(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		s := &server{
			runner:     env.Orchestrator,
			runs:       env.Store,
			ping:       env.Store.Ping,
			notifier:   env.Notifier,
			metrics:    env.Metrics.Handler(),
			cronSecret: cfg.Server.CronSecret,
			defaults:   cfg.Prospect.RunConfig(),
			schedule:   cfg.Schedule.RunConfig(),
			lockFile:   cfg.Schedule.LockFile,
			runTimeout: time.Duration(cfg.Server.RunTimeoutMins) * time.Minute,
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// runStore is the read side of run persistence used by the server.
type runStore interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

// server holds the trigger handlers' dependencies.
type server struct {
	runner     runner
	runs       runStore
	ping       func(ctx context.Context) error
	notifier   notify.Notifier
	metrics    http.Handler
	cronSecret string
	defaults   model.RunConfig
	schedule   model.RunConfig
	lockFile   string
	runTimeout time.Duration
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// runRequest is the body of POST /prospection/run. Omitted fields take the
// configured defaults.
type runRequest struct {
	Industries []string `json:"industries" validate:"omitempty,max=20,dive,required"`
	Regions    []string `json:"regions" validate:"omitempty,max=10,dive,required"`
	MaxLeads   int      `json:"maxLeads" validate:"gte=0,lte=500"`
	Sources    []string `json:"sources" validate:"omitempty,max=10,dive,required"`
	MinScore   int      `json:"minScore" validate:"gte=0,lte=100"`
	DryRun     bool     `json:"dryRun"`
}

func (r runRequest) runConfig(defaults model.RunConfig) model.RunConfig {
	rc := defaults
	if len(r.Industries) > 0 {
		rc.Industries = r.Industries
	}
	if len(r.Regions) > 0 {
		rc.Regions = r.Regions
	}
	if len(r.Sources) > 0 {
		rc.Sources = r.Sources
	}
	if r.MaxLeads > 0 {
		rc.MaxLeads = r.MaxLeads
	}
	if r.MinScore > 0 {
		rc.MinScore = r.MinScore
	}
	rc.DryRun = r.DryRun
	return rc.Normalize()
}

// runResponse is the wire shape of a run.
type runResponse struct {
	RunID          string           `json:"runId"`
	Status         model.RunStatus  `json:"status"`
	AgentType      string           `json:"agentType"`
	Config         model.RunConfig  `json:"config"`
	LeadsFound     int              `json:"leadsFound"`
	LeadsQualified int              `json:"leadsQualified"`
	Results        model.RunResults `json:"results"`
	Error          string           `json:"error,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

func runResponseFor(run *model.Run) runResponse {
	return runResponse{
		RunID:          run.ID,
		Status:         run.Status,
		AgentType:      run.AgentType,
		Config:         run.Config,
		LeadsFound:     run.LeadsFound,
		LeadsQualified: run.LeadsQualified,
		Results:        run.Results,
		Error:          run.Error,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		CreatedAt:      run.CreatedAt,
	}
}

// triggerResponse is returned by the run and cron triggers.
type triggerResponse struct {
	RunID   string            `json:"runId"`
	Status  model.RunStatus   `json:"status"`
	Results *model.RunResults `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *server) routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Route("/prospection", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Get("/run", s.handleGetRun)
		r.Get("/cron", s.handleCron)
		r.Post("/cron", s.handleCron)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			zap.L().Warn("health: store unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+validationMessage(err))
		return
	}

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	run, err := s.runner.Run(ctx, req.runConfig(s.defaults))
	s.writeTrigger(w, run, err)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("runId"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, "runId is required")
		return
	}

	run, err := s.runs.GetRun(r.Context(), runID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		zap.L().Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, runResponseFor(run))
}

func (s *server) handleCron(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret != "" && r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	run, err := runScheduled(ctx, s.runner, s.notifier, s.schedule, s.lockFile)
	if errors.Is(err, errRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeTrigger(w, run, err)
}

// runContext detaches a run from the request so a dropped connection does
// not cancel it; the configured run timeout still applies.
func (s *server) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if s.runTimeout > 0 {
		return context.WithTimeout(ctx, s.runTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *server) writeTrigger(w http.ResponseWriter, run *model.Run, err error) {
	if run == nil {
		zap.L().Error("prospection run could not start", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start prospection run")
		return
	}

	resp := triggerResponse{RunID: run.ID, Status: run.Status, Results: &run.Results}
	if err != nil {
		zap.L().Error("prospection run failed", zap.String("run_id", run.ID), zap.Error(err))
		resp.Error = run.Error
		if resp.Error == "" {
			resp.Error = "failed to record run outcome"
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
