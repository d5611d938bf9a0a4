package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/bookmark"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/simulation"
	"github.com/sells-group/aid-simulator/internal/store"
)

const (
	userHeader   = "X-User-ID"
	maxBodyBytes = 1 << 20
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(&api{simulations: env.Simulations, bookmarks: env.Bookmarks}, routerOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		})
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func resolvePort(flag, fallback int) int {
	if flag != 0 {
		return flag
	}
	return fallback
}

// startServer serves handler until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return eris.Wrap(err, "server listen")
	}
	return serve(ctx, &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}, ln)
}

// serve runs srv on ln until ctx is cancelled. It returns only once in-flight
// requests have drained, so the caller may then close what handlers use.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server serve")
	}
	<-done
	return nil
}

type routerOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// api binds HTTP handlers to the services.
type api struct {
	simulations *simulation.Service
	bookmarks   *bookmark.Service
}

func buildRouter(a *api, opts routerOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", userHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Post("/simulations", a.runSimulation)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/simulations", a.listSimulations)
			r.Get("/simulations/{id}", a.getSimulation)

			r.Get("/saved-aides", a.listSavedAides)
			r.Post("/saved-aides", a.saveAide)
			r.Patch("/saved-aides/{id}/status", a.updateSavedAideStatus)
			r.Delete("/saved-aides/{id}", a.removeSavedAide)
		})
	})
	return r
}

type simulationRequest struct {
	Situation model.UserSituation `json:"situation"`
	Language  string              `json:"language"`
}

func (a *api) runSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lang := req.Language
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}

	result, err := a.simulations.Run(r.Context(), r.Header.Get(userHeader), req.Situation, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) listSimulations(w http.ResponseWriter, r *http.Request) {
	results, err := a.simulations.History(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []model.SimulationResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"simulations": results})
}

func (a *api) getSimulation(w http.ResponseWriter, r *http.Request) {
	result, err := a.simulations.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) listSavedAides(w http.ResponseWriter, r *http.Request) {
	aides, err := a.bookmarks.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if aides == nil {
		aides = []model.SavedAide{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved_aides": aides})
}

func (a *api) saveAide(w http.ResponseWriter, r *http.Request) {
	var req bookmark.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	aide, err := a.bookmarks.Save(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, aide)
}

type statusRequest struct {
	Status model.SavedStatus `json:"status"`
}

func (a *api) updateSavedAideStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	aide, err := a.bookmarks.UpdateStatus(r.Context(), userID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aide)
}

func (a *api) removeSavedAide(w http.ResponseWriter, r *http.Request) {
	if err := a.bookmarks.Remove(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(userHeader)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": userHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *bookmark.TransitionError
	switch {
	case errors.As(err, &terr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": terr.Error(),
			"from":  string(terr.From),
			"to":    string(terr.To),
		})
	case errors.Is(err, model.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, bookmark.ErrDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "program already saved"})
	case errors.Is(err, bookmark.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
