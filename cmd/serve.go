package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/app"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the census insights API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve", envOptions{store: true, chat: true})
		if err != nil {
			return err
		}
		defer closeEnv(env)

		if !env.Ready() {
			if err := env.TrainAsync(ctx); err != nil {
				return err
			}
			zap.L().Info("training models in the background")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter mounts every API route on a chi router.
func buildRouter(env *app.Env, origins []string) http.Handler {
	h := &handlers{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/overview", h.overview)
		r.Get("/states", h.states)
		r.Get("/state/{state}", h.stateDetail)
		r.Get("/insights/states", h.stateInsights)
		r.Get("/demographics", h.demographics)
		r.Get("/workforce", h.workforce)
		r.Get("/housing", h.housing)
		r.Get("/summary", h.summary)

		r.Route("/ml", func(r chi.Router) {
			r.Get("/overview", h.mlOverview)
			r.Get("/recommendations/{district}", h.recommendation)
			r.Get("/top-recommendations", h.topRecommendations)
			r.Get("/cluster-comparison", h.clusterComparison)
			r.Get("/runs", h.listRuns)
			r.Get("/runs/{id}", h.getRun)
			r.Post("/train", h.train)
			r.Post("/predict-literacy", h.predict("literacy"))
			r.Post("/predict-housing-quality", h.predict("housing-quality"))
			r.Post("/classify-asset-ownership", h.predict("asset-ownership"))
			r.Post("/district-cluster", h.predict("district-cluster"))
			r.Post("/housing-cluster", h.predict("housing-cluster"))
			r.Get("/{task}", h.mlResult)
		})

		r.Route("/chatbot", func(r chi.Router) {
			r.Use(h.requireChat)
			r.Post("/session", h.createSession)
			r.Post("/chat", h.chat)
			r.Post("/stream", h.chatStream)
			r.Get("/history/{id}", h.history)
			r.Post("/summary/{id}", h.generateSummary)
			r.Get("/summary/{id}", h.getSummary)
			r.Get("/sessions", h.sessions)
			r.Delete("/sessions/{id}", h.deleteSession)
		})
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
