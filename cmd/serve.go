package main

import (
	"context"
	"encoding/json"
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

	"github.com/sells-group/crm-enrich/internal/aggregate"
	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for enrichment and advisory requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				TenantID     string            `json:"tenant_id"`
				EntityID     string            `json:"entity_id"`
				Kind         string            `json:"kind"`
				Domain       string            `json:"domain"`
				MetadataOnly bool              `json:"metadata_only"`
				Force        bool              `json:"force"`
				Sources      map[string]string `json:"sources"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeErr(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.TenantID == "" || body.EntityID == "" {
				writeErr(w, http.StatusBadRequest, "tenant_id and entity_id are required")
				return
			}

			opts := pipeline.RunOptions{
				Kind:   model.EntityKind(body.Kind),
				Domain: body.Domain,
				Force:  body.Force,
			}
			if body.MetadataOnly {
				opts.Mode = model.ModeMetadataOnly
			}
			for name, url := range body.Sources {
				opts.Sources = append(opts.Sources, aggregate.Source{Name: name, URL: url})
			}

			// Enrichment runs async; the run outcome lands in run tracking.
			go func() {
				result, err := e.Runner.Run(ctx, body.TenantID, body.EntityID, opts)
				if err != nil {
					zap.L().Error("async enrichment failed",
						zap.String("tenant", body.TenantID),
						zap.String("entity", body.EntityID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("async enrichment complete",
					zap.String("run_id", result.RunID),
					zap.Int("version", result.Version),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]any{
				"ok":        true,
				"tenant_id": body.TenantID,
				"entity_id": body.EntityID,
			})
		})

		r.Post("/advisory", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				TenantID string            `json:"tenant_id"`
				EntityID string            `json:"entity_id"`
				Stage    string            `json:"stage"`
				Params   map[string]string `json:"params"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeErr(w, http.StatusBadRequest, "invalid request body")
				return
			}

			result, err := e.Advisory.Generate(req.Context(), body.TenantID, body.EntityID, body.Stage, body.Params)
			if err != nil {
				writeErr(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":           true,
				"advisory":     result.Payload,
				"cache_hit":    result.CacheHit,
				"recent":       result.Recent,
				"rate_limited": result.RateLimited,
				"deduped":      result.Deduped,
			})
		})

		r.Get("/records/{tenant}/{entity}", func(w http.ResponseWriter, req *http.Request) {
			rec, err := e.Store.GetRecord(req.Context(),
				chi.URLParam(req, "tenant"), chi.URLParam(req, "entity"))
			if errors.Is(err, store.ErrNotFound) {
				writeErr(w, http.StatusNotFound, "record not found")
				return
			}
			if err != nil {
				writeErr(w, http.StatusInternalServerError, "record lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "record": rec})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
