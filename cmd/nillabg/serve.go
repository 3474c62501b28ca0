package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/handlers"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only API server",
	Long: `Serve the daily overview and the metrics report as JSON over HTTP.
The API only reads the warehouse; run build first.`,
	RunE: runServe,
}

var port string

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	if port != "" {
		cfg.Server.Port = port
	}
	log := runLogger(cmd)

	store, err := openStore()
	if err != nil {
		return err
	}
	sqlDB, err := app.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	overviewService := service.NewOverviewService(store, app.log)
	metricsService := service.NewMetricsService(service.NewAssociationService(store, app.log), app.log)

	production := cfg.Server.Env == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Health:         handlers.NewHealthHandler(sqlDB.PingContext, cfg.Server.Env, app.log),
		Overview:       handlers.NewOverviewHandler(overviewService, app.log),
		Metrics:        handlers.NewMetricsHandler(metricsService, cfg.Metrics.Params(), app.log),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Production:     production,
		Log:            app.log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("server listening",
		logger.String("port", cfg.Server.Port),
		logger.String("env", cfg.Server.Env),
	)

	select {
	case <-cmd.Context().Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	}
}
