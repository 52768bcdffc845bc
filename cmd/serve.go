package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		timeout := time.Duration(a.Config.Server.TimeoutSeconds) * time.Second
		server := api.New(api.Config{
			Port:           a.Config.Server.Port,
			RequestTimeout: timeout,
		}, a.Logger, a.Ingest, a.Query, a.Index, a.Crawler, a.Ready)

		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
			Handler:      server.Handler(),
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger.Info("http server listening", zap.Int("port", a.Config.Server.Port))
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			a.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
		}
		return nil
	},
}
