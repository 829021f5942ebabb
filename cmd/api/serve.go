package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"bijbelzoek/api/internal/app"
)

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the export HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), state)
		},
	}
}

func serve(ctx context.Context, state *cliState) error {
	cfg, logger := state.cfg, state.logger

	p, err := buildPipeline(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer p.Close()

	service := app.NewService(p.exports, p.appOpts...)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MaxBodyBytes, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A PDF may wait for the queue and then render.
		WriteTimeout: cfg.PDFQueueWait + cfg.PDFJobTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Bijbelzoek export API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	return nil
}
