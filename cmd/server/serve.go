package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"covidboard/internal/api"
	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",

	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := loadPresets(cfg.Data.Presets)
		if err != nil {
			return err
		}

		m := metrics.NewStore()
		// The API is "live" immediately but returns 503 until the data lands.
		h := api.NewHandler(nil, api.WithPresets(presets), api.WithMetrics(m), api.WithLogger(logger))
		m.RegisterCollector(metrics.NewDatasetCollector(h.Data))
		e := api.NewServer(h, cfg.Server, logger, m)

		// Launch the load in the background
		go func() {
			t0 := time.Now()
			store, err := loadDataset(cfg.Data.Path)
			m.ObserveLoad(time.Since(t0), err)
			if err != nil {
				h.SetLoadError(err)
				return
			}
			h.SetData(store)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info().Str("address", cfg.Server.Address).Msg("server ready (data loading in background)")
			if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "server stopped")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringP("address", "a", config.Default().Server.Address, "Address to listen on")
	serveCmd.Flags().Float64("rate-limit", config.Default().Server.RateLimit, "Requests per second allowed per client (0 disables)")
	serveCmd.Flags().StringSlice("cors-origin", config.Default().Server.CORSOrigins, "Allowed CORS origins")

	bindFlag("server.address", serveCmd.Flags().Lookup("address"))
	bindFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
	bindFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origin"))
}

func loadDataset(path string) (*engine.ColumnStore, error) {
	logger.Info().Str("path", path).Msg("loading dataset")
	t0 := time.Now()

	store, err := engine.LoadColumnar(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("dataset load failed")
		return nil, err
	}

	lo, hi := store.DateBounds()
	logger.Info().
		Int("rows", store.Len()).
		Int("countries", len(store.CountryDict)).
		Stringer("from", lo).
		Stringer("to", hi).
		Dur("took", time.Since(t0)).
		Msg("dataset loaded")
	return store, nil
}

func loadPresets(path string) ([]config.Preset, error) {
	if path == "" {
		return nil, nil
	}
	presets, err := config.LoadPresets(path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("count", len(presets)).Str("path", path).Msg("loaded presets")
	return presets, nil
}
