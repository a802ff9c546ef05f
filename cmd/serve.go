package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/metrics"
	"github.com/philtim/timearchitect/notify"
	"github.com/philtim/timearchitect/server"
	"github.com/philtim/timearchitect/session"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alarm daemon with the HTTP API",
	Long: `Ticks the clock in the background and serves the JSON API, a WebSocket
stream of ticks and events at /ws and Prometheus metrics at /metrics.

Examples:
  timearchitect serve
  timearchitect serve --listen :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}

		a, err := newApp(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		cities := geonames.NewDatabase("")
		cities.LoadAsync(ctx)

		var metricsService *metrics.Service
		if cfg.Server.Metrics {
			metricsService = metrics.New()
			metricsService.Subscribe(a.bus)
			a.session.SetObserver(metricsService)
		}

		notifier := notify.New(cfg.Notifications.URLs)
		notifier.Start(a.bus)

		srv := server.New(server.Deps{
			Session:   a.session,
			Metrics:   metricsService,
			Cities:    cities,
			RateLimit: cfg.Server.RateLimit,
		})

		driver := session.NewDriver(a.session, cfg.TickInterval, srv.Hub().BroadcastTick)
		driver.Start()

		serveErr := make(chan error, 1)
		go func() {
			if err := srv.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		logger.Infof("timearchitect serving zone %s on %s", a.session.Active().Code, cfg.Server.Listen)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		var runErr error
		select {
		case sig := <-quit:
			logger.Infof("Received signal %v, shutting down...", sig)
		case err := <-serveErr:
			runErr = fmt.Errorf("http server: %w", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		driver.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP server shutdown error: %v", err)
		}
		notifier.Wait()
		logger.Infof("Shutdown complete")
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (overrides server.listen)")
}
