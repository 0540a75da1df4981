package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthgo "github.com/hellofresh/health-go/v5"
	"github.com/nats-io/nats.go"

	"berrystand/internal/config"
	httpapi "berrystand/internal/http"
	"berrystand/internal/notify"
	"berrystand/internal/service"
	"berrystand/internal/telemetry"

	_ "berrystand/docs"
)

// @title		Berry Stand API
// @version		1.0
// @description	Pickup orders for a seasonal blueberry farm stand.
// @host		localhost:8080
// @BasePath	/api/v1
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()
	retcode := 0
	defer func() {
		os.Exit(retcode)
	}()

	slog.InfoContext(ctx, "Loading config")
	settings, err := config.Load(os.Getenv("BERRYSTAND_CONFIG_FILE"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("err", err))
		retcode = 1
		return
	}

	otelShutdown, err := telemetry.SetupOTelSDK(ctx, settings.App, settings.OpenTelemetry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to setup telemetry", slog.Any("err", err))
		retcode = 1
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.ErrorContext(ctx, "failed to shutdown opentelemetry providers", slog.Any("err", err))
			retcode = 1
		}
	}()

	slog.InfoContext(ctx, "Opening storage", slog.String("driver", settings.Storage.Driver))
	stores, err := settings.Storage.Open(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open storage", slog.Any("err", err))
		retcode = 1
		return
	}
	defer stores.Close()

	catalog := service.NewCatalogService(stores.Tiers, stores.Limits)
	tiers, err := settings.Tiers()
	if err != nil {
		slog.ErrorContext(ctx, "invalid price tiers", slog.Any("err", err))
		retcode = 1
		return
	}
	seeded, err := catalog.SeedTiers(ctx, tiers)
	if err != nil {
		slog.ErrorContext(ctx, "failed to seed price tiers", slog.Any("err", err))
		retcode = 1
		return
	}
	if seeded > 0 {
		slog.InfoContext(ctx, "seeded price tiers", slog.Int("count", seeded))
	}

	checks := []healthgo.Config{{
		Name:    settings.Storage.Driver,
		Timeout: 2 * time.Second,
		Check:   stores.Ping,
	}}

	var notifier notify.Notifier = notify.LogNotifier{}
	if settings.Notifications.Driver == "nats" {
		slog.InfoContext(ctx, "Connecting to NATS server")
		var nc *nats.Conn
		nc, err = settings.Notifications.Nats.GetNatsClient()
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to NATS server", slog.Any("err", err))
			retcode = 1
			return
		}
		defer nc.Drain()
		notifier = notify.NewNATSNotifier(nc, settings.Notifications.Subject)
		checks = append(checks, healthgo.Config{
			Name: "nats",
			Check: func(ctx context.Context) error {
				if !nc.IsConnected() {
					return errors.New("NATS connection is not active")
				}
				return nil
			},
		})
	}

	health, err := healthgo.New(
		healthgo.WithComponent(healthgo.Component{
			Name:    settings.App.Name,
			Version: settings.App.Version,
		}),
		healthgo.WithChecks(checks...),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create health checker", slog.Any("err", err))
		retcode = 1
		return
	}

	orders := service.NewOrderService(stores.Orders, stores.Tiers, stores.Limits, stores.Tx, notifier, service.Options{
		Rules:            settings.Rules(),
		Location:         settings.Location(),
		LargeOrderPounds: settings.Ordering.LargeOrderPounds,
		PickupAfter:      settings.Ordering.PickupAfter,
		FarmName:         settings.Ordering.FarmName,
		PublicBaseURL:    settings.Ordering.PublicBaseURL,
		Messages: service.StorefrontMessages{
			FarmInfo:    settings.Messages.FarmInfo,
			Prices:      settings.Messages.Prices,
			About:       settings.Messages.About,
			OutOfSeason: settings.Messages.OutOfSeason,
		},
	})

	srv := httpapi.NewServer(orders, catalog, health, settings.HTTP)
	httpServer := &http.Server{
		Addr:              settings.HTTP.Addr(),
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening for requests", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err = <-errChan:
		slog.ErrorContext(ctx, "error when running server", slog.Any("err", err))
		retcode = 1
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown gracefully the server", slog.Any("err", err))
	}
}
