package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"berrystand/internal/admission"
	"berrystand/internal/config"
	"berrystand/internal/domain"
	"berrystand/internal/repository"
	"berrystand/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "seedorders",
		Usage: "fill the order book with random pending orders for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "override file for base.yaml", EnvVars: []string{"BERRYSTAND_CONFIG_FILE"}},
			&cli.IntFlag{Name: "days", Value: 100, Usage: "number of pickup days starting today"},
			&cli.IntFlag{Name: "max-per-day", Value: 6, Usage: "upper bound of orders per day"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 picks one from the clock"},
		},
		Action: run,
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.ErrorContext(ctx, "seeding failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	stores, err := settings.Storage.Open(c.Context)
	if err != nil {
		return err
	}
	defer stores.Close()

	tiers, err := settings.Tiers()
	if err != nil {
		return err
	}
	if _, err := service.NewCatalogService(stores.Tiers, stores.Limits).SeedTiers(c.Context, tiers); err != nil {
		return err
	}

	seed := c.Uint64("seed")
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	today := domain.DateOf(time.Now().In(settings.Location()))
	n, err := seedOrders(c.Context, stores, rand.New(rand.NewPCG(seed, seed>>1)), today, c.Int("days"), c.Int("max-per-day"))
	if err != nil {
		return err
	}
	slog.InfoContext(c.Context, "orders created",
		slog.Int("count", n),
		slog.String("driver", settings.Storage.Driver),
		slog.Uint64("seed", seed),
	)
	return nil
}

// seedOrders пишет заказы напрямую в хранилище, лимиты и сезон не проверяются
func seedOrders(ctx context.Context, stores repository.Stores, rnd *rand.Rand, from time.Time, days, maxPerDay int) (int, error) {
	if days < 0 || maxPerDay < 0 {
		return 0, fmt.Errorf("days and max-per-day must not be negative")
	}
	tiers, err := stores.Tiers.ListTiers(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range days {
		date := from.AddDate(0, 0, i)
		for range rnd.IntN(maxPerDay + 1) {
			quantity := (rnd.IntN(20) + 1) * 10
			rate, err := admission.PricePerPound(quantity, tiers)
			if err != nil {
				return created, err
			}
			o := domain.Order{
				PickupDate:     date,
				Quantity:       quantity,
				RequesterName:  "Charles Reid",
				RequesterEmail: "creid@example.com",
				RequesterPhone: "5555551234",
				Status:         domain.OrderStatusPending,
				TotalCost:      admission.TotalCost(quantity, rate),
			}
			if err := stores.Orders.Create(ctx, &o); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
