package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/cerro-obs/cloudfrac/internal/api/http"
	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
	"github.com/cerro-obs/cloudfrac/internal/config"
	"github.com/cerro-obs/cloudfrac/internal/objstore"
	"github.com/cerro-obs/cloudfrac/internal/scheduler"
	"github.com/cerro-obs/cloudfrac/internal/store"
)

const usage = `Usage: cloudfrac <command> [flags]

Commands:
  run    compute cloud fractions over a time range and print or write CSV
  plan   print the object keys a run would resolve, without fetching
  serve  refresh on a schedule and serve the series over HTTP
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, cfg, os.Args[2:])
	case "plan":
		err = planCmd(ctx, cfg, os.Args[2:])
	case "serve":
		err = serveCmd(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func newService(ctx context.Context, cfg *config.AppConfig) (*cloudfrac.Service, error) {
	remote, err := objstore.NewS3Remote(ctx, objstore.BackoffConfig{})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	cache := objstore.NewCache(cfg.CacheRoot, remote)

	return cloudfrac.NewService(cache, cloudfrac.NetCDFOpener{}, cloudfrac.Options{
		Satellite: cfg.Satellite,
		Sector:    cfg.Sector,
		Site:      cfg.Site,
		Step:      cfg.Cadence,
		Verbose:   cfg.Verbose,
	})
}

// parseRange reads -start and -end flags, defaulting to the trailing
// lookback window ending now.
func parseRange(fs *flag.FlagSet, cfg *config.AppConfig, args []string) (start, end time.Time, err error) {
	startStr := fs.String("start", "", "range start, RFC3339 (default: now minus lookback)")
	endStr := fs.String("end", "", "range end, RFC3339 (default: now)")
	if err = fs.Parse(args); err != nil {
		return start, end, err
	}

	end = time.Now().UTC()
	if *endStr != "" {
		end, err = time.Parse(time.RFC3339, *endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid -end: %w", err)
		}
	}
	start = end.Add(-cfg.Lookback)
	if *startStr != "" {
		start, err = time.Parse(time.RFC3339, *startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid -start: %w", err)
		}
	}
	return start, end, nil
}

func runCmd(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	csvPath := fs.String("csv", "", "write results to this CSV file instead of stdout")

	start, end, err := parseRange(fs, cfg, args)
	if err != nil {
		return err
	}

	service, err := newService(ctx, cfg)
	if err != nil {
		return err
	}

	rows, err := service.Run(ctx, start, end)
	if err != nil {
		return err
	}

	if *csvPath != "" {
		if err := cloudfrac.WriteCSV(*csvPath, rows); err != nil {
			return err
		}
		log.Printf("INFO: wrote %d rows to %s", len(rows), *csvPath)
		return nil
	}

	fmt.Println("timestamp,cloudfraction,cloudfraction_above_site")
	for _, r := range rows {
		fmt.Printf("%s,%g,%g\n", r.Timestamp.Format(time.RFC3339), r.CloudFraction, r.CloudFractionAboveSite)
	}
	return nil
}

func planCmd(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	start, end, err := parseRange(fs, cfg, args)
	if err != nil {
		return err
	}

	service, err := newService(ctx, cfg)
	if err != nil {
		return err
	}

	keys, err := service.Plan(start, end)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func serveCmd(ctx context.Context, cfg *config.AppConfig) error {
	service, err := newService(ctx, cfg)
	if err != nil {
		return err
	}

	memStore := store.NewMemoryStore(cfg.MaxRows, cfg.MaxAge)

	sched := scheduler.New(service, memStore, cfg.Interval, cfg.Lookback)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "cloudfrac",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "cloudfrac",
		})
	})

	httpapi.RegisterRoutes(app, memStore, cfg.Site)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}
