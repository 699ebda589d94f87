package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/bestpractice116/liminal-umbrella/internal/setup"
	"github.com/bestpractice116/liminal-umbrella/internal/worker/mirror"
)

// MirrorLogDir specifies where mirror worker log files are stored.
const MirrorLogDir = "logs/mirror_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "mirror",
		Usage: "Start the guild mirror worker",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "Run pending database migrations on startup",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			runWorker(ctx, c.Bool("migrate"))
			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorker starts the mirror worker and blocks until interrupted.
func runWorker(ctx context.Context, migrate bool) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx, MirrorLogDir, migrate)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	worker, err := mirror.New(app, app.Logger.Named("mirror"))
	if err != nil {
		log.Fatalf("Failed to create mirror worker: %v", err)
	}

	worker.Start(ctx)
}
