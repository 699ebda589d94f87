// Package mirror runs the guild mirroring worker: periodic full sync
// passes interleaved with live gateway updates, sharing one engine so
// both paths converge on the same database state.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/gateway"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/engine"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	discordsource "github.com/bestpractice116/liminal-umbrella/internal/remote/discord"
	"github.com/bestpractice116/liminal-umbrella/internal/setup"
	"github.com/bestpractice116/liminal-umbrella/internal/worker/core"
)

const (
	// defaultSyncInterval is how long to wait between full sync passes
	// when the config does not set one.
	defaultSyncInterval = 15 * time.Minute

	// failureBackoff is the pause after a failed sync cycle.
	failureBackoff = 1 * time.Minute
)

// Worker keeps the guild mirror current.
type Worker struct {
	app      *setup.App
	client   bot.Client
	engine   *engine.Engine
	bus      *events.Dispatcher
	greeter  *Greeter
	reporter *core.StatusReporter
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new mirror worker.
func New(app *setup.App, logger *zap.Logger) (*Worker, error) {
	bus := events.NewDispatcher()
	bus.Subscribe(events.LogHandler(logger.Named("events")))

	w := &Worker{
		app:      app,
		bus:      bus,
		reporter: core.NewStatusReporter(app.StatusClient, "mirror", logger),
		interval: defaultSyncInterval,
		logger:   logger,
	}

	if app.Config.Sync.Interval > 0 {
		w.interval = time.Duration(app.Config.Sync.Interval) * time.Second
	}

	// Create Discord client with required intents and gateway listeners
	client, err := disgo.New(app.Config.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentGuildScheduledEvents,
			),
		),
		bot.WithEventListeners(w.listeners()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	w.client = client

	source := discordsource.NewSource(client.Rest(), app.Config.Discord.GuildID, logger)

	opts := []engine.Option{
		engine.WithIndexWorkers(app.Config.Sync.IndexWorkers),
	}
	if app.Config.Sync.PaceMs > 0 {
		opts = append(opts, engine.WithPace(time.Duration(app.Config.Sync.PaceMs)*time.Millisecond))
	}

	w.engine = engine.New(app.DB.Model().EngineStore(), source, bus, logger, opts...)

	// Greeting flow reacts to membership events
	w.greeter = NewGreeter(
		client.Rest(),
		app.DB.Model().Greeting(),
		app.Config.Discord.GreetingChannelID,
		logger,
	)
	w.greeter.Subscribe(bus)

	return w, nil
}

// Start begins the mirror worker's main loop. It blocks until the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Mirror worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	// Open Discord gateway connection
	if err := w.client.OpenGateway(ctx); err != nil {
		w.logger.Fatal("Failed to open gateway", zap.Error(err))
	}
	defer w.client.Close(context.Background())

	for {
		if ctx.Err() != nil {
			return
		}

		w.reporter.SetHealthy(true)

		if err := w.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			w.logger.Error("Sync cycle failed", zap.Error(err))
			w.reporter.SetHealthy(false)

			if !w.pause(ctx, failureBackoff) {
				return
			}

			continue
		}

		w.reporter.UpdateStatus("Waiting for next cycle", 100)

		if !w.pause(ctx, w.interval) {
			return
		}
	}
}

// runCycle performs one full pass: reconciliation, message indexing and
// the watermark tick.
func (w *Worker) runCycle(ctx context.Context) error {
	w.reporter.UpdateStatus("Reconciling guild state", 10)

	if err := w.engine.Sync(ctx); err != nil {
		return fmt.Errorf("sync guild state: %w", err)
	}

	w.reporter.UpdateStatus("Indexing messages", 50)

	if err := w.engine.IndexChannels(ctx); err != nil {
		return fmt.Errorf("index channels: %w", err)
	}

	w.reporter.UpdateStatus("Committing watermark", 90)

	if err := w.engine.TickWatermark(ctx); err != nil {
		return fmt.Errorf("commit watermark: %w", err)
	}

	w.engine.ResetRun()

	return nil
}

// pause sleeps for d, reporting whether the context is still live.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
