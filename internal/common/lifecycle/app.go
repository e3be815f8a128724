package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	commonmongo "go.quayer.tech/hooks/internal/common/mongo"
	"go.quayer.tech/hooks/internal/config"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, the database is connected, pinged, and indexed.
type App struct {
	Config *config.Config
	Mongo  *commonmongo.Client

	cleanupFuncs []func() error
}

// Initialize loads configuration, connects to MongoDB, and ensures indexes.
//
//	app, cleanup, err := lifecycle.Initialize(ctx)
//	if err != nil {
//	    slog.Error("Failed to initialize", "error", err)
//	    os.Exit(1)
//	}
//	defer cleanup()
func Initialize(ctx context.Context) (*App, func(), error) {
	cfg, err := config.LoadWithFile()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	app := &App{Config: cfg}

	client, err := commonmongo.Connect(ctx, cfg.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	app.Mongo = client
	app.AddCleanup(func() error {
		slog.Info("Disconnecting from MongoDB")
		return client.Disconnect(context.Background())
	})

	if err := commonmongo.NewIndexInitializer(client).Initialize(ctx); err != nil {
		app.Cleanup()
		return nil, nil, fmt.Errorf("initializing indexes: %w", err)
	}

	return app, app.Cleanup, nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions run in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
}
