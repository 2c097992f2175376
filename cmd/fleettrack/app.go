package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crack2116/fleettrack/internal/auth"
	"github.com/crack2116/fleettrack/internal/config"
	"github.com/crack2116/fleettrack/internal/notify"
	"github.com/crack2116/fleettrack/internal/store"
	"github.com/crack2116/fleettrack/internal/tracking"
	"github.com/crack2116/fleettrack/internal/wshandler"
	"github.com/crack2116/fleettrack/pkg/model"
)

const notifyTimeout = time.Second * 10

type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	store    store.Store
	users    *auth.FileRepository
	identity *auth.State
	tracker  *tracking.Tracker
	notify   *notify.Manager

	handlers sync.Map
	wg       sync.WaitGroup
}

func NewApp(cfg *config.AppConfig) (*App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		logger:   slog.Default().With("logger", "app"),
		store:    st,
		users:    auth.NewFileRepo(cfg.UsersFile()),
		identity: auth.NewState(),
		notify:   notify.New(st, cfg.NotifyCap(), cfg.Retry()),
	}

	app.tracker = tracking.New(store.Guard(st, app.identity), cfg.Tracking())

	return app, nil
}

func openStore(cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Store() {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSQL:
		db, err := store.OpenSQLite(cfg.DB())
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.DB(), err)
		}

		return store.NewSQL(db), nil
	case config.StoreRedis:
		return store.NewRedis(cfg.RedisURL())
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store())
	}
}

// Start connects the store and loads the first vehicles snapshot.
func (app *App) Start(ctx context.Context) error {
	if err := app.store.Start(ctx); err != nil {
		return fmt.Errorf("store start: %w", err)
	}

	if err := app.users.Start(); err != nil {
		app.logger.Error("can't watch users file", slog.Any("error", err))
	}

	app.identity.SignIn(app.cfg.ServiceUser())

	app.tracker.OnChange("ws", func(vs []*model.Vehicle) bool {
		app.forEachHandler(func(h *wshandler.JSONWsHandler) bool {
			return h.SendVehicles(vs)
		})

		return true
	})

	app.tracker.OnEvent("ws", func(e *tracking.Event) bool {
		app.forEachHandler(func(h *wshandler.JSONWsHandler) bool {
			return h.SendEvent(e)
		})

		return true
	})

	app.tracker.OnEvent("notify", func(e *tracking.Event) bool {
		if e.Type == tracking.EventArrived {
			app.wg.Add(1)

			go func() {
				defer app.wg.Done()
				app.notifyArrival(e)
			}()
		}

		return true
	})

	app.tracker.Start()

	if err := app.tracker.Err(); err != nil {
		app.logger.Warn("vehicles are not available", slog.Any("error", err))
	}

	return nil
}

// Run starts the app and serves until ctx is done.
func (app *App) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	defer app.Stop()

	srv := NewHttpServer(app, app.cfg.APIAddr())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.tracker.Run(ctx)
	})

	g.Go(srv.Listen)

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info("shutting down")

		return srv.Shutdown()
	})

	return g.Wait()
}

func (app *App) Stop() {
	app.tracker.Close()
	app.wg.Wait()
	app.identity.SignOut()
	app.users.Stop()
	app.store.Stop()
}

func (app *App) addHandler(h *wshandler.JSONWsHandler) {
	app.handlers.Store(h.Name(), h)
}

func (app *App) removeHandler(name string) {
	app.handlers.Delete(name)
}

func (app *App) forEachHandler(fn func(h *wshandler.JSONWsHandler) bool) {
	app.handlers.Range(func(key, value any) bool {
		if h, ok := value.(*wshandler.JSONWsHandler); ok && !fn(h) {
			app.handlers.Delete(key)
		}

		return true
	})
}

// notifyRoute tells the dispatcher who assigned the route.
func (app *App) notifyRoute(ctx context.Context, user string, v *model.Vehicle, dest model.Pos) {
	n := &model.Notification{
		UserID:   user,
		Title:    "Route assigned",
		Message:  fmt.Sprintf("%s is heading to %s", v.ID, dest),
		Category: model.CategoryInfo,
		Link:     "/vehicle/" + v.InternalID,
	}

	if _, err := app.notify.Create(ctx, n); err != nil {
		app.logger.Error("can't notify route", slog.String("vehicle", v.ID), slog.Any("error", err))
	}
}

// notifyArrival tells every user about an arrival.
func (app *App) notifyArrival(e *tracking.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	for _, login := range app.users.Logins() {
		n := &model.Notification{
			UserID:   login,
			Title:    "Vehicle arrived",
			Message:  fmt.Sprintf("%s reached its destination", e.Vehicle.ID),
			Category: model.CategorySuccess,
			Link:     "/vehicle/" + e.Vehicle.InternalID,
		}

		if _, err := app.notify.Create(ctx, n); err != nil {
			app.logger.Error("can't notify arrival", slog.String("user", login), slog.Any("error", err))
		}
	}
}
