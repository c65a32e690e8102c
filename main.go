// Package main runs the display hub: it rotates widgets on a LaMetric-style display
// and keeps live-score subscriptions up to date.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"display-hub/bus"
	"display-hub/buttons"
	"display-hub/config"
	"display-hub/cron"
	"display-hub/display"
	"display-hub/music"
	"display-hub/pkg/lametric"
	"display-hub/poll"
	"display-hub/rotation"
	"display-hub/router"
	"display-hub/sensors"
	"display-hub/server"
	"display-hub/sports"
	"display-hub/storage"
	"display-hub/subscriptions"
	"display-hub/widget"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"google.golang.org/api/option"
)

const defaultItemDuration = 10 // seconds

func main() {
	// A .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Display hub failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Display hub stopped")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openBackend returns the configured storage backend and a function releasing it.
func openBackend(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendFile:
		b, err := storage.NewFileBackend(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using local file storage", "storage_path", cfg.Path)
		return b, func() {}, nil
	case config.BackendBadger:
		b, err := storage.OpenBadger(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using badger storage", "storage_path", cfg.Path)
		return b, func() {
			if err := b.Close(); err != nil {
				logger.Warn("Failed to close badger", "error", err)
			}
		}, nil
	case config.BackendGCS:
		var opts []option.ClientOption
		if creds := os.Getenv("GOOGLE_CREDENTIALS_JSON"); creds != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		logger.Info("Using Cloud Storage", "bucket", cfg.Bucket)
		return storage.NewGCSBackend(client, cfg.Bucket, logger), func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// deviceClient is what the hub needs from the display, real or mocked.
type deviceClient interface {
	display.Outbound
	rotation.DisplayFetcher
	Apps(ctx context.Context) (map[string]lametric.App, error)
}

func newDeviceClient(cfg *config.Config, logger *slog.Logger) deviceClient {
	if cfg.Mock {
		logger.Info("Mock display mode enabled, device calls are only logged")
		return display.NewMockClient(logger)
	}
	pushes := make(map[lametric.AppName]display.Push)
	for name, app := range cfg.LaMetric.Apps {
		if app.PushURL != "" {
			pushes[lametric.AppName(name)] = display.Push{URL: app.PushURL, Token: app.Token}
		}
	}
	return display.New(display.Config{
		Pushes:        pushes,
		Host:          cfg.LaMetric.Host,
		User:          cfg.LaMetric.User,
		APIKey:        cfg.LaMetric.APIKey,
		Timeout:       cfg.LaMetric.Timeout,
		RatePerSecond: cfg.LaMetric.RatePerSecond,
	}, logger)
}

// resolveRefs maps every configured app to the first widget instance installed on the device.
// In mock mode no device is asked and placeholder ids are used.
func resolveRefs(ctx context.Context, cfg *config.Config, device deviceClient) (map[lametric.AppName]widget.Ref, error) {
	refs := make(map[lametric.AppName]widget.Ref, len(cfg.LaMetric.Apps))
	if cfg.Mock {
		for name, app := range cfg.LaMetric.Apps {
			refs[lametric.AppName(name)] = widget.Ref{Package: app.Package, WidgetID: "mock"}
		}
		return refs, nil
	}

	installed, err := device.Apps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list device apps: %w", err)
	}
	for name, app := range cfg.LaMetric.Apps {
		dev, ok := installed[app.Package]
		if !ok {
			return nil, fmt.Errorf("app %s: package %s is not installed on the device", name, app.Package)
		}
		id, ok := dev.FirstWidgetID()
		if !ok {
			return nil, fmt.Errorf("app %s: package %s has no widget", name, app.Package)
		}
		refs[lametric.AppName(name)] = widget.Ref{Package: app.Package, WidgetID: id}
	}
	return refs, nil
}

// widgets holds every constructed widget, keyed by app name.
type widgets struct {
	all   map[lametric.AppName]widget.Widget
	music *widget.Music
	termo *widget.Termo
	offer *widget.Offer
	// subscription widgets in chain order, catch-all last
	subs []*widget.Subscriptions
}

type widgetDeps struct {
	refs      map[lametric.AppName]widget.Ref
	out       widget.Outbound
	registry  *subscriptions.Registry
	canceller widget.Canceller
	schedules widget.Schedules
	sub       widget.Subscriber
	player    widget.Player
	loc       *time.Location
}

func buildWidgets(ctx context.Context, cfg *config.Config, deps widgetDeps, logger *slog.Logger) (*widgets, error) {
	w := &widgets{all: make(map[lametric.AppName]widget.Widget)}
	live := &widget.LiveGames{}

	newSubs := func(app lametric.AppName, scope widget.Scope) error {
		store, err := deps.registry.Store(ctx, string(app))
		if err != nil {
			return fmt.Errorf("open store %s: %w", app, err)
		}
		s := widget.NewSubscriptions(app, deps.refs[app], deps.out, widget.SubscriptionConfig{
			Store:      store,
			Canceller:  deps.canceller,
			Schedules:  deps.schedules,
			Subscriber: deps.sub,
			Live:       live,
			Location:   deps.loc,
			Scope:      scope,
			Expiry:     cfg.Livescore.Expiry,
		}, logger)
		w.subs = append(w.subs, s)
		w.all[app] = s
		return nil
	}

	leagues := make([]string, 0, len(cfg.Livescore.Leagues))
	for name := range cfg.Livescore.Leagues {
		leagues = append(leagues, name)
	}
	slices.Sort(leagues)
	for _, name := range leagues {
		if err := newSubs(lametric.AppName(name), widget.Scope{Kind: widget.League, ID: cfg.Livescore.Leagues[name]}); err != nil {
			return nil, err
		}
	}
	if team := cfg.Livescore.Team; team.App != "" {
		if err := newSubs(lametric.AppName(team.App), widget.Scope{Kind: widget.Team, ID: team.ID}); err != nil {
			return nil, err
		}
	}
	if err := newSubs(lametric.Livescores, widget.Scope{Kind: widget.All}); err != nil {
		return nil, err
	}

	w.music = widget.NewMusic(ctx, deps.refs[lametric.Yanko], deps.out, deps.player, logger)
	w.all[lametric.Yanko] = w.music
	w.termo = widget.NewTermo(deps.refs[lametric.TermoApp], deps.out, cfg.MQTT.PrimaryLocation, logger)
	w.all[lametric.TermoApp] = w.termo
	w.offer = widget.NewOffer(deps.refs[lametric.Sure], deps.out, logger)
	w.all[lametric.Sure] = w.offer

	// anything else configured is rendered by the device itself
	for name := range cfg.LaMetric.Apps {
		app := lametric.AppName(name)
		if _, ok := w.all[app]; !ok {
			w.all[app] = widget.NewPassive(app, deps.refs[app], deps.out, logger)
		}
	}
	return w, nil
}

func buildRing(names []string, w *widgets, apps map[string]config.AppConfig) (*rotation.Ring, error) {
	items := make([]*rotation.Item, 0, len(names))
	for _, name := range names {
		wd, ok := w.all[lametric.AppName(name)]
		if !ok {
			return nil, fmt.Errorf("rotation entry %q has no widget", name)
		}
		duration := apps[name].Duration
		if duration <= 0 {
			duration = defaultItemDuration
		}
		items = append(items, rotation.NewItem(wd, duration, false))
	}
	return rotation.NewRing(items), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeBackend()
	store := storage.New(backend, logger)

	sportsClient := sports.New(sports.Config{
		Host:    cfg.Sports.Host,
		Group:   cfg.Sports.Group,
		Webhook: cfg.Sports.Webhook,
		Timeout: cfg.Sports.Timeout,
	}, logger)
	schedules := sports.NewScheduleCache(sportsClient, store, cfg.Sports.LeagueScheduleTTL, cfg.Sports.TeamScheduleTTL, logger)
	cancels := sports.NewCancelQueue(sportsClient, 0, logger)
	musicClient := music.New(music.Config{
		Host:    cfg.Music.Host,
		Token:   cfg.Music.Token,
		Timeout: cfg.Music.Timeout,
	}, logger)

	device := newDeviceClient(cfg, logger)
	sender := display.NewSender(device, cfg.LaMetric.QueueSize, cfg.LaMetric.Timeout, logger)

	refs, err := resolveRefs(ctx, cfg, device)
	if err != nil {
		return fmt.Errorf("resolve widgets: %w", err)
	}

	w, err := buildWidgets(ctx, cfg, widgetDeps{
		refs:      refs,
		out:       sender,
		registry:  subscriptions.NewRegistry(store, sportsClient, logger),
		canceller: cancels,
		schedules: schedules,
		sub:       sportsClient,
		player:    musicClient,
		loc:       loc,
	}, logger)
	if err != nil {
		return err
	}
	for _, s := range w.subs {
		s.UpdateFrames(ctx)
	}

	normal, err := buildRing(cfg.Display, w, cfg.LaMetric.Apps)
	if err != nil {
		return err
	}
	saver, err := buildRing(cfg.Screensaver, w, cfg.LaMetric.Apps)
	if err != nil {
		return err
	}

	events, err := bus.New(cfg.Rotation.BusBuffer, logger)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("Failed to close event bus", "error", err)
		}
	}()

	btns := buttons.New(logger)
	btns.Register(lametric.Livescores, w.all[lametric.Livescores].(*widget.Subscriptions))
	btns.Register(lametric.Yanko, w.music)

	chain := make([]router.Subscriber, 0, len(w.subs))
	refreshers := make([]poll.Refresher, 0, len(w.subs))
	jobs := cron.New(cron.Config{Location: loc, Hour: cfg.Livescore.CronHour}, logger)
	for _, s := range w.subs {
		chain = append(chain, s)
		refreshers = append(refreshers, s)
		if s.Name() != lametric.Livescores {
			jobs.Add(s)
		}
	}
	dispatcher := router.New(router.Config{
		Music:   w.music,
		Termo:   w.termo,
		Offer:   w.offer,
		Buttons: btns,
		Chain:   chain,
	}, logger)

	state := rotation.NewStateCache(device, loc, logger)
	scheduler := rotation.NewScheduler(normal, saver, state, logger)

	handler := &sutureslog.Handler{Logger: logger}
	root := suture.New("display-hub", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   10 * time.Second,
	})
	root.Add(sender)
	root.Add(cancels)
	root.Add(state)
	engine := rotation.NewEngine(events, dispatcher, scheduler, cfg.Rotation.Tick, logger)
	root.Add(engine)
	root.Add(poll.New(refreshers, engine, cfg.Poll.InPlay, cfg.Poll.Idle, logger))
	root.Add(jobs)
	root.Add(server.New(&server.Config{
		Publisher: events,
		Logger:    logger,
		Secret:    cfg.API.Secret,
		Devices:   cfg.API.Devices,
		Host:      cfg.API.Host,
		Port:      cfg.API.Port,
	}))
	if cfg.MQTT.Broker != "" {
		root.Add(sensors.New(sensors.Config{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		}, events, logger))
	}

	logger.Info("Display hub starting",
		"display", cfg.Display,
		"screensaver", cfg.Screensaver,
		"subscription_widgets", len(w.subs),
		"storage", cfg.Storage.Backend)
	return root.Serve(ctx)
}
