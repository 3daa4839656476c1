package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/api"
	"github.com/yegors/superplane/internal/config"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/internal/search"
	"github.com/yegors/superplane/internal/storage/sqlite"
	"github.com/yegors/superplane/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.toml", "Path to configuration file, empty for defaults")
	once := flag.Bool("once", false, "Run a single search, print the outcome and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, log); err != nil {
		log.Error("Exiting", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once bool, log *logger.Logger) error {
	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	favorites, err := sqlite.NewFavoritesStorage(db, log)
	if err != nil {
		return err
	}
	settings, err := sqlite.NewSettingsStorage(db, cfg.Search.RadiusKm, log)
	if err != nil {
		return err
	}
	history, err := sqlite.NewHistoryStorage(db, log)
	if err != nil {
		return err
	}

	device := position.NewPushSource("device", log)
	sources := []position.Source{device}
	var station *position.StaticSource
	if cfg.Station.Enabled {
		station = position.NewStaticSource(cfg.Station.Name,
			cfg.Station.Latitude, cfg.Station.Longitude, cfg.Station.AccuracyM,
			cfg.Station.Interval(), log)
		defer station.Close()
		sources = append(sources, station)
	}
	tracker := position.NewTracker(log, sources...)

	client := adsb.NewClient(cfg.ADSB, log)

	provider := search.NewProvider(ctx, tracker, client, search.TaskConfig{
		Settle:       cfg.Search.SettleInterval(),
		RadiusKm:     cfg.Search.RadiusKm,
		FetchTimeout: cfg.Search.FetchTimeout(),
	}, log)
	provider.SetRadiusSource(settings)
	provider.SetHistory(history)

	log.Info("Superplane starting",
		logger.String("feed", cfg.ADSB.SourceType),
		logger.Bool("station", cfg.Station.Enabled),
		logger.Float64("default_radius_km", cfg.Search.RadiusKm),
		logger.String("db", cfg.Storage.SQLitePath))

	if once {
		return searchOnce(ctx, provider)
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.Services{
			Provider:  provider,
			Tracker:   tracker,
			Device:    device,
			Favorites: favorites,
			Settings:  settings,
			History:   history,
		}, cfg, log).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := provider.Close(shutdownCtx); err != nil {
			log.Warn("Search did not stop in time", logger.Error(err))
		}
		tracker.Stop()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// searchOnce runs one search and prints its outcome as JSON
func searchOnce(ctx context.Context, provider *search.Provider) error {
	task, _, err := provider.Start(ctx)
	if err != nil {
		return err
	}

	o, err := task.Wait(ctx)
	if err != nil {
		return err
	}

	out := struct {
		search.Outcome
		Properties []adsb.Property `json:"properties,omitempty"`
	}{Outcome: o}
	if o.Aircraft != nil {
		out.Properties = o.Aircraft.Properties()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if o.Kind == search.OutcomeNetworkFailure {
		return fmt.Errorf("search failed: %s", o.Error)
	}
	return nil
}
