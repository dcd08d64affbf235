package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/yegors/co-gci/internal/api"
	"github.com/yegors/co-gci/internal/composer"
	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/internal/radio"
	"github.com/yegors/co-gci/internal/session"
	"github.com/yegors/co-gci/internal/speech"
	"github.com/yegors/co-gci/internal/storage/sqlite"
	"github.com/yegors/co-gci/internal/telemetry"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

// phraseCacheSize bounds the synthesized-audio LRU. Fixed phraseology means
// a small cache absorbs most repeats.
const phraseCacheSize = 128

func main() {
	configPath := flag.String("config", "config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "co-gci: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting GCI controller",
		logger.String("callsign", cfg.Bot.Callsign),
		logger.String("coalition", cfg.Bot.Coalition),
		logger.String("frequency", cfg.Radio.Frequency()))

	db, err := sql.Open("sqlite", cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	callStorage := sqlite.NewCallStorage(db, log)

	store := tracks.NewStore(cfg.Telemetry.StalenessWindow(), log)
	ingest := telemetry.NewService(cfg.Telemetry, cfg.Bot.Coalition, store, log)
	comp := composer.New(store, cfg.Bot.Callsign, cfg.GCI.SearchRadiusNM, log)

	speechClient := speech.NewClient(cfg.OpenAI, log)
	synthesizer, err := speech.NewCachingSynthesizer(speechClient, phraseCacheSize, log)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer cache: %w", err)
	}

	radioClient := radio.NewClient(cfg.Radio, cfg.Bot.Callsign, log)
	dispatcher := session.NewDispatcher(cfg.Session, cfg.Bot.Callsign,
		radioClient.Events(), comp, speechClient, synthesizer, radioClient, callStorage, log)

	router := api.NewRouter(store, ingest, dispatcher, callStorage, log)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingest.Run(ctx) })
	g.Go(func() error { return radioClient.Run(ctx) })
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error {
		log.Info("Status API listening", logger.String("addr", cfg.Server.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
