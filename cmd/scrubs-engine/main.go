package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrubslab/scrubs/internal/api"
	"github.com/scrubslab/scrubs/internal/config"
	"github.com/scrubslab/scrubs/internal/playback"
	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/internal/storage/sqlite"
	"github.com/scrubslab/scrubs/internal/transcription"
	"github.com/scrubslab/scrubs/internal/vad"
	"github.com/scrubslab/scrubs/internal/websocket"
	"github.com/scrubslab/scrubs/pkg/logger"
)

const defaultConfigPath = "scrubs.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Engine starting",
		logger.String("config_path", *configPath),
		logger.String("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		logger.Int("tick_rate_hz", cfg.Playback.TickRateHz),
	)

	db, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Core state
	store := regions.NewStore(log)
	index := regions.NewCache(store)
	scheduler := playback.NewScheduler(store, index, playback.NopOutput{}, cfg.Playback.SkipEpsilonMs/1000.0, log)
	vadService := vad.NewService(store, log)

	// Persistence
	regionStorage := sqlite.NewRegionStorage(db, log)
	transcriptionStorage := sqlite.NewTranscriptionStorage(db, log)

	// Transcription is optional; the engine runs without an API key.
	var transcriber *transcription.Client
	if cfg.Transcription.OpenAIAPIKey != "" {
		transcriber, err = transcription.NewClient(cfg.Transcription, log)
		if err != nil {
			log.Error("Failed to initialize transcription client", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Warn("No OpenAI API key configured, transcription disabled")
	}

	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	router := api.NewRouter(store, index, scheduler, vadService, transcriber, regionStorage, transcriptionStorage, wsServer, cfg, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runTicker(ctx, cfg.Playback.TickRateHz, scheduler, wsServer, log)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping HTTP server", logger.Error(err))
		}
		wsServer.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Engine stopped with error", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Engine stopped")
}

// runTicker drives the playback scheduler at the configured cadence and
// publishes position updates to connected clients.
func runTicker(ctx context.Context, tickRateHz int, scheduler *playback.Scheduler, wsServer *websocket.Server, log *logger.Logger) error {
	interval := time.Second / time.Duration(tickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			if scheduler.State() != playback.StatePlaying {
				continue
			}
			scheduler.Advance(elapsed)

			if wsServer.ClientCount() > 0 {
				wsServer.Broadcast("playback_position", scheduler.Status())
			}
		}
	}
}
