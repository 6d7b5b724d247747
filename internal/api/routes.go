package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scrubslab/scrubs/internal/config"
	"github.com/scrubslab/scrubs/internal/playback"
	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/internal/storage/sqlite"
	"github.com/scrubslab/scrubs/internal/transcription"
	"github.com/scrubslab/scrubs/internal/vad"
	"github.com/scrubslab/scrubs/internal/websocket"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// Router is the API router
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	store *regions.Store,
	index *regions.Cache,
	scheduler *playback.Scheduler,
	vadService *vad.Service,
	transcriber *transcription.Client,
	regionStorage *sqlite.RegionStorage,
	transcriptionStorage *sqlite.TranscriptionStorage,
	wsServer *websocket.Server,
	config *config.Config,
	logger *logger.Logger,
) *Router {
	return &Router{
		handler: NewHandler(store, index, scheduler, vadService, transcriber, regionStorage, transcriptionStorage, wsServer, config, logger),
		config:  config,
		logger:  logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(requestLogger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(corsHeaders(r.config.Server))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Analysis routes
		router.Post("/analysis", r.handler.StartAnalysis)
		router.Get("/analysis/result", r.handler.GetAnalysisResult)

		// Region routes
		router.Get("/regions", r.handler.GetRegions)
		router.Post("/regions/{id}/resize", r.handler.ResizeRegion)
		router.Post("/regions/{id}/move", r.handler.MoveRegion)
		router.Post("/regions/{id}/enable", r.handler.EnableRegion)
		router.Post("/regions/{id}/disable", r.handler.DisableRegion)
		router.Post("/regions/save", r.handler.SaveRegions)
		router.Get("/regions/load", r.handler.LoadRegions)

		// Silence index queries
		router.Get("/silence", r.handler.QuerySilence)

		// Playback routes
		router.Post("/playback/start", r.handler.StartPlayback)
		router.Post("/playback/stop", r.handler.StopPlayback)
		router.Post("/playback/pause", r.handler.PausePlayback)
		router.Post("/playback/seek", r.handler.SeekPlayback)
		router.Post("/playback/skip-silence", r.handler.SetSkipSilence)
		router.Post("/playback/speed", r.handler.SetSpeed)
		router.Post("/playback/loop", r.handler.SetLoop)
		router.Get("/playback/status", r.handler.GetPlaybackStatus)

		// Transcription routes
		router.Post("/transcriptions", r.handler.Transcribe)
		router.Get("/transcriptions", r.handler.GetTranscription)
		router.Post("/transcriptions/metadata", r.handler.SaveTranscriptionMetadata)
		router.Get("/transcriptions/words", r.handler.GetAdjustedWords)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
