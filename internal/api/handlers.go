package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scrubslab/scrubs/internal/audio"
	"github.com/scrubslab/scrubs/internal/config"
	"github.com/scrubslab/scrubs/internal/playback"
	"github.com/scrubslab/scrubs/internal/regions"
	"github.com/scrubslab/scrubs/internal/storage/sqlite"
	"github.com/scrubslab/scrubs/internal/transcription"
	"github.com/scrubslab/scrubs/internal/vad"
	"github.com/scrubslab/scrubs/internal/websocket"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// Handler handles API requests
type Handler struct {
	store                *regions.Store
	index                *regions.Cache
	scheduler            *playback.Scheduler
	vadService           *vad.Service
	transcriber          *transcription.Client
	regionStorage        *sqlite.RegionStorage
	transcriptionStorage *sqlite.TranscriptionStorage
	wsServer             *websocket.Server
	config               *config.Config
	logger               *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
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
) *Handler {
	return &Handler{
		store:                store,
		index:                index,
		scheduler:            scheduler,
		vadService:           vadService,
		transcriber:          transcriber,
		regionStorage:        regionStorage,
		transcriptionStorage: transcriptionStorage,
		wsServer:             wsServer,
		config:               config,
		logger:               logger.Named("api-handler"),
	}
}

// GetHealth returns a basic health response
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Analysis ──

type analyzeRequest struct {
	AudioPath string       `json:"audioPath"`
	Options   *vad.Options `json:"options,omitempty"`
}

// StartAnalysis loads the audio file and triggers a background analysis run
func (h *Handler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.AudioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audioPath is required")
		return
	}

	opts := vad.OptionsFromConfig(h.config.VAD)
	if req.Options != nil {
		opts = *req.Options
	}

	buf, err := audio.ReadWAVFile(req.AudioPath)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	runID, err := h.vadService.Analyze(r.Context(), buf.Samples, buf.SampleRate, opts)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.scheduler.SetTrackDuration(buf.Duration())

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"runId":    runID,
		"duration": buf.Duration(),
	})
}

// GetAnalysisResult returns the most recently applied analysis result
func (h *Handler) GetAnalysisResult(w http.ResponseWriter, r *http.Request) {
	res, ok := h.vadService.Result()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no analysis result available")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ── Regions ──

// GetRegions returns all regions and the store revision
func (h *Handler) GetRegions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions":  h.store.Regions(),
		"revision": h.store.Revision(),
		"duration": h.store.TrackDuration(),
	})
}

type resizeRequest struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// ResizeRegion clamps-and-applies an edge edit on a region
func (h *Handler) ResizeRegion(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.applyRegionEdit(w, chi.URLParam(r, "id"), func(id string) bool {
		return h.store.Resize(id, req.Start, req.End)
	})
}

type moveRequest struct {
	Delta float64 `json:"delta"`
}

// MoveRegion shifts a region by a delta, duration preserved where possible
func (h *Handler) MoveRegion(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.applyRegionEdit(w, chi.URLParam(r, "id"), func(id string) bool {
		return h.store.Move(id, req.Delta)
	})
}

// EnableRegion marks a region as silence again
func (h *Handler) EnableRegion(w http.ResponseWriter, r *http.Request) {
	h.applyRegionEdit(w, chi.URLParam(r, "id"), h.store.Enable)
}

// DisableRegion restores the audio under a region
func (h *Handler) DisableRegion(w http.ResponseWriter, r *http.Request) {
	h.applyRegionEdit(w, chi.URLParam(r, "id"), h.store.Disable)
}

func (h *Handler) applyRegionEdit(w http.ResponseWriter, id string, edit func(string) bool) {
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "region id is required")
		return
	}
	if !edit(id) {
		h.writeError(w, http.StatusNotFound, "region not found: "+id)
		return
	}

	h.wsServer.Broadcast("regions_changed", map[string]interface{}{
		"revision": h.store.Revision(),
	})
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions":  h.store.Regions(),
		"revision": h.store.Revision(),
	})
}

type saveRegionsRequest struct {
	AudioPath string `json:"audioPath"`
}

// SaveRegions persists the current region set for an audio file
func (h *Handler) SaveRegions(w http.ResponseWriter, r *http.Request) {
	var req saveRegionsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.AudioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audioPath is required")
		return
	}

	set := &sqlite.RegionSet{
		AudioPath:     req.AudioPath,
		TrackDuration: h.store.TrackDuration(),
		Regions:       h.store.Regions(),
		SavedAt:       time.Now().UTC(),
	}
	if err := h.regionStorage.SaveRegionSet(set); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"saved": len(set.Regions)})
}

// LoadRegions restores a persisted region set into the store
func (h *Handler) LoadRegions(w http.ResponseWriter, r *http.Request) {
	audioPath := r.URL.Query().Get("audio_path")
	if audioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audio_path query parameter is required")
		return
	}

	set, err := h.regionStorage.LoadRegionSet(audioPath)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if set == nil {
		h.writeError(w, http.StatusNotFound, "no saved regions for "+audioPath)
		return
	}

	h.store.Restore(set.Regions, set.TrackDuration)
	h.scheduler.SetTrackDuration(set.TrackDuration)
	h.wsServer.Broadcast("regions_changed", map[string]interface{}{
		"revision": h.store.Revision(),
	})

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions":  h.store.Regions(),
		"revision": h.store.Revision(),
		"duration": set.TrackDuration,
	})
}

// ── Silence index queries ──

// QuerySilence answers point and skip queries at a given time, for rendering
func (h *Handler) QuerySilence(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "t query parameter must be a number")
		return
	}

	idx := h.index.Index()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"inSilence":  idx.InSilence(t),
		"nextSpeech": idx.NextSpeechTime(t),
		"prevSpeech": idx.PrevSpeechTime(t),
		"revision":   idx.Revision(),
	})
}

// ── Playback ──

// StartPlayback begins or resumes playback
func (h *Handler) StartPlayback(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Start()
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// StopPlayback halts playback and rewinds
func (h *Handler) StopPlayback(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// PausePlayback halts playback keeping the position
func (h *Handler) PausePlayback(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Pause()
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

type seekRequest struct {
	Position float64 `json:"position"`
}

// SeekPlayback moves the play position, snapping forward out of silence
// while skip-silence is active
func (h *Handler) SeekPlayback(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.scheduler.Seek(req.Position)
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

type skipSilenceRequest struct {
	Enabled bool `json:"enabled"`
}

// SetSkipSilence toggles silence skipping
func (h *Handler) SetSkipSilence(w http.ResponseWriter, r *http.Request) {
	var req skipSilenceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.scheduler.SetSkipSilence(req.Enabled)
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

// SetSpeed sets the playback rate; negative plays in reverse
func (h *Handler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.scheduler.SetSpeed(req.Speed)
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

type loopRequest struct {
	Enabled bool    `json:"enabled"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// SetLoop configures loop boundaries
func (h *Handler) SetLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.scheduler.SetLoop(req.Enabled, req.Start, req.End)
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// GetPlaybackStatus returns the scheduler snapshot for display
func (h *Handler) GetPlaybackStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// ── Transcriptions ──

type transcribeRequest struct {
	AudioPath string `json:"audioPath"`
}

// Transcribe runs the external recognizer over an audio file and persists
// the resulting metadata
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		h.writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	var req transcribeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.AudioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audioPath is required")
		return
	}

	result, err := h.transcriber.TranscribeFile(r.Context(), req.AudioPath)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	meta := &transcription.Metadata{
		AudioPath: req.AudioPath,
		Words:     result.Words,
		FullText:  result.Text,
		Language:  result.Language,
		SavedAt:   time.Now().UTC(),
	}
	if err := h.transcriptionStorage.SaveMetadata(meta); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, meta)
}

// GetTranscription returns the saved metadata for an audio file
func (h *Handler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.loadMetadata(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// SaveTranscriptionMetadata persists externally edited metadata (offsets,
// per-word adjustments)
func (h *Handler) SaveTranscriptionMetadata(w http.ResponseWriter, r *http.Request) {
	var meta transcription.Metadata
	if !h.decodeJSON(w, r, &meta) {
		return
	}
	if meta.AudioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audioPath is required")
		return
	}
	if err := h.transcriptionStorage.SaveMetadata(&meta); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GetAdjustedWords returns the word list with global and per-word offsets
// applied, for search and highlighting
func (h *Handler) GetAdjustedWords(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.loadMetadata(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"words": transcription.AdjustWords(meta.Words, *meta),
	})
}

func (h *Handler) loadMetadata(w http.ResponseWriter, r *http.Request) (*transcription.Metadata, bool) {
	audioPath := r.URL.Query().Get("audio_path")
	if audioPath == "" {
		h.writeError(w, http.StatusBadRequest, "audio_path query parameter is required")
		return nil, false
	}

	meta, err := h.transcriptionStorage.LoadMetadata(audioPath)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if meta == nil {
		h.writeError(w, http.StatusNotFound, "no transcription for "+audioPath)
		return nil, false
	}
	return meta, true
}

// HandleWebSocket upgrades to the event feed
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleWS(w, r)
}
