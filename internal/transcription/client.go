package transcription

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/scrubslab/scrubs/internal/config"
	"github.com/scrubslab/scrubs/pkg/logger"
)

// Client wraps the external speech-recognition collaborator. The model is a
// black box; the engine only consumes the word-level timestamps it emits.
type Client struct {
	client   openai.Client
	model    string
	language string
	logger   *logger.Logger
}

// verboseTranscription is the verbose_json response shape carrying
// word-level timestamps
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// NewClient creates a transcription client from the configuration
func NewClient(cfg config.TranscriptionConfig, log *logger.Logger) (*Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("transcription requires an OpenAI API key")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	return &Client{
		client:   client,
		model:    cfg.Model,
		language: cfg.Language,
		logger:   log.Named("transcription-client"),
	}, nil
}

// TranscribeFile sends an audio file for recognition and returns the
// ordered word list with fresh ids
func (c *Client) TranscribeFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModel(c.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	c.logger.Info("Transcribing audio file",
		logger.String("path", path),
		logger.String("model", c.model),
	)

	var verbose verboseTranscription
	if _, err := c.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&verbose)); err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	words := make([]Word, len(verbose.Words))
	for i, w := range verbose.Words {
		words[i] = Word{
			ID:    uuid.NewString(),
			Text:  w.Word,
			Start: w.Start,
			End:   w.End,
			// whisper does not report per-word confidence over the API
			Confidence: 1.0,
		}
	}

	language := verbose.Language
	if language == "" {
		language = c.language
	}

	c.logger.Info("Transcription complete",
		logger.Int("words", len(words)),
		logger.String("language", language),
	)

	return &Result{
		Words:    words,
		Text:     verbose.Text,
		Language: language,
	}, nil
}
