package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// streamReadSize is the read granularity for the response body. Smaller
// reads lower time-to-first-audio, larger reads cut per-chunk overhead.
const streamReadSize = 4096

// OpenAIConfig holds speech synthesis API settings.
type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	VoiceEnglish string
	VoiceChinese string
	Speed        float64
	Timeout      time.Duration
}

// DefaultOpenAIConfig returns sensible defaults
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:      "https://api.openai.com/v1",
		Model:        "tts-1",
		VoiceEnglish: "nova",
		VoiceChinese: "shimmer",
		Speed:        1.0,
		Timeout:      60 * time.Second,
	}
}

// OpenAIProvider synthesizes speech through an OpenAI-compatible
// /audio/speech endpoint, streaming MP3 bytes as they arrive.
type OpenAIProvider struct {
	config OpenAIConfig
	client *http.Client
	logger zerolog.Logger
}

// NewOpenAIProvider creates a synthesis provider.
func NewOpenAIProvider(config OpenAIConfig, logger zerolog.Logger) *OpenAIProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Model == "" {
		config.Model = "tts-1"
	}
	if config.VoiceEnglish == "" {
		config.VoiceEnglish = "nova"
	}
	if config.VoiceChinese == "" {
		config.VoiceChinese = "shimmer"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &OpenAIProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "openai-tts").Logger(),
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// SynthesizeStream posts the text and streams the MP3 response body in
// chunks as it downloads. The voice follows the reply's language.
func (p *OpenAIProvider) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("tts: API key not configured")
	}

	voice := p.config.VoiceEnglish
	if DetectLanguage(text) == "zh" {
		voice = p.config.VoiceChinese
	}

	body, err := json.Marshal(speechRequest{
		Model:          p.config.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
		Speed:          p.config.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().Str("voice", voice).Int("textLen", len(text)).Msg("Sending synthesis request")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts: send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(errBody)).Msg("Synthesis request failed")
		return nil, fmt.Errorf("tts: API error: %s", string(errBody))
	}

	chunks := make(chan []byte, 8)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		start := time.Now()
		total := 0
		buf := make([]byte, streamReadSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				total += n
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					p.logger.Error().Err(err).Msg("Synthesis stream aborted")
				}
				p.logger.Info().
					Int("audioBytes", total).
					Dur("time", time.Since(start)).
					Msg("Synthesis stream finished")
				return
			}
		}
	}()

	return chunks, nil
}
