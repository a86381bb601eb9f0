package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhisperConfig holds whisper-compatible transcription API settings.
type WhisperConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string // optional hint, empty means auto-detect
	SampleRate int
	Timeout    time.Duration
}

// DefaultWhisperConfig returns sensible defaults
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		BaseURL:    "https://api.groq.com/openai/v1",
		Model:      "whisper-large-v3-turbo",
		SampleRate: 16000,
		Timeout:    30 * time.Second,
	}
}

// WhisperProvider transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint.
type WhisperProvider struct {
	config WhisperConfig
	client *http.Client
	logger zerolog.Logger
}

// NewWhisperProvider creates a transcription provider.
func NewWhisperProvider(config WhisperConfig, logger zerolog.Logger) *WhisperProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.groq.com/openai/v1"
	}
	if config.Model == "" {
		config.Model = "whisper-large-v3-turbo"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &WhisperProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "whisper").Logger(),
	}
}

// Transcribe uploads the utterance as a WAV file and returns the
// recognized text, trimmed of surrounding whitespace.
func (p *WhisperProvider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	start := time.Now()

	if p.config.APIKey == "" {
		return "", fmt.Errorf("asr: API key not configured")
	}
	if len(pcm) == 0 {
		return "", ErrAudioTooShort
	}

	wavData := encodeWAV(pcm, p.config.SampleRate, 1)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", p.config.Model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if p.config.Language != "" {
		if err := writer.WriteField("language", p.config.Language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	p.logger.Debug().Int("audioBytes", len(pcm)).Msg("Sending audio for transcription")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Transcription API error")
		return "", fmt.Errorf("transcription API error: %s", string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	p.logger.Info().Str("text", text).Dur("time", time.Since(start)).Msg("Transcription complete")
	return text, nil
}

// encodeWAV wraps raw 16-bit PCM in a RIFF/WAVE header.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bitsPerSample := 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}
