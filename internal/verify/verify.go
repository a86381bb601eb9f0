// Package verify gates utterances on speaker identity.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Verifier decides whether an utterance belongs to the enrolled speaker.
type Verifier interface {
	Verify(ctx context.Context, pcm []byte) bool
}

// Config holds speaker verification settings.
type Config struct {
	ServerURL     string
	ReferencePath string // enrolled reference audio on disk
	Threshold     float64
	Timeout       time.Duration
}

// SpeakerVerifier scores utterances against a reference voice through an
// external embedding service. Verification fails open: when the service is
// unreachable or no reference is enrolled, every utterance is accepted. A
// broken verifier must never silence the user.
type SpeakerVerifier struct {
	config    Config
	client    *http.Client
	logger    zerolog.Logger
	reference []byte
}

// New creates a speaker verifier. The reference audio is loaded once at
// construction; a missing file simply disables verification.
func New(config Config, logger zerolog.Logger) *SpeakerVerifier {
	if config.Threshold <= 0 {
		config.Threshold = 0.35
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	v := &SpeakerVerifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "verify").Logger(),
	}

	if config.ReferencePath != "" {
		ref, err := os.ReadFile(config.ReferencePath)
		if err != nil {
			v.logger.Warn().Err(err).Str("path", config.ReferencePath).
				Msg("Reference audio unavailable, verification disabled")
		} else {
			v.reference = ref
		}
	}
	return v
}

// Enabled reports whether verification will actually score utterances.
func (v *SpeakerVerifier) Enabled() bool {
	return v.config.ServerURL != "" && len(v.reference) > 0
}

// Verify scores the utterance against the reference voice.
func (v *SpeakerVerifier) Verify(ctx context.Context, pcm []byte) bool {
	if !v.Enabled() {
		return true
	}

	score, err := v.score(ctx, pcm)
	if err != nil {
		v.logger.Warn().Err(err).Msg("Verification unavailable, accepting utterance")
		return true
	}

	accepted := score >= v.config.Threshold
	v.logger.Debug().
		Float64("score", score).
		Float64("threshold", v.config.Threshold).
		Bool("accepted", accepted).
		Msg("Speaker verified")
	return accepted
}

func (v *SpeakerVerifier) score(ctx context.Context, pcm []byte) (float64, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "utterance.pcm")
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(pcm); err != nil {
		return 0, err
	}
	ref, err := writer.CreateFormFile("reference", "reference.wav")
	if err != nil {
		return 0, err
	}
	if _, err := ref.Write(v.reference); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	url := strings.TrimRight(v.config.ServerURL, "/") + "/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("verification service error: %s", string(body))
	}

	var result struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("parse verification response: %w", err)
	}
	return result.Score, nil
}
