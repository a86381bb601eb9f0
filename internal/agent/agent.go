// Package agent assembles the voice pipeline and runs it.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vocalisproject/vocalis/internal/asr"
	"github.com/vocalisproject/vocalis/internal/audio"
	"github.com/vocalisproject/vocalis/internal/bus"
	"github.com/vocalisproject/vocalis/internal/capture"
	"github.com/vocalisproject/vocalis/internal/config"
	"github.com/vocalisproject/vocalis/internal/guardrail"
	"github.com/vocalisproject/vocalis/internal/llm"
	"github.com/vocalisproject/vocalis/internal/player"
	"github.com/vocalisproject/vocalis/internal/search"
	"github.com/vocalisproject/vocalis/internal/session"
	"github.com/vocalisproject/vocalis/internal/tts"
	"github.com/vocalisproject/vocalis/internal/verify"
	"github.com/vocalisproject/vocalis/internal/vision"
)

// Agent owns every pipeline component and their shared event bus.
type Agent struct {
	config   *config.Config
	logger   zerolog.Logger
	eventBus *bus.EventBus

	loop      *capture.Loop
	player    *player.Player
	speaker   *player.Speaker
	scheduler *Scheduler
	sessions  *session.Manager
}

// New builds the full pipeline from configuration. The microphone and
// speaker are opened here; Close releases them.
func New(cfg *config.Config, logger zerolog.Logger) (*Agent, error) {
	eventBus := bus.NewEventBus()

	// Playback side.
	speaker, err := player.NewSpeaker(cfg.Audio.PlaybackRate)
	if err != nil {
		return nil, fmt.Errorf("open speaker: %w", err)
	}
	pl := player.New(player.Config{
		SampleRate: cfg.Audio.PlaybackRate,
		Format:     "mp3",
	}, speaker, eventBus, logger)

	// Understanding and reply side.
	transcriber := asr.NewWhisperProvider(asr.WhisperConfig{
		BaseURL:    cfg.ASR.BaseURL,
		APIKey:     cfg.ASR.APIKey,
		Model:      cfg.ASR.Model,
		Language:   cfg.ASR.Language,
		SampleRate: cfg.Audio.SampleRate,
		Timeout:    cfg.ASR.Timeout,
	}, logger)

	generator, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		speaker.Close()
		return nil, fmt.Errorf("init dialogue model: %w", err)
	}

	synthesizer := tts.NewOpenAIProvider(tts.OpenAIConfig{
		BaseURL:      cfg.TTS.BaseURL,
		APIKey:       cfg.TTS.APIKey,
		Model:        cfg.TTS.Model,
		VoiceEnglish: cfg.TTS.VoiceEnglish,
		VoiceChinese: cfg.TTS.VoiceChinese,
		Speed:        cfg.TTS.Speed,
		Timeout:      cfg.TTS.Timeout,
	}, logger)

	verifier := verify.New(verify.Config{
		ServerURL:     cfg.Verify.ServerURL,
		ReferencePath: cfg.Verify.ReferencePath,
		Threshold:     cfg.Verify.Threshold,
	}, logger)

	guard := guardrail.New(guardrail.Config{
		SupportedLanguages: cfg.Guardrail.SupportedLanguages,
		UnspeakablePattern: cfg.Guardrail.UnspeakablePattern,
		SpecialPattern:     cfg.Guardrail.SpecialPattern,
		UnsafeKeywords:     cfg.Guardrail.UnsafeKeywords,
	}, logger)

	sessions := session.NewManager(session.Config{
		Timeout:    cfg.Session.Timeout,
		EndPhrases: cfg.Session.EndPhrases,
		MaxTurns:   cfg.Session.MaxTurns,
	}, eventBus, logger)

	tools := NewRegistry(logger)
	tools.RegisterVisionTool(vision.NewClient(vision.Config{
		ServerURL: cfg.Vision.ServerURL,
		Timeout:   cfg.Vision.Timeout,
	}, logger))
	tools.RegisterSearchTool(search.NewEngine(search.Config{
		Endpoint:      cfg.Search.Endpoint,
		DefaultEngine: cfg.Search.DefaultEngine,
		NumResults:    cfg.Search.NumResults,
		Timeout:       cfg.Search.Timeout,
	}, logger))

	scheduler := NewScheduler(SchedulerConfig{
		SystemPrompt: cfg.LLM.SystemPrompt,
		MinChunkSize: cfg.Audio.MinChunkSize,
	}, transcriber, generator, synthesizer, verifier, sessions, pl, guard, tools, eventBus, logger)

	// Capture side.
	classifier := audio.NewVAD(&audio.VADConfig{
		Threshold:       cfg.VAD.Threshold,
		SmoothingFrames: cfg.VAD.SmoothingFrames,
	})
	segmenter := audio.NewSegmenter(audio.SegmenterConfig{
		FrameDuration:    time.Duration(cfg.Audio.FrameDurationMs) * time.Millisecond,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
	}, classifier, eventBus, logger)

	device, err := capture.NewDevice(capture.DeviceConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FrameDurationMs: cfg.Audio.FrameDurationMs,
	})
	if err != nil {
		speaker.Close()
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	loop := capture.NewLoop(capture.LoopConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FrameDuration:   time.Duration(cfg.Audio.FrameDurationMs) * time.Millisecond,
		InterruptSpeech: cfg.Audio.InterruptSpeech,
	}, device, segmenter, pl, scheduler, logger)

	return &Agent{
		config:    cfg,
		logger:    logger.With().Str("component", "agent").Logger(),
		eventBus:  eventBus,
		loop:      loop,
		player:    pl,
		speaker:   speaker,
		scheduler: scheduler,
		sessions:  sessions,
	}, nil
}

// Bus exposes the event bus so callers can observe pipeline events.
func (a *Agent) Bus() *bus.EventBus {
	return a.eventBus
}

// Run captures audio until ctx is canceled. In-flight playback is
// interrupted on shutdown.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info().Str("session", a.sessions.ID()).Msg("Vocalis is listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.player.Interrupt()
		return nil
	})
	return g.Wait()
}

// Close drops all bus subscribers and releases the audio devices.
func (a *Agent) Close() error {
	a.eventBus.Clear()
	return a.speaker.Close()
}
