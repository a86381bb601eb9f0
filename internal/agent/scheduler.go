package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vocalisproject/vocalis/internal/asr"
	"github.com/vocalisproject/vocalis/internal/audio"
	"github.com/vocalisproject/vocalis/internal/bus"
	"github.com/vocalisproject/vocalis/internal/guardrail"
	"github.com/vocalisproject/vocalis/internal/llm"
	"github.com/vocalisproject/vocalis/internal/session"
	"github.com/vocalisproject/vocalis/internal/tts"
	"github.com/vocalisproject/vocalis/internal/verify"
)

// StreamPlayer plays a synthesis stream to completion or interruption.
type StreamPlayer interface {
	PlayStream(ctx context.Context, sb *audio.StreamBuffer)
}

// SchedulerConfig holds dialogue turn settings.
type SchedulerConfig struct {
	SystemPrompt string
	MinChunkSize int    // playback buffer release threshold
	Farewell     string // spoken when the user says goodbye
}

// Scheduler runs at most one dialogue turn at a time. A new utterance
// arriving while a turn is in flight is dropped, not queued; the capture
// side interrupts playback separately when the user talks over it.
type Scheduler struct {
	config      SchedulerConfig
	transcriber asr.Transcriber
	generator   llm.Generator
	synthesizer tts.Synthesizer
	verifier    verify.Verifier
	sessions    *session.Manager
	player      StreamPlayer
	guard       *guardrail.Guard
	tools       *Registry
	eventBus    *bus.EventBus
	logger      zerolog.Logger

	busy atomic.Bool
}

// NewScheduler wires a dialogue scheduler.
func NewScheduler(
	config SchedulerConfig,
	transcriber asr.Transcriber,
	generator llm.Generator,
	synthesizer tts.Synthesizer,
	verifier verify.Verifier,
	sessions *session.Manager,
	player StreamPlayer,
	guard *guardrail.Guard,
	tools *Registry,
	eventBus *bus.EventBus,
	logger zerolog.Logger,
) *Scheduler {
	if config.MinChunkSize <= 0 {
		config.MinChunkSize = 3200
	}
	if config.Farewell == "" {
		config.Farewell = "Goodbye! Talk to you next time."
	}

	return &Scheduler{
		config:      config,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		verifier:    verifier,
		sessions:    sessions,
		player:      player,
		guard:       guard,
		tools:       tools,
		eventBus:    eventBus,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Busy reports whether a turn is currently in flight.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Submit starts a turn for the utterance unless one is already running.
// It never blocks; the turn runs on its own goroutine under ctx, so
// canceling ctx aborts the in-flight turn.
func (s *Scheduler) Submit(ctx context.Context, pcm []byte) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn().Int("bytes", len(pcm)).Msg("Turn in flight, utterance dropped")
		if s.eventBus != nil {
			s.eventBus.Publish(bus.Event{
				Type: bus.EventTypeTurnDropped,
				Data: map[string]any{"bytes": len(pcm)},
			})
		}
		return false
	}

	go func() {
		defer s.busy.Store(false)
		s.runTurn(ctx, pcm)
	}()
	return true
}

// runTurn drives one utterance through the full pipeline.
func (s *Scheduler) runTurn(ctx context.Context, pcm []byte) {
	turnID := uuid.NewString()
	start := time.Now()
	logger := s.logger.With().Str("turn", turnID).Logger()

	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTurnStarted,
			Data: map[string]any{"turn": turnID, "bytes": len(pcm)},
		})
	}

	if s.verifier != nil && !s.verifier.Verify(ctx, pcm) {
		logger.Info().Msg("Utterance rejected by speaker verification")
		return
	}

	text, err := s.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		s.failTurn(turnID, "transcribe", err)
		return
	}
	if text == "" {
		logger.Debug().Msg("Empty transcription, turn skipped")
		return
	}

	logger.Info().Str("text", text).Dur("asr", time.Since(start)).Msg("User said")
	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTranscript,
			Data: map[string]any{"turn": turnID, "text": text},
		})
	}

	rotated, goodbye := s.sessions.CheckAndRotate(text)
	if rotated {
		logger.Info().Bool("goodbye", goodbye).Msg("Session rotated before reply")
	}
	if goodbye {
		s.speak(ctx, logger, s.config.Farewell)
		s.completeTurn(turnID, start)
		return
	}

	// The user message is recorded before the model call and stays in
	// history even when the turn fails afterwards.
	s.sessions.Append(llm.Message{Role: "user", Content: text})

	reply, err := s.converse(ctx, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Reply generation failed")
		s.failTurn(turnID, "generate", err)
		return
	}

	ok, message, cleaned := s.guard.ValidateAndClean(reply)
	spoken := cleaned
	if !ok {
		logger.Warn().Str("substitute", message).Msg("Reply replaced by guardrail")
		spoken = message
	}

	genAt := time.Now()
	s.speak(ctx, logger, spoken)

	s.sessions.Append(llm.Message{Role: "assistant", Content: spoken})
	s.sessions.Touch()

	logger.Info().
		Dur("total", time.Since(start)).
		Dur("speak", time.Since(genAt)).
		Msg("Turn completed")
	s.completeTurn(turnID, start)
}

// converse runs the completion over the session history, which already
// ends with the user's message, allowing one bounded round of tool calls.
func (s *Scheduler) converse(ctx context.Context, logger zerolog.Logger) (string, error) {
	messages := []llm.Message{{Role: "system", Content: s.config.SystemPrompt}}
	messages = append(messages, s.sessions.History()...)

	var defs []llm.Tool
	if s.tools != nil {
		defs = s.tools.Definitions()
	}

	reply, err := s.generator.Generate(ctx, messages, defs)
	if err != nil {
		return "", err
	}
	if len(reply.ToolCalls) == 0 {
		return reply.Content, nil
	}

	// One tool round: execute the requested tools, then ask again without
	// offering tools so the model must answer.
	messages = append(messages, llm.Message{
		Role:      "assistant",
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
	})
	for _, call := range reply.ToolCalls {
		result := s.tools.Execute(ctx, call)
		logger.Debug().Str("tool", call.Name).Int("resultLen", len(result)).Msg("Tool result")
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    result,
			ToolCallID: call.ID,
		})
	}

	final, err := s.generator.Generate(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return final.Content, nil
}

// speak synthesizes the text and plays it, streaming chunks into the
// player as they arrive. Synthesis always runs to completion even when
// playback is interrupted, keeping the producer side simple.
func (s *Scheduler) speak(ctx context.Context, logger zerolog.Logger, text string) {
	if text == "" {
		return
	}

	chunks, err := s.synthesizer.SynthesizeStream(ctx, text)
	if err != nil {
		logger.Error().Err(err).Msg("Synthesis failed")
		return
	}

	sb := audio.NewStreamBuffer(s.config.MinChunkSize)

	var g errgroup.Group
	g.Go(func() error {
		s.player.PlayStream(ctx, sb)
		return nil
	})

	for chunk := range chunks {
		sb.Write(chunk)
	}
	sb.Finish()

	g.Wait()
}

func (s *Scheduler) completeTurn(turnID string, start time.Time) {
	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTurnCompleted,
			Data: map[string]any{"turn": turnID, "duration": time.Since(start)},
		})
	}
}

func (s *Scheduler) failTurn(turnID, stage string, err error) {
	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTurnFailed,
			Data: map[string]any{"turn": turnID, "stage": stage, "error": err.Error()},
		})
	}
}
