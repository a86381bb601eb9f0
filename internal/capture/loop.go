package capture

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/audio"
)

// Playback is the slice of the player the loop needs for barge-in.
type Playback interface {
	IsPlaying() bool
	Interrupt() bool
}

// Submitter accepts a finalized utterance for processing. Submit must not
// block; it reports whether the utterance was accepted.
type Submitter interface {
	Submit(ctx context.Context, pcm []byte) bool
}

// LoopConfig holds frame-loop parameters.
type LoopConfig struct {
	SampleRate      int
	FrameDuration   time.Duration
	InterruptSpeech time.Duration // sustained speech that triggers barge-in
}

// Loop reads frames from the source, feeds them through the segmenter and
// fires barge-in when the user talks over active playback.
type Loop struct {
	config    LoopConfig
	source    FrameSource
	segmenter *audio.Segmenter
	player    Playback
	scheduler Submitter
	logger    zerolog.Logger

	frameSize  int
	interruptd bool            // barge-in already fired for the current utterance
	ctx        context.Context // run context, handed to the scheduler with each utterance
}

// NewLoop wires the capture loop. The segmenter's utterance callback is
// claimed by the loop; register downstream consumers on the scheduler.
func NewLoop(config LoopConfig, source FrameSource, segmenter *audio.Segmenter, player Playback, scheduler Submitter, logger zerolog.Logger) *Loop {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.FrameDuration <= 0 {
		config.FrameDuration = 20 * time.Millisecond
	}
	if config.InterruptSpeech <= 0 {
		config.InterruptSpeech = time.Second
	}

	l := &Loop{
		config:    config,
		source:    source,
		segmenter: segmenter,
		player:    player,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "capture").Logger(),
		frameSize: audio.FrameBytes(config.SampleRate, int(config.FrameDuration/time.Millisecond)),
		ctx:       context.Background(),
	}

	segmenter.OnUtterance(l.onUtterance)
	return l
}

// Run drives the frame loop until ctx is canceled or the source fails.
// The source is always released on exit.
func (l *Loop) Run(ctx context.Context) error {
	defer l.source.Close()
	l.ctx = ctx

	l.logger.Info().
		Int("sample_rate", l.config.SampleRate).
		Dur("frame", l.config.FrameDuration).
		Msg("Capture loop started")

	for {
		frame, err := l.source.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrOverflow) {
				l.logger.Warn().Msg("Input overflow, frame skipped")
				continue
			}
			if ctx.Err() != nil {
				l.logger.Info().Msg("Capture loop stopped")
				return nil
			}
			l.logger.Error().Err(err).Msg("Capture read failed")
			return err
		}

		l.handleFrame(frame)
	}
}

// handleFrame normalizes, segments and applies the barge-in rule to one frame.
func (l *Loop) handleFrame(frame []byte) {
	frame = audio.NormalizeFrame(frame, l.frameSize)
	l.segmenter.Process(frame)

	if !l.segmenter.Speaking() {
		l.interruptd = false
		return
	}

	// Barge-in: sustained speech over active playback interrupts it,
	// exactly once per utterance.
	if !l.interruptd &&
		l.segmenter.SpeechDuration() >= l.config.InterruptSpeech &&
		l.player.IsPlaying() {
		l.logger.Info().
			Dur("speech", l.segmenter.SpeechDuration()).
			Msg("Sustained speech during playback, interrupting")
		l.player.Interrupt()
		l.interruptd = true
	}
}

// onUtterance hands a finalized utterance to the scheduler without blocking.
func (l *Loop) onUtterance(pcm []byte, speech time.Duration) {
	l.interruptd = false

	if !l.scheduler.Submit(l.ctx, pcm) {
		l.logger.Warn().
			Int("bytes", len(pcm)).
			Dur("speech", speech).
			Msg("Scheduler busy, utterance dropped")
	}
}
