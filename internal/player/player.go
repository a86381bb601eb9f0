// Package player consumes an audio stream buffer and plays it back,
// supporting mid-utterance interruption and multi-stage decode fallback.
package player

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/audio"
	"github.com/vocalisproject/vocalis/internal/bus"
)

// State represents the playback state
type State string

const (
	StateIdle        State = "idle"
	StatePlaying     State = "playing"
	StateInterrupted State = "interrupted"
)

// pollInterval bounds how quickly an interrupt takes effect on an
// in-flight chunk.
const pollInterval = 10 * time.Millisecond

// Config holds player configuration
type Config struct {
	SampleRate int    // playback sample rate
	Format     string // chunk format from the synthesizer: "mp3" or "pcm"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SampleRate: 24000,
		Format:     "mp3",
	}
}

// Player drains a StreamBuffer chunk by chunk and plays each chunk to
// completion before requesting the next, unless interrupted.
type Player struct {
	config   Config
	sink     Sink
	eventBus *bus.EventBus
	logger   zerolog.Logger

	strategies []decodeStrategy

	stateMu     sync.RWMutex
	state       State
	interrupted atomic.Bool
}

// New creates a player writing decoded PCM to the given sink.
func New(config Config, sink Sink, eventBus *bus.EventBus, logger zerolog.Logger) *Player {
	if config.SampleRate <= 0 {
		config.SampleRate = 24000
	}
	if config.Format == "" {
		config.Format = "mp3"
	}

	p := &Player{
		config:   config,
		sink:     sink,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "player").Logger(),
		state:    StateIdle,
	}
	p.strategies = defaultStrategies(config)
	return p
}

// State returns the current playback state.
func (p *Player) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// IsPlaying reports whether a stream is currently being played.
func (p *Player) IsPlaying() bool {
	return p.State() == StatePlaying
}

func (p *Player) setState(s State) {
	p.stateMu.Lock()
	old := p.state
	p.state = s
	p.stateMu.Unlock()

	if old != s && p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypePlaybackState,
			Data: map[string]any{"old": string(old), "new": string(s)},
		})
	}
}

// Interrupt immediately stops any in-flight chunk and signals PlayStream to
// exit. It is idempotent and safe to call with no active playback.
func (p *Player) Interrupt() bool {
	p.interrupted.Store(true)
	p.sink.Stop()

	if p.State() == StatePlaying {
		p.setState(StateInterrupted)
		p.logger.Info().Msg("Playback interrupted")
		if p.eventBus != nil {
			p.eventBus.Publish(bus.Event{Type: bus.EventTypeInterrupted})
		}
	}
	return true
}

// PlayStream drains the buffer and plays chunks in write order. It returns
// once the stream is exhausted or an interrupt is observed; a bad chunk is
// dropped and never aborts the rest of the stream.
func (p *Player) PlayStream(ctx context.Context, sb *audio.StreamBuffer) {
	p.interrupted.Store(false)
	p.setState(StatePlaying)
	defer func() {
		p.interrupted.Store(false)
		p.setState(StateIdle)
	}()

	for {
		if p.interrupted.Load() || ctx.Err() != nil {
			return
		}

		chunk, ok := sb.ReadChunk()
		if !ok {
			return
		}

		p.playChunk(ctx, chunk)
	}
}

// playChunk escalates through the decode strategies in order. Each strategy
// is attempted only if the previous one failed to decode; interruption never
// triggers fallback.
func (p *Player) playChunk(ctx context.Context, chunk []byte) {
	for _, strat := range p.strategies {
		if p.interrupted.Load() {
			return
		}

		pcm, err := strat.decode(ctx, chunk)
		if err != nil {
			p.logger.Warn().Err(err).Str("strategy", strat.name).Msg("Decode failed, trying next strategy")
			continue
		}

		p.playPCM(ctx, pcm)
		return
	}

	// Every strategy failed: drop the chunk, keep the pipeline going.
	p.logger.Error().Int("bytes", len(chunk)).Msg("Dropping undecodable chunk")
}

// playPCM writes decoded samples to the sink and waits for the device to
// consume them, polling for interruption.
func (p *Player) playPCM(ctx context.Context, pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	p.sink.Write(pcm)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.sink.Stop()
			return
		case <-ticker.C:
			if p.interrupted.Load() {
				p.sink.Stop()
				return
			}
			if p.sink.Pending() == 0 {
				return
			}
		}
	}
}
