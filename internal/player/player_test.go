package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/audio"
)

// fakeSink records written PCM. When hold is set, Pending stays non-zero
// until Stop is called, simulating a device still draining a chunk.
type fakeSink struct {
	mu      sync.Mutex
	written [][]byte
	pending int
	hold    bool
	stops   int
}

func (f *fakeSink) Write(pcm []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	f.written = append(f.written, cp)
	if f.hold {
		f.pending = len(pcm)
	}
}

func (f *fakeSink) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = 0
	f.stops++
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) chunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newTestPlayer(sink Sink) *Player {
	return New(Config{SampleRate: 24000, Format: "pcm"}, sink, nil, zerolog.Nop())
}

func TestPlayer_InterruptIsIdempotent(t *testing.T) {
	p := newTestPlayer(&fakeSink{})

	if !p.Interrupt() {
		t.Error("interrupt with no active playback must still succeed")
	}
	if !p.Interrupt() {
		t.Error("repeated interrupt must still succeed")
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("expected idle state, got %s", got)
	}
}

func TestPlayer_PlaysChunksInOrder(t *testing.T) {
	sink := &fakeSink{}
	p := newTestPlayer(sink)

	sb := audio.NewStreamBuffer(4)
	sb.Write([]byte{1, 2, 3, 4})
	done := make(chan struct{})
	go func() {
		p.PlayStream(context.Background(), sb)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sb.Write([]byte{5, 6, 7, 8})
	sb.Finish()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PlayStream did not finish after stream exhaustion")
	}

	chunks := sink.chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks played, got %d", len(chunks))
	}
	if chunks[0][0] != 1 || chunks[1][0] != 5 {
		t.Error("chunks played out of write order")
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("expected idle after natural exhaustion, got %s", got)
	}
}

func TestPlayer_InterruptStopsInFlightChunk(t *testing.T) {
	sink := &fakeSink{hold: true}
	p := newTestPlayer(sink)

	sb := audio.NewStreamBuffer(4)
	sb.Write(make([]byte, 64))

	done := make(chan struct{})
	go func() {
		p.PlayStream(context.Background(), sb)
		close(done)
	}()

	// Wait until the chunk is on the sink, then interrupt mid-playback.
	deadline := time.Now().Add(time.Second)
	for sink.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !p.Interrupt() {
		t.Error("interrupt must succeed")
	}
	sb.Finish()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PlayStream did not exit promptly after interrupt")
	}

	sink.mu.Lock()
	stops := sink.stops
	sink.mu.Unlock()
	if stops == 0 {
		t.Error("interrupt must stop the sink")
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("expected idle after interrupt handling, got %s", got)
	}
}

func TestPlayer_FallbackChainEscalatesInOrder(t *testing.T) {
	sink := &fakeSink{}
	p := newTestPlayer(sink)

	var tried []string
	p.strategies = []decodeStrategy{
		{name: "first", decode: func(context.Context, []byte) ([]byte, error) {
			tried = append(tried, "first")
			return nil, errors.New("bad header")
		}},
		{name: "second", decode: func(_ context.Context, chunk []byte) ([]byte, error) {
			tried = append(tried, "second")
			return chunk, nil
		}},
		{name: "third", decode: func(context.Context, []byte) ([]byte, error) {
			tried = append(tried, "third")
			return nil, errors.New("unreachable")
		}},
	}

	p.playChunk(context.Background(), []byte{9, 9})

	if len(tried) != 2 || tried[0] != "first" || tried[1] != "second" {
		t.Errorf("expected escalation [first second], got %v", tried)
	}
	if len(sink.chunks()) != 1 {
		t.Errorf("expected the second stage's output to be played, got %d chunks", len(sink.chunks()))
	}
}

func TestPlayer_UndecodableChunkIsDroppedNotFatal(t *testing.T) {
	sink := &fakeSink{}
	p := newTestPlayer(sink)

	p.strategies = []decodeStrategy{
		{name: "only", decode: func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("corrupt")
		}},
	}

	p.playChunk(context.Background(), []byte{1})
	if len(sink.chunks()) != 0 {
		t.Error("undecodable chunk must be dropped")
	}
}

func TestDownmixStereo(t *testing.T) {
	// Two stereo samples: (100, 200) and (-100, 100).
	stereo := []byte{100, 0, 200, 0, 156, 255, 100, 0}
	mono := downmixStereo(stereo)
	if len(mono) != 4 {
		t.Fatalf("expected 2 mono samples, got %d bytes", len(mono))
	}
	first := int16(mono[0]) | int16(mono[1])<<8
	if first != 150 {
		t.Errorf("expected averaged sample 150, got %d", first)
	}
	second := int16(mono[2]) | int16(mono[3])<<8
	if second != 0 {
		t.Errorf("expected averaged sample 0, got %d", second)
	}
}
