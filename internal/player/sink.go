package player

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Sink abstracts the audio output device so playback logic can be tested
// without real hardware.
type Sink interface {
	// Write enqueues PCM for playback; playback starts on first write.
	Write(pcm []byte)
	// Pending returns the number of enqueued bytes not yet consumed.
	Pending() int
	// Stop discards all enqueued audio immediately.
	Stop()
	// Close releases the device.
	Close() error
}

// Speaker implements Sink on top of an oto playback context. The oto player
// pulls samples from the internal buffer via the io.Reader contract.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

// NewSpeaker initializes the playback device at the given rate (mono 16-bit).
func NewSpeaker(sampleRate int) (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   0, // library default, ~100ms
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	return &Speaker{otoCtx: otoCtx, buf: make([]byte, 0, sampleRate*2)}, nil
}

// Write implements Sink.
func (s *Speaker) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
}

// Pending implements Sink.
func (s *Speaker) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Read implements io.Reader for the oto player. Returns silence when no data
// is buffered so the device keeps running between chunks.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Stop implements Sink: drops queued audio and resets the device player so
// stale samples cannot overlap the next stream.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	playing := s.playing
	s.player = nil
	s.playing = false
	s.mu.Unlock()

	if playing && player != nil {
		player.Pause()
		player.Close()
	}
}

// Close implements Sink.
func (s *Speaker) Close() error {
	s.mu.Lock()
	s.closed = true
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
