package audio

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/bus"
)

// segState is the segmenter's state
type segState int

const (
	segIdle segState = iota
	segRecording
)

// SegmenterConfig holds utterance segmentation parameters
type SegmenterConfig struct {
	FrameDuration    time.Duration // duration covered by one frame
	SilenceThreshold time.Duration // trailing silence that finalizes an utterance
}

// DefaultSegmenterConfig returns sensible defaults
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		FrameDuration:    20 * time.Millisecond,
		SilenceThreshold: 2 * time.Second,
	}
}

// Segmenter turns a raw frame stream into discrete utterances. It is driven
// by the capture loop: one Process call per frame, in arrival order.
// An utterance begins on the first speech frame and is finalized once
// trailing silence reaches SilenceThreshold. Silence frames inside the
// recording are kept so the utterance retains its natural trailing audio.
type Segmenter struct {
	config     SegmenterConfig
	classifier Classifier
	eventBus   *bus.EventBus
	logger     zerolog.Logger

	state        segState
	buffer       []byte
	silence      time.Duration
	silenceRuns  bool
	speechFrames int

	onUtterance func(pcm []byte, speech time.Duration)
}

// NewSegmenter creates a segmenter around the given frame classifier
func NewSegmenter(config SegmenterConfig, classifier Classifier, eventBus *bus.EventBus, logger zerolog.Logger) *Segmenter {
	if config.FrameDuration <= 0 {
		config.FrameDuration = 20 * time.Millisecond
	}
	if config.SilenceThreshold <= 0 {
		config.SilenceThreshold = 2 * time.Second
	}

	return &Segmenter{
		config:     config,
		classifier: classifier,
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "segmenter").Logger(),
	}
}

// OnUtterance registers the finalized-utterance callback. The callback
// receives the assembled PCM bytes and the total classified-speech duration
// of the utterance.
func (s *Segmenter) OnUtterance(fn func(pcm []byte, speech time.Duration)) {
	s.onUtterance = fn
}

// Speaking reports whether an utterance is currently being recorded.
func (s *Segmenter) Speaking() bool {
	return s.state == segRecording
}

// SpeechDuration returns the accumulated classified-speech duration of the
// utterance in progress. Used by the capture loop for barge-in decisions.
func (s *Segmenter) SpeechDuration() time.Duration {
	return time.Duration(s.speechFrames) * s.config.FrameDuration
}

// Process feeds one frame through the state machine. Frames are classified
// strictly in arrival order; the utterance preserves capture order.
func (s *Segmenter) Process(frame []byte) {
	isSpeech := s.classifier.IsSpeech(frame)

	switch s.state {
	case segIdle:
		if !isSpeech {
			return
		}
		s.state = segRecording
		s.buffer = append(s.buffer[:0], frame...)
		s.speechFrames = 1
		s.silence = 0
		s.silenceRuns = false

		s.logger.Debug().Msg("Speech started")
		if s.eventBus != nil {
			s.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeechStart})
		}

	case segRecording:
		// Silence frames are part of the recording too.
		s.buffer = append(s.buffer, frame...)

		if isSpeech {
			s.speechFrames++
			s.silence = 0
			s.silenceRuns = false
			return
		}

		if !s.silenceRuns {
			s.silenceRuns = true
			s.silence = 0
		}
		s.silence += s.config.FrameDuration
		if s.silence >= s.config.SilenceThreshold {
			s.finalize()
		}
	}
}

// finalize emits the utterance and returns to idle
func (s *Segmenter) finalize() {
	pcm := make([]byte, len(s.buffer))
	copy(pcm, s.buffer)
	speech := s.SpeechDuration()

	s.state = segIdle
	s.buffer = s.buffer[:0]
	s.silence = 0
	s.silenceRuns = false
	s.speechFrames = 0

	s.logger.Debug().Int("bytes", len(pcm)).Dur("speech", speech).Msg("Utterance finalized")
	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSpeechEnd,
			Data: map[string]any{"bytes": len(pcm), "speech": speech},
		})
	}

	if s.onUtterance != nil {
		s.onUtterance(pcm, speech)
	}
}

// Reset drops any recording in progress and returns to idle.
func (s *Segmenter) Reset() {
	s.state = segIdle
	s.buffer = s.buffer[:0]
	s.silence = 0
	s.silenceRuns = false
	s.speechFrames = 0
}
