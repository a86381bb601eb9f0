package audio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// stubClassifier returns a scripted classification sequence.
type stubClassifier struct {
	script []bool
	pos    int
}

func (c *stubClassifier) IsSpeech(frame []byte) bool {
	if c.pos >= len(c.script) {
		return false
	}
	v := c.script[c.pos]
	c.pos++
	return v
}

func repeat(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestSegmenter(script []bool) (*Segmenter, *[][]byte) {
	cfg := SegmenterConfig{
		FrameDuration:    20 * time.Millisecond,
		SilenceThreshold: 200 * time.Millisecond, // 10 frames
	}
	seg := NewSegmenter(cfg, &stubClassifier{script: script}, nil, zerolog.Nop())

	var emitted [][]byte
	seg.OnUtterance(func(pcm []byte, _ time.Duration) {
		emitted = append(emitted, pcm)
	})
	return seg, &emitted
}

func TestSegmenter_EmitsUtteranceAfterSilence(t *testing.T) {
	script := append(repeat(true, 5), repeat(false, 10)...)
	seg, emitted := newTestSegmenter(script)

	frame := make([]byte, 640)
	for range script {
		seg.Process(frame)
	}

	if len(*emitted) != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", len(*emitted))
	}
	// 5 speech frames + 10 silence frames, all retained.
	if want := 15 * 640; len((*emitted)[0]) != want {
		t.Errorf("expected %d utterance bytes, got %d", want, len((*emitted)[0]))
	}
	if seg.Speaking() {
		t.Error("expected segmenter to be idle after finalization")
	}
}

func TestSegmenter_NoUtteranceWithoutSpeech(t *testing.T) {
	seg, emitted := newTestSegmenter(repeat(false, 50))

	frame := make([]byte, 640)
	for i := 0; i < 50; i++ {
		seg.Process(frame)
	}

	if len(*emitted) != 0 {
		t.Errorf("expected no utterance for pure silence, got %d", len(*emitted))
	}
}

func TestSegmenter_SpeechResetsSilenceTimer(t *testing.T) {
	// Speech, almost enough silence, speech again, then full silence.
	script := repeat(true, 3)
	script = append(script, repeat(false, 9)...) // 9 < 10 frames of silence
	script = append(script, true)
	script = append(script, repeat(false, 10)...)
	seg, emitted := newTestSegmenter(script)

	frame := make([]byte, 640)
	for range script {
		seg.Process(frame)
	}

	if len(*emitted) != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", len(*emitted))
	}
	if want := len(script) * 640; len((*emitted)[0]) != want {
		t.Errorf("expected resumed speech to extend the utterance to %d bytes, got %d", want, len((*emitted)[0]))
	}
}

func TestSegmenter_UtterancesDoNotOverlap(t *testing.T) {
	script := append(repeat(true, 4), repeat(false, 10)...)
	script = append(script, repeat(true, 6)...)
	script = append(script, repeat(false, 10)...)
	seg, emitted := newTestSegmenter(script)

	frame := make([]byte, 640)
	for range script {
		seg.Process(frame)
	}

	if len(*emitted) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(*emitted))
	}
	if len((*emitted)[0]) != 14*640 {
		t.Errorf("first utterance: expected %d bytes, got %d", 14*640, len((*emitted)[0]))
	}
	if len((*emitted)[1]) != 16*640 {
		t.Errorf("second utterance: expected %d bytes, got %d", 16*640, len((*emitted)[1]))
	}
}

func TestSegmenter_SpeechDurationCountsOnlySpeechFrames(t *testing.T) {
	script := append(repeat(true, 25), false)
	seg, _ := newTestSegmenter(script)

	frame := make([]byte, 640)
	for range script {
		seg.Process(frame)
	}

	if got := seg.SpeechDuration(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms of classified speech, got %v", got)
	}
	if !seg.Speaking() {
		t.Error("expected segmenter to still be recording")
	}
}

func TestSegmenter_ResetDropsRecording(t *testing.T) {
	seg, emitted := newTestSegmenter(repeat(true, 5))

	frame := make([]byte, 640)
	for i := 0; i < 5; i++ {
		seg.Process(frame)
	}
	seg.Reset()

	if seg.Speaking() {
		t.Error("expected idle state after reset")
	}
	if len(*emitted) != 0 {
		t.Errorf("reset must not emit an utterance, got %d", len(*emitted))
	}
}
