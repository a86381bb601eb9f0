// Package audio provides frame classification, utterance segmentation, and
// the stream buffer bridging synthesis and playback.
package audio

import (
	"errors"
)

// Common errors
var (
	ErrDeviceNotFound    = errors.New("audio device not found")
	ErrCaptureNotStarted = errors.New("capture not started")
	ErrInvalidFormat     = errors.New("invalid audio format")
)

// FrameBytes returns the expected byte length of a mono 16-bit PCM frame.
func FrameBytes(sampleRate, durationMs int) int {
	return sampleRate * durationMs / 1000 * 2
}

// NormalizeFrame pads or truncates a frame to the expected size.
// Frames of the wrong length are never rejected.
func NormalizeFrame(frame []byte, size int) []byte {
	switch {
	case len(frame) == size:
		return frame
	case len(frame) < size:
		padded := make([]byte, size)
		copy(padded, frame)
		return padded
	default:
		return frame[:size]
	}
}

// Classifier decides whether a single frame contains speech.
// Implementations must fail open: a frame they cannot classify is not speech.
type Classifier interface {
	IsSpeech(frame []byte) bool
}
