// Package asr turns captured utterance audio into text.
package asr

import (
	"context"
	"errors"
)

// ErrAudioTooShort is returned when the utterance carries no audio.
var ErrAudioTooShort = errors.New("asr: audio too short to transcribe")

// Transcriber converts one utterance of mono 16-bit PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
