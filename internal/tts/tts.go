// Package tts synthesizes assistant replies into audio chunks.
package tts

import (
	"context"
	"unicode"
)

// Synthesizer converts text into a stream of encoded audio chunks. The
// channel is closed when synthesis finishes or fails; a failed synthesis
// simply yields fewer chunks.
type Synthesizer interface {
	SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error)
}

// DetectLanguage returns "zh" when the text contains Han characters,
// otherwise "en". Used to pick a voice matching the reply language.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return "zh"
		}
	}
	return "en"
}
