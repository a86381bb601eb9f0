package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// decodeStrategy is one stage of the decode fallback chain. Stages are tried
// in order; a stage runs only when every earlier stage failed with a decode
// error.
type decodeStrategy struct {
	name   string
	decode func(ctx context.Context, chunk []byte) ([]byte, error)
}

// decodeError carries the failing stage so escalation is observable.
type decodeError struct {
	Strategy string
	Err      error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode stage %s: %v", e.Strategy, e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }

// defaultStrategies builds the fallback chain for the configured chunk format:
// in-memory decode, temp-file decode for decoders needing seekable input,
// external transcode to raw PCM, and finally best-effort raw replay.
func defaultStrategies(config Config) []decodeStrategy {
	if config.Format == "pcm" {
		// Raw PCM needs no decoding; a single passthrough stage suffices.
		return []decodeStrategy{{
			name: "passthrough",
			decode: func(_ context.Context, chunk []byte) ([]byte, error) {
				return chunk, nil
			},
		}}
	}

	return []decodeStrategy{
		{name: "memory", decode: decodeMemory},
		{name: "tempfile", decode: decodeTempFile},
		{name: "ffmpeg", decode: transcodeFFmpeg(config.SampleRate)},
		{name: "raw", decode: func(_ context.Context, chunk []byte) ([]byte, error) {
			// Last resort: replay the original bytes as-is.
			return chunk, nil
		}},
	}
}

// decodeMemory decodes an MP3 chunk entirely from memory.
func decodeMemory(_ context.Context, chunk []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(chunk))
	if err != nil {
		return nil, &decodeError{Strategy: "memory", Err: err}
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, &decodeError{Strategy: "memory", Err: err}
	}
	return downmixStereo(pcm), nil
}

// decodeTempFile writes the chunk to disk first; some decoders only cope with
// seekable input. The temp file is removed on every exit path.
func decodeTempFile(_ context.Context, chunk []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "vocalis-chunk-*.mp3")
	if err != nil {
		return nil, &decodeError{Strategy: "tempfile", Err: err}
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(chunk); err != nil {
		return nil, &decodeError{Strategy: "tempfile", Err: err}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, &decodeError{Strategy: "tempfile", Err: err}
	}

	dec, err := mp3.NewDecoder(tmp)
	if err != nil {
		return nil, &decodeError{Strategy: "tempfile", Err: err}
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, &decodeError{Strategy: "tempfile", Err: err}
	}
	return downmixStereo(pcm), nil
}

// transcodeFFmpeg shells out to ffmpeg to convert the chunk to canonical
// s16le mono PCM. Handles malformed streams the in-process decoder rejects.
func transcodeFFmpeg(sampleRate int) func(ctx context.Context, chunk []byte) ([]byte, error) {
	return func(ctx context.Context, chunk []byte) ([]byte, error) {
		in, err := os.CreateTemp("", "vocalis-in-*.mp3")
		if err != nil {
			return nil, &decodeError{Strategy: "ffmpeg", Err: err}
		}
		defer os.Remove(in.Name())

		if _, err := in.Write(chunk); err != nil {
			in.Close()
			return nil, &decodeError{Strategy: "ffmpeg", Err: err}
		}
		in.Close()

		out, err := os.CreateTemp("", "vocalis-out-*.pcm")
		if err != nil {
			return nil, &decodeError{Strategy: "ffmpeg", Err: err}
		}
		outName := out.Name()
		out.Close()
		defer os.Remove(outName)

		cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
			"-i", in.Name(),
			"-f", "s16le", "-acodec", "pcm_s16le",
			"-ar", fmt.Sprintf("%d", sampleRate), "-ac", "1",
			outName)
		if err := cmd.Run(); err != nil {
			return nil, &decodeError{Strategy: "ffmpeg", Err: err}
		}

		pcm, err := os.ReadFile(outName)
		if err != nil {
			return nil, &decodeError{Strategy: "ffmpeg", Err: err}
		}
		if len(pcm) == 0 {
			return nil, &decodeError{Strategy: "ffmpeg", Err: fmt.Errorf("empty transcode output")}
		}
		return pcm, nil
	}
}

// downmixStereo averages interleaved 16-bit stereo samples to mono.
// The in-process MP3 decoder always produces two channels.
func downmixStereo(pcm []byte) []byte {
	if len(pcm) < 4 {
		return pcm
	}
	mono := make([]byte, 0, len(pcm)/2)
	for i := 0; i+3 < len(pcm); i += 4 {
		left := int16(pcm[i]) | int16(pcm[i+1])<<8
		right := int16(pcm[i+2]) | int16(pcm[i+3])<<8
		mixed := int16((int32(left) + int32(right)) / 2)
		mono = append(mono, byte(mixed), byte(mixed>>8))
	}
	return mono
}
