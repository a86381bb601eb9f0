// Package capture owns the microphone and the frame loop that feeds the
// segmenter and drives barge-in.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrOverflow marks a transient capture hiccup. The loop skips the frame
// and keeps reading.
var ErrOverflow = errors.New("capture: input overflow")

// FrameSource yields fixed-size PCM frames from an audio input.
type FrameSource interface {
	// ReadFrame blocks until a frame is available or ctx is done.
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// DeviceConfig holds microphone parameters.
type DeviceConfig struct {
	SampleRate      int
	FrameDurationMs int
}

// Device captures mono 16-bit PCM from the default input device. Frames are
// assembled inside the malgo data callback and handed over a buffered
// channel; if the consumer falls behind, frames are dropped at the device
// and surfaced as ErrOverflow.
type Device struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	frameSize int

	frames   chan []byte
	overflow chan struct{}

	mu      sync.Mutex
	pending []byte
	closed  bool
}

// NewDevice opens and starts the default capture device.
func NewDevice(config DeviceConfig) (*Device, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.FrameDurationMs <= 0 {
		config.FrameDurationMs = 20
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{
		ctx:       mctx,
		frameSize: config.SampleRate * config.FrameDurationMs / 1000 * 2,
		frames:    make(chan []byte, 64),
		overflow:  make(chan struct{}, 1),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(config.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(config.FrameDurationMs)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.onData(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	return d, nil
}

// onData runs on the audio thread. It slices the incoming buffer into
// whole frames; a partial tail is carried to the next callback.
func (d *Device) onData(input []byte) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, input...)
	var ready [][]byte
	for len(d.pending) >= d.frameSize {
		frame := make([]byte, d.frameSize)
		copy(frame, d.pending[:d.frameSize])
		d.pending = d.pending[d.frameSize:]
		ready = append(ready, frame)
	}
	d.mu.Unlock()

	for _, frame := range ready {
		select {
		case d.frames <- frame:
		default:
			// Consumer is behind. Drop the frame rather than block the
			// audio thread, and flag the overflow once.
			select {
			case d.overflow <- struct{}{}:
			default:
			}
		}
	}
}

// ReadFrame returns the next captured frame.
func (d *Device) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-d.overflow:
		return nil, ErrOverflow
	default:
	}

	select {
	case frame, ok := <-d.frames:
		if !ok {
			return nil, errors.New("capture: device closed")
		}
		return frame, nil
	case <-d.overflow:
		return nil, ErrOverflow
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the device and releases the audio context.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.device != nil {
		d.device.Stop()
		d.device.Uninit()
	}
	if d.ctx != nil {
		d.ctx.Uninit()
	}
	return nil
}
