package audio

import (
	"math"
	"sync"
)

// VAD implements frame-level speech detection using RMS energy analysis.
type VAD struct {
	config *VADConfig
	mu     sync.Mutex

	// Smoothing
	energyHistory []float64
	historyIndex  int
	historyFilled int
}

// VADConfig holds VAD configuration
type VADConfig struct {
	Threshold       float64 `json:"threshold"`        // Energy threshold (0-1), default 0.01
	SmoothingFrames int     `json:"smoothing_frames"` // Number of frames to smooth, default 5
}

// DefaultVADConfig returns sensible defaults
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		Threshold:       0.01,
		SmoothingFrames: 5,
	}
}

// NewVAD creates a new VAD instance
func NewVAD(config *VADConfig) *VAD {
	if config == nil {
		config = DefaultVADConfig()
	}
	if config.SmoothingFrames <= 0 {
		config.SmoothingFrames = 1
	}

	return &VAD{
		config:        config,
		energyHistory: make([]float64, config.SmoothingFrames),
	}
}

// IsSpeech classifies a single mono 16-bit PCM frame.
// An empty or unparseable frame is classified as non-speech.
func (v *VAD) IsSpeech(frame []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	rms := calculateRMS(frame)

	v.energyHistory[v.historyIndex] = rms
	v.historyIndex = (v.historyIndex + 1) % len(v.energyHistory)
	if v.historyFilled < len(v.energyHistory) {
		v.historyFilled++
	}

	return v.smoothedRMS() >= v.config.Threshold
}

// calculateRMS computes Root Mean Square energy over 16-bit signed samples
func calculateRMS(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}

	var sum float64
	var count int
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(frame[i]) | int16(frame[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
		count++
	}

	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// smoothedRMS returns the average RMS over the filled history window
func (v *VAD) smoothedRMS() float64 {
	if v.historyFilled == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < v.historyFilled; i++ {
		sum += v.energyHistory[i]
	}
	return sum / float64(v.historyFilled)
}

// Reset clears VAD state
func (v *VAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.historyIndex = 0
	v.historyFilled = 0
	for i := range v.energyHistory {
		v.energyHistory[i] = 0
	}
}
