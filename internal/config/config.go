// Package config provides configuration management for Vocalis
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Audio     AudioConfig     `mapstructure:"audio"`
	VAD       VADConfig       `mapstructure:"vad"`
	Session   SessionConfig   `mapstructure:"session"`
	ASR       ASRConfig       `mapstructure:"asr"`
	LLM       LLMConfig       `mapstructure:"llm"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Search    SearchConfig    `mapstructure:"search"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
	Verify    VerifyConfig    `mapstructure:"verify"`
}

// AudioConfig configures capture and playback
type AudioConfig struct {
	InputDevice      string        `mapstructure:"input_device"`
	SampleRate       int           `mapstructure:"sample_rate"`
	FrameDurationMs  int           `mapstructure:"frame_duration_ms"`
	SilenceThreshold time.Duration `mapstructure:"silence_threshold"`
	InterruptSpeech  time.Duration `mapstructure:"interrupt_speech"` // sustained speech before barge-in
	MinChunkSize     int           `mapstructure:"min_chunk_size"`   // playback buffer release threshold
	PlaybackRate     int           `mapstructure:"playback_rate"`
}

// VADConfig configures the frame classifier
type VADConfig struct {
	Threshold       float64 `mapstructure:"threshold"`        // RMS energy threshold (0-1)
	SmoothingFrames int     `mapstructure:"smoothing_frames"` // frames averaged before comparison
}

// SessionConfig configures session rotation and history
type SessionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	EndPhrases []string      `mapstructure:"end_phrases"`
	MaxTurns   int           `mapstructure:"max_turns"`
}

// ASRConfig configures speech-to-text
type ASRConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the dialogue model
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	VoiceEnglish string        `mapstructure:"voice_english"`
	VoiceChinese string        `mapstructure:"voice_chinese"`
	Speed        float64       `mapstructure:"speed"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// VisionConfig configures the frame analysis collaborator
type VisionConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the web search collaborator
type SearchConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	DefaultEngine string        `mapstructure:"default_engine"`
	NumResults    int           `mapstructure:"num_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// GuardrailConfig configures output text validation
type GuardrailConfig struct {
	SupportedLanguages []string `mapstructure:"supported_languages"`
	UnspeakablePattern string   `mapstructure:"unspeakable_pattern"`
	SpecialPattern     string   `mapstructure:"special_pattern"`
	UnsafeKeywords     []string `mapstructure:"unsafe_keywords"`
}

// VerifyConfig configures speaker verification
type VerifyConfig struct {
	ServerURL     string  `mapstructure:"server_url"`
	ReferencePath string  `mapstructure:"reference_path"`
	Threshold     float64 `mapstructure:"threshold"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			InputDevice:      "",
			SampleRate:       16000,
			FrameDurationMs:  20,
			SilenceThreshold: 2 * time.Second,
			InterruptSpeech:  1 * time.Second,
			MinChunkSize:     3200,
			PlaybackRate:     24000,
		},
		VAD: VADConfig{
			Threshold:       0.01,
			SmoothingFrames: 5,
		},
		Session: SessionConfig{
			Timeout:  20 * time.Second,
			MaxTurns: 100,
			EndPhrases: []string{
				"再见", "拜拜", "bye", "goodbye", "结束对话", "结束聊天",
				"就聊到这里", "下次再聊", "回聊", "结束了", "聊完了",
			},
		},
		ASR: ASRConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "whisper-large-v3-turbo",
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are Vocalis, a helpful voice assistant. Keep replies concise, under 200 words.",
			Timeout:      60 * time.Second,
		},
		TTS: TTSConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "tts-1",
			VoiceEnglish: "nova",
			VoiceChinese: "shimmer",
			Speed:        1.0,
			Timeout:      60 * time.Second,
		},
		Vision: VisionConfig{
			ServerURL: "http://localhost:8870",
			Timeout:   30 * time.Second,
		},
		Search: SearchConfig{
			DefaultEngine: "google",
			NumResults:    5,
			Timeout:       10 * time.Second,
		},
		Guardrail: GuardrailConfig{
			SupportedLanguages: []string{"zh", "en"},
			UnspeakablePattern: `[\x{1F300}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]+`,
			SpecialPattern:     "[*#$%^&\\[\\]{}|<>`]+",
			UnsafeKeywords:     []string{"violence", "hate", "explicit"},
		},
		Verify: VerifyConfig{
			ServerURL:     "",
			ReferencePath: "",
			Threshold:     0.35,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".vocalis")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("VOCALIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, keep defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	if cfg.ASR.APIKey == "" {
		cfg.ASR.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.APIKey == "" {
		cfg.TTS.APIKey = cfg.LLM.APIKey
	}

	return cfg, nil
}

// Watch reloads mutable settings when the config file changes on disk.
// The callback receives the freshly unmarshaled configuration.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".vocalis"), nil
}
