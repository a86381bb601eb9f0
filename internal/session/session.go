// Package session tracks conversation history and decides when a new
// session should begin.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/bus"
	"github.com/vocalisproject/vocalis/internal/llm"
)

// Config holds session rotation settings.
type Config struct {
	Timeout    time.Duration // inactivity that starts a fresh session
	EndPhrases []string      // phrases that end the conversation immediately
	MaxTurns   int           // retained turns, a turn is one user and one assistant message
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:  20 * time.Second,
		MaxTurns: 100,
		EndPhrases: []string{
			"再见", "拜拜", "bye", "goodbye", "结束对话", "结束聊天",
			"就聊到这里", "下次再聊", "回聊", "结束了", "聊完了",
		},
	}
}

// Memory stores ordered messages per session id. Rotated-out sessions stay
// readable under their old id until the process exits.
type Memory struct {
	sessions map[string][]llm.Message
}

func newMemory() *Memory {
	return &Memory{sessions: make(map[string][]llm.Message)}
}

// append records messages for a session, evicting the oldest entries once
// the cap is exceeded. Callers hold the manager lock.
func (w *Memory) append(id string, limit int, messages ...llm.Message) {
	history := append(w.sessions[id], messages...)
	if len(history) > limit {
		drop := len(history) - limit
		history = append(history[:0:0], history[drop:]...)
	}
	w.sessions[id] = history
}

func (w *Memory) get(id string) []llm.Message {
	history := w.sessions[id]
	out := make([]llm.Message, len(history))
	copy(out, history)
	return out
}

// Manager owns the current session's identity and history. All methods are
// safe for concurrent use; the scheduler reads history while the capture
// side refreshes activity.
type Manager struct {
	config   Config
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu         sync.Mutex
	id         string
	memory     *Memory
	lastActive time.Time
	now        func() time.Time // injectable clock
}

// NewManager starts the first session immediately.
func NewManager(config Config, eventBus *bus.EventBus, logger zerolog.Logger) *Manager {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = 100
	}

	m := &Manager{
		config:   config,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "session").Logger(),
		memory:   newMemory(),
		now:      time.Now,
	}
	m.id = uuid.NewString()
	m.lastActive = m.now()
	return m
}

// ID returns the current session identifier.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// History returns a copy of the current session's messages in order.
func (m *Manager) History() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memory.get(m.id)
}

// SessionHistory returns the messages retained for any session id,
// including sessions that have been rotated out.
func (m *Manager) SessionHistory(id string) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memory.get(id)
}

// Append records messages from a completed turn. The retention cap is twice
// MaxTurns so a full turn's pair of messages is counted as one turn.
func (m *Manager) Append(messages ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory.append(m.id, m.config.MaxTurns*2, messages...)
}

// Touch marks the session active now. Called after each completed turn.
func (m *Manager) Touch() {
	m.mu.Lock()
	m.lastActive = m.now()
	m.mu.Unlock()
}

// CheckAndRotate inspects a fresh transcription before it is answered.
// An utterance containing an end phrase, or a long pause since the last
// activity, rotates to a new session; otherwise the session is refreshed.
// It reports whether a rotation happened and whether the utterance was an
// explicit goodbye.
func (m *Manager) CheckAndRotate(text string) (rotated bool, goodbye bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isEndPhrase(text) {
		m.rotateLocked("end phrase")
		return true, true
	}

	if m.now().Sub(m.lastActive) > m.config.Timeout {
		m.rotateLocked("inactivity")
		m.lastActive = m.now()
		return true, false
	}

	m.lastActive = m.now()
	return false, false
}

// isEndPhrase matches by containment: any configured phrase anywhere in
// the utterance ends the conversation.
func (m *Manager) isEndPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range m.config.EndPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// rotateLocked mints a fresh session id. The old session's messages stay in
// memory under the old id.
func (m *Manager) rotateLocked(reason string) {
	old := m.id
	m.id = uuid.NewString()

	m.logger.Info().
		Str("old", old).
		Str("new", m.id).
		Str("reason", reason).
		Msg("Session rotated")

	if m.eventBus != nil {
		m.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSessionRotated,
			Data: map[string]any{"old": old, "new": m.id, "reason": reason},
		})
	}
}
