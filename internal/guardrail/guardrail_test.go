package guardrail

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newGuard() *Guard {
	return New(DefaultConfig(), zerolog.Nop())
}

func TestGuard_CleanTextPassesThrough(t *testing.T) {
	ok, _, cleaned := newGuard().ValidateAndClean("The weather is sunny today.")
	assert.True(t, ok)
	assert.Equal(t, "The weather is sunny today.", cleaned)
}

func TestGuard_ChinesePassesThrough(t *testing.T) {
	ok, _, cleaned := newGuard().ValidateAndClean("今天天气很好。")
	assert.True(t, ok)
	assert.Equal(t, "今天天气很好。", cleaned)
}

func TestGuard_StripsEmoji(t *testing.T) {
	ok, _, cleaned := newGuard().ValidateAndClean("Great idea \U0001F600\U0001F680 let's go")
	assert.True(t, ok)
	assert.Equal(t, "Great idea let's go", cleaned)
}

func TestGuard_StripsMarkupCharacters(t *testing.T) {
	ok, _, cleaned := newGuard().ValidateAndClean("Here is **bold** and #tag")
	assert.True(t, ok)
	assert.NotContains(t, cleaned, "*")
	assert.NotContains(t, cleaned, "#")
	assert.Contains(t, cleaned, "bold")
}

func TestGuard_BlocksUnsafeKeyword(t *testing.T) {
	ok, message, _ := newGuard().ValidateAndClean("Let me describe the violence in detail")
	assert.False(t, ok)
	assert.NotEmpty(t, message, "a substitute sentence must be provided")
}

func TestGuard_BlocksUnsupportedLanguage(t *testing.T) {
	ok, message, _ := newGuard().ValidateAndClean("Привет, как дела сегодня?")
	assert.False(t, ok)
	assert.NotEmpty(t, message)
}

func TestGuard_EmptyTextRejected(t *testing.T) {
	ok, message, _ := newGuard().ValidateAndClean("   ")
	assert.False(t, ok)
	assert.NotEmpty(t, message)
}

func TestGuard_InvalidPatternFailsOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnspeakablePattern = "[unclosed"
	g := New(cfg, zerolog.Nop())

	ok, _, cleaned := g.ValidateAndClean("still works fine")
	assert.True(t, ok)
	assert.Equal(t, "still works fine", cleaned)
}
