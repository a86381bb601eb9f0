// Package guardrail validates and cleans reply text before synthesis.
package guardrail

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// Config holds validation settings.
type Config struct {
	SupportedLanguages []string
	UnspeakablePattern string // emoji and symbols the synthesizer cannot voice
	SpecialPattern     string // markup characters stripped from replies
	UnsafeKeywords     []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SupportedLanguages: []string{"zh", "en"},
		UnspeakablePattern: `[\x{1F300}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]+`,
		SpecialPattern:     "[*#$%^&\\[\\]{}|<>`]+",
		UnsafeKeywords:     []string{"violence", "hate", "explicit"},
	}
}

// Guard checks reply text against language, safety and speakability rules.
// A ruleset that fails to compile is disabled rather than blocking replies.
type Guard struct {
	config      Config
	unspeakable *regexp.Regexp
	special     *regexp.Regexp
	logger      zerolog.Logger
}

// New creates a guard from the given rules.
func New(config Config, logger zerolog.Logger) *Guard {
	g := &Guard{
		config: config,
		logger: logger.With().Str("component", "guardrail").Logger(),
	}

	var err error
	if config.UnspeakablePattern != "" {
		if g.unspeakable, err = regexp.Compile(config.UnspeakablePattern); err != nil {
			g.logger.Warn().Err(err).Msg("Unspeakable pattern invalid, rule disabled")
		}
	}
	if config.SpecialPattern != "" {
		if g.special, err = regexp.Compile(config.SpecialPattern); err != nil {
			g.logger.Warn().Err(err).Msg("Special pattern invalid, rule disabled")
		}
	}
	return g
}

// ValidateAndClean checks the reply. When ok is false, message holds a
// short substitute sentence to speak instead. When ok is true, cleaned is
// the reply with unspeakable and markup characters removed.
func (g *Guard) ValidateAndClean(text string) (ok bool, message string, cleaned string) {
	if strings.TrimSpace(text) == "" {
		return false, "Sorry, I don't have anything to say about that.", ""
	}

	lower := strings.ToLower(text)
	for _, kw := range g.config.UnsafeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			g.logger.Warn().Str("keyword", kw).Msg("Reply blocked by safety keyword")
			return false, "Sorry, I can't talk about that.", ""
		}
	}

	if lang := dominantLanguage(text); !g.supports(lang) {
		g.logger.Warn().Str("language", lang).Msg("Reply language not supported")
		return false, "Sorry, I can only speak Chinese and English.", ""
	}

	cleaned = text
	if g.unspeakable != nil {
		cleaned = g.unspeakable.ReplaceAllString(cleaned, "")
	}
	if g.special != nil {
		cleaned = g.special.ReplaceAllString(cleaned, " ")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		return false, "Sorry, I don't have anything to say about that.", ""
	}
	return true, "", cleaned
}

func (g *Guard) supports(lang string) bool {
	if len(g.config.SupportedLanguages) == 0 {
		return true
	}
	for _, l := range g.config.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// dominantLanguage classifies the text by script: Han characters win over
// Latin, any other script wins when it outnumbers both.
func dominantLanguage(text string) string {
	var han, latin, other int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.In(r, unicode.Latin):
			latin++
		case unicode.IsLetter(r):
			other++
		}
	}

	if other > han && other > latin {
		return "other"
	}
	if han > 0 {
		return "zh"
	}
	return "en"
}
