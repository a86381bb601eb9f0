// Package search gives the dialogue model a web search tool.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds search service settings.
type Config struct {
	Endpoint      string
	DefaultEngine string
	NumResults    int
	Timeout       time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DefaultEngine: "google",
		NumResults:    5,
		Timeout:       10 * time.Second,
	}
}

// Engine queries a SearxNG-compatible metasearch endpoint. Search never
// returns an error: failures become a short description the model can
// relay to the user, so a flaky search deployment cannot break a turn.
type Engine struct {
	config Config
	client *http.Client
	logger zerolog.Logger
}

// NewEngine creates a search engine client.
func NewEngine(config Config, logger zerolog.Logger) *Engine {
	if config.DefaultEngine == "" {
		config.DefaultEngine = "google"
	}
	if config.NumResults <= 0 {
		config.NumResults = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Engine{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "search").Logger(),
	}
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search runs the query and formats the top results as plain text.
// An empty engine or non-positive numResults falls back to the configured
// defaults.
func (e *Engine) Search(ctx context.Context, query, engine string, numResults int) string {
	if e.config.Endpoint == "" {
		return "Web search is not configured."
	}
	if engine == "" {
		engine = e.config.DefaultEngine
	}
	if numResults <= 0 {
		numResults = e.config.NumResults
	}

	u, err := url.Parse(strings.TrimRight(e.config.Endpoint, "/") + "/search")
	if err != nil {
		return "Web search is misconfigured."
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("engines", engine)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "Web search is unavailable right now."
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("query", query).Msg("Search request failed")
		return "Web search is unavailable right now."
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		e.logger.Warn().Int("status", resp.StatusCode).Msg("Search returned an error")
		return "Web search failed with status " + strconv.Itoa(resp.StatusCode) + "."
	}

	var parsed struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		e.logger.Warn().Err(err).Msg("Search response was not valid JSON")
		return "Web search returned an unreadable response."
	}
	if len(parsed.Results) == 0 {
		return "No results found for: " + query
	}

	limit := numResults
	if limit > len(parsed.Results) {
		limit = len(parsed.Results)
	}

	var sb strings.Builder
	for i, r := range parsed.Results[:limit] {
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.Content, r.URL)
	}

	e.logger.Info().Str("query", query).Int("results", limit).Msg("Search complete")
	return strings.TrimSpace(sb.String())
}
